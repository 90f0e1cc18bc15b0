package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/terakoya-app/terakoya/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var stripeSubID sql.NullString
	var periodEnd sql.NullTime
	err := scanner.Scan(
		&sub.ID, &sub.AccountID, &sub.Email, &sub.Plan, &sub.Status,
		&stripeSubID, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeSubID.Valid {
		sub.StripeSubscriptionID = &stripeSubID.String
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

const subscriptionCols = `id, account_id, email, plan, status, stripe_subscription_id, current_period_end, created_at, updated_at`

func (s *SubscriptionStore) Create(accountID, email, plan, stripeSubID string) (*model.Subscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO subscriptions (account_id, email, plan, stripe_subscription_id) VALUES (?, ?, ?, ?)`,
		accountID, email, plan, nullable(stripeSubID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// Supersede cancels every active subscription for the account and inserts
// the new active row in one transaction, so two concurrent plan checkouts
// can never leave two active rows.
func (s *SubscriptionStore) Supersede(accountID, email, plan, stripeSubID string) (*model.Subscription, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin supersede: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE subscriptions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE account_id = ? AND status = ?`,
		model.StatusCancelled, accountID, model.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel prior subscriptions: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO subscriptions (account_id, email, plan, stripe_subscription_id) VALUES (?, ?, ?, ?)`,
		accountID, email, plan, nullable(stripeSubID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit supersede: %w", err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) GetByID(id int64) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetActiveByAccountID(accountID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE account_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		accountID, model.StatusActive,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by account: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetActiveByEmail(email string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE email = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		email, model.StatusActive,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by email: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByStripeID(stripeSubID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_subscription_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		stripeSubID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) UpdateStatus(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) UpdatePeriodEnd(id int64, periodEnd time.Time) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET current_period_end = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		periodEnd.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update period end: %w", err)
	}
	return nil
}

// nullable maps "" to NULL for optional external references.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
