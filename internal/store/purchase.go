package store

import (
	"database/sql"
	"fmt"

	"github.com/terakoya-app/terakoya/internal/model"
)

type PurchaseStore struct {
	db *sql.DB
}

func NewPurchaseStore(db *sql.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

func scanPurchase(scanner interface{ Scan(...any) error }) (*model.CoursePurchase, error) {
	var p model.CoursePurchase
	var sessionID sql.NullString
	err := scanner.Scan(&p.ID, &p.AccountID, &p.Email, &p.CourseSlug, &sessionID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		p.StripeSessionID = &sessionID.String
	}
	return &p, nil
}

const purchaseCols = `id, account_id, email, course_slug, stripe_session_id, created_at`

// Record grants course access. A repeat of the same (account, course) pair
// is a no-op, never an error, so replayed checkout events stay idempotent.
func (s *PurchaseStore) Record(accountID, email, courseSlug, stripeSessionID string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO course_purchases (account_id, email, course_slug, stripe_session_id) VALUES (?, ?, ?, ?)`,
		accountID, email, courseSlug, nullable(stripeSessionID),
	)
	if err != nil {
		return fmt.Errorf("record course purchase: %w", err)
	}
	return nil
}

func (s *PurchaseStore) Has(accountID, courseSlug string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM course_purchases WHERE account_id = ? AND course_slug = ?`,
		accountID, courseSlug,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has course purchase: %w", err)
	}
	return true, nil
}

func (s *PurchaseStore) ListByAccount(accountID string) ([]*model.CoursePurchase, error) {
	rows, err := s.db.Query(
		`SELECT `+purchaseCols+` FROM course_purchases WHERE account_id = ?`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list course purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*model.CoursePurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
