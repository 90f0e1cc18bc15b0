package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/terakoya-app/terakoya/internal/model"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("account email already exists")

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var stripeID sql.NullString
	err := scanner.Scan(&a.ID, &a.Email, &a.Name, &a.Plan, &stripeID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if stripeID.Valid {
		a.StripeCustomerID = &stripeID.String
	}
	return &a, nil
}

const accountCols = `id, email, name, plan, stripe_customer_id, created_at, updated_at`

// Create inserts a new account. The caller supplies the id so account
// creation stays idempotent across webhook retries that re-generate it.
func (s *AccountStore) Create(id, email, passwordHash, name string) (*model.Account, error) {
	_, err := s.db.Exec(
		`INSERT INTO accounts (id, email, password_hash, name) VALUES (?, ?, ?, ?)`,
		id, email, passwordHash, name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(email string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// GetPasswordHash returns the stored credential hash, or "" if the account
// does not exist.
func (s *AccountStore) GetPasswordHash(id string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM accounts WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash, nil
}

// UpdatePlan overwrites the denormalized plan tier cache.
func (s *AccountStore) UpdatePlan(id, plan string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET plan = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		plan, id,
	)
	if err != nil {
		return fmt.Errorf("update account plan: %w", err)
	}
	return nil
}

// UpdateStripeCustomerID links the payment-provider customer reference.
func (s *AccountStore) UpdateStripeCustomerID(id, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE accounts SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

// isUniqueViolation matches SQLite's unique-constraint error text. The
// modernc driver exposes no typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
