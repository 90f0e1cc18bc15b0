package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/terakoya-app/terakoya/internal/model"
)

type NewsletterStore struct {
	db *sql.DB
}

func NewNewsletterStore(db *sql.DB) *NewsletterStore {
	return &NewsletterStore{db: db}
}

// Subscribe records an email address, ignoring repeats.
func (s *NewsletterStore) Subscribe(email string) (*model.NewsletterSubscriber, error) {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO newsletter_subscribers (id, email) VALUES (?, ?)`,
		uuid.NewString(), email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert newsletter subscriber: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *NewsletterStore) GetByEmail(email string) (*model.NewsletterSubscriber, error) {
	var sub model.NewsletterSubscriber
	err := s.db.QueryRow(
		`SELECT id, email, created_at FROM newsletter_subscribers WHERE email = ?`,
		email,
	).Scan(&sub.ID, &sub.Email, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get newsletter subscriber: %w", err)
	}
	return &sub, nil
}
