package store

import (
	"testing"

	"github.com/terakoya-app/terakoya/internal/database"
)

func setupNewsletterTestDB(t *testing.T) *NewsletterStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewNewsletterStore(db)
}

func TestNewsletterSubscribe(t *testing.T) {
	s := setupNewsletterTestDB(t)

	sub, err := s.Subscribe("alice@example.com")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscriber, got nil")
	}
	if sub.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", sub.Email, "alice@example.com")
	}
	if sub.ID == "" {
		t.Error("expected generated id")
	}
}

func TestNewsletterSubscribeRepeatKeepsFirstRow(t *testing.T) {
	s := setupNewsletterTestDB(t)

	first, _ := s.Subscribe("alice@example.com")
	second, err := s.Subscribe("alice@example.com")
	if err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %q, want original %q", second.ID, first.ID)
	}
}
