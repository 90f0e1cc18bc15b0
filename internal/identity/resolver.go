// Package identity maps a payment-provider email to a local account,
// creating one on demand for guest checkouts.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/terakoya-app/terakoya/internal/model"
	"github.com/terakoya-app/terakoya/internal/store"
)

type Resolver struct {
	accounts *store.AccountStore
}

func NewResolver(accounts *store.AccountStore) *Resolver {
	return &Resolver{accounts: accounts}
}

// ResolveOrCreate returns the account for email, creating one if none
// exists. A created account gets a hash of random bytes as its credential,
// so it cannot be logged into until the user sets a password. Safe to call
// repeatedly for the same email: a lost creation race falls back to
// re-reading the winner's row.
func (r *Resolver) ResolveOrCreate(email string) (*model.Account, error) {
	account, err := r.accounts.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if account != nil {
		return account, nil
	}

	secret, err := unusableSecret()
	if err != nil {
		return nil, err
	}

	account, err = r.accounts.Create(uuid.NewString(), email, secret, "")
	if err == store.ErrDuplicateEmail {
		account, err = r.accounts.GetByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("re-read account after race: %w", err)
		}
		if account == nil {
			return nil, fmt.Errorf("account for %s vanished after duplicate insert", email)
		}
		return account, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func unusableSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate credential secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(raw)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential secret: %w", err)
	}
	return string(hash), nil
}
