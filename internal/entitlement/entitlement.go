// Package entitlement decides whether a user may view a lesson. It only
// reads ledger state; it never mutates anything.
package entitlement

import (
	"fmt"

	"github.com/terakoya-app/terakoya/internal/catalog"
	"github.com/terakoya-app/terakoya/internal/model"
	"github.com/terakoya-app/terakoya/internal/store"
)

type Reason string

const (
	ReasonFreePreview      Reason = "free_preview"
	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonSubscription     Reason = "subscription"
	ReasonPurchased        Reason = "purchased"
	ReasonNoAccess         Reason = "no_access"
)

type Decision struct {
	HasAccess bool   `json:"hasAccess"`
	Reason    Reason `json:"reason"`
}

type Evaluator struct {
	subscriptions *store.SubscriptionStore
	purchases     *store.PurchaseStore
}

func NewEvaluator(subscriptions *store.SubscriptionStore, purchases *store.PurchaseStore) *Evaluator {
	return &Evaluator{subscriptions: subscriptions, purchases: purchases}
}

// Evaluate applies the access rules in order; the first match wins.
// accountID == "" means no authenticated user. The free-preview check runs
// before authentication so anonymous visitors can always preview.
func (e *Evaluator) Evaluate(courseSlug string, lesson int, accountID string) (Decision, error) {
	if lesson <= catalog.FreePreviewLessons {
		return Decision{HasAccess: true, Reason: ReasonFreePreview}, nil
	}

	if accountID == "" {
		return Decision{HasAccess: false, Reason: ReasonNotAuthenticated}, nil
	}

	sub, err := e.subscriptions.GetActiveByAccountID(accountID)
	if err != nil {
		return Decision{}, fmt.Errorf("subscription lookup: %w", err)
	}
	// An active row with a non-paid tier must not grant access, even
	// though the reconciler never writes one.
	if sub != nil && model.PaidTier(sub.Plan) {
		return Decision{HasAccess: true, Reason: ReasonSubscription}, nil
	}

	purchased, err := e.purchases.Has(accountID, courseSlug)
	if err != nil {
		return Decision{}, fmt.Errorf("purchase lookup: %w", err)
	}
	if purchased {
		return Decision{HasAccess: true, Reason: ReasonPurchased}, nil
	}

	return Decision{HasAccess: false, Reason: ReasonNoAccess}, nil
}
