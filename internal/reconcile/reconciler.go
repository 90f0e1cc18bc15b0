// Package reconcile applies payment-provider webhook events to the ledger.
// Every transition is idempotent: the provider retries deliveries and does
// not guarantee order, so replays must never double-grant.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/terakoya-app/terakoya/internal/catalog"
	"github.com/terakoya-app/terakoya/internal/identity"
	"github.com/terakoya-app/terakoya/internal/model"
	"github.com/terakoya-app/terakoya/internal/store"
)

// Notifier sends best-effort confirmation mail. A nil or unconfigured
// notifier turns every send into a logged no-op.
type Notifier interface {
	Configured() bool
	SendPurchaseConfirmation(to, courseTitle string) error
	SendSubscriptionActivated(to, planName string) error
	SendCancellationNotice(to string) error
}

// Outcome reports what applying one event did. Committed covers only
// durable ledger writes; NotifyErr is the independent best-effort email
// result, and Err never propagates to the HTTP response (the webhook
// acknowledges fulfillment failures so the provider stops retrying).
type Outcome struct {
	Handled   bool
	Committed bool
	Err       error
	NotifyErr error
}

type Reconciler struct {
	accounts      *store.AccountStore
	subscriptions *store.SubscriptionStore
	purchases     *store.PurchaseStore
	resolver      *identity.Resolver
	notifier      Notifier
	logger        *slog.Logger
}

func New(
	accounts *store.AccountStore,
	subscriptions *store.SubscriptionStore,
	purchases *store.PurchaseStore,
	resolver *identity.Resolver,
	notifier Notifier,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		accounts:      accounts,
		subscriptions: subscriptions,
		purchases:     purchases,
		resolver:      resolver,
		notifier:      notifier,
		logger:        logger,
	}
}

// HandleEvent dispatches a verified event. Unknown event types are
// deliberately ignored; the endpoint subscribes to more types than it
// fulfills.
func (r *Reconciler) HandleEvent(event stripe.Event) Outcome {
	switch event.Type {
	case "checkout.session.completed":
		return r.handleCheckoutCompleted(event)
	case "customer.subscription.updated":
		return r.handleSubscriptionUpdated(event)
	case "customer.subscription.deleted":
		return r.handleSubscriptionDeleted(event)
	case "payment_intent.payment_failed":
		// The matching subscription-status event drives any downgrade.
		r.logger.Warn("payment failed", "event_id", event.ID)
		return Outcome{Handled: true}
	default:
		r.logger.Debug("unhandled event type", "type", event.Type)
		return Outcome{}
	}
}

func (r *Reconciler) handleCheckoutCompleted(event stripe.Event) Outcome {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("unmarshal checkout session: %w", err)}
	}

	var email string
	if sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	if email == "" {
		r.logger.Warn("checkout session missing customer email", "session", sess.ID)
		return Outcome{Handled: true}
	}

	account, err := r.resolver.ResolveOrCreate(email)
	if err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("resolve account: %w", err)}
	}

	if sess.Customer != nil && sess.Customer.ID != "" {
		if err := r.accounts.UpdateStripeCustomerID(account.ID, sess.Customer.ID); err != nil {
			r.logger.Error("link billing identity", "error", err)
		}
	}

	switch sess.Metadata["type"] {
	case "course":
		return r.fulfillCoursePurchase(account, email, sess)
	case "plan":
		return r.fulfillPlanSubscription(account, email, sess)
	default:
		r.logger.Warn("checkout session with unknown metadata type", "session", sess.ID, "metadata_type", sess.Metadata["type"])
		return Outcome{Handled: true}
	}
}

func (r *Reconciler) fulfillCoursePurchase(account *model.Account, email string, sess stripe.CheckoutSession) Outcome {
	slug := sess.Metadata["courseSlug"]
	if slug == "" {
		r.logger.Warn("course checkout missing courseSlug", "session", sess.ID)
		return Outcome{Handled: true}
	}

	if err := r.purchases.Record(account.ID, email, slug, sess.ID); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("record purchase: %w", err)}
	}

	title := sess.Metadata["courseTitle"]
	if title == "" {
		title = slug
	}
	out := Outcome{Handled: true, Committed: true}
	out.NotifyErr = r.notify(func(n Notifier) error {
		return n.SendPurchaseConfirmation(email, title)
	})
	r.logger.Info("course purchase fulfilled", "account", account.ID, "course", slug)
	return out
}

func (r *Reconciler) fulfillPlanSubscription(account *model.Account, email string, sess stripe.CheckoutSession) Outcome {
	planID := sess.Metadata["planId"]
	if planID == "" {
		r.logger.Warn("plan checkout missing planId", "session", sess.ID)
		return Outcome{Handled: true}
	}

	// sess.Subscription arrives as either a bare id string or an
	// expanded object; the SDK normalizes both into the ID field.
	var subRef string
	if sess.Subscription != nil {
		subRef = sess.Subscription.ID
	}

	if _, err := r.subscriptions.Supersede(account.ID, email, planID, subRef); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("supersede subscription: %w", err)}
	}
	if err := r.accounts.UpdatePlan(account.ID, planID); err != nil {
		return Outcome{Handled: true, Committed: true, Err: fmt.Errorf("mirror plan onto account: %w", err)}
	}

	planName := planID
	if p := catalog.FindPlan(planID); p != nil {
		planName = p.Name
	}
	out := Outcome{Handled: true, Committed: true}
	out.NotifyErr = r.notify(func(n Notifier) error {
		return n.SendSubscriptionActivated(email, planName)
	})
	r.logger.Info("plan subscription fulfilled", "account", account.ID, "plan", planID)
	return out
}

func (r *Reconciler) handleSubscriptionUpdated(event stripe.Event) Outcome {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("unmarshal subscription: %w", err)}
	}

	local, err := r.subscriptions.GetByStripeID(stripeSub.ID)
	if err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("lookup subscription: %w", err)}
	}
	if local == nil {
		r.logger.Warn("subscription event for unknown subscription", "stripe_id", stripeSub.ID)
		return Outcome{Handled: true}
	}

	status := mapStatus(stripeSub.Status)
	if err := r.subscriptions.UpdateStatus(local.ID, status); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("update status: %w", err)}
	}
	if end := periodEnd(&stripeSub); !end.IsZero() {
		if err := r.subscriptions.UpdatePeriodEnd(local.ID, end); err != nil {
			return Outcome{Handled: true, Committed: true, Err: fmt.Errorf("update period end: %w", err)}
		}
	}

	// Fail closed: any non-active signal strips paid access immediately
	// rather than waiting for a deletion event.
	if status != model.StatusActive {
		if err := r.accounts.UpdatePlan(local.AccountID, model.TierFree); err != nil {
			return Outcome{Handled: true, Committed: true, Err: fmt.Errorf("downgrade account: %w", err)}
		}
	}

	r.logger.Info("subscription status updated", "subscription", local.ID, "status", status)
	return Outcome{Handled: true, Committed: true}
}

func (r *Reconciler) handleSubscriptionDeleted(event stripe.Event) Outcome {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("unmarshal subscription: %w", err)}
	}

	local, err := r.subscriptions.GetByStripeID(stripeSub.ID)
	if err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("lookup subscription: %w", err)}
	}
	if local == nil {
		r.logger.Warn("deletion event for unknown subscription", "stripe_id", stripeSub.ID)
		return Outcome{Handled: true}
	}

	if err := r.subscriptions.UpdateStatus(local.ID, model.StatusCancelled); err != nil {
		return Outcome{Handled: true, Err: fmt.Errorf("cancel subscription: %w", err)}
	}
	if err := r.accounts.UpdatePlan(local.AccountID, model.TierFree); err != nil {
		return Outcome{Handled: true, Committed: true, Err: fmt.Errorf("downgrade account: %w", err)}
	}

	out := Outcome{Handled: true, Committed: true}
	out.NotifyErr = r.notify(func(n Notifier) error {
		return n.SendCancellationNotice(local.Email)
	})
	r.logger.Info("subscription cancelled", "subscription", local.ID)
	return out
}

func (r *Reconciler) notify(send func(Notifier) error) error {
	if r.notifier == nil || !r.notifier.Configured() {
		r.logger.Info("notification skipped: email not configured")
		return nil
	}
	if err := send(r.notifier); err != nil {
		r.logger.Error("notification failed", "error", err)
		return err
	}
	return nil
}

// mapStatus translates Stripe's status vocabulary into ours. Anything
// unrecognized is treated as cancelled so access fails closed.
func mapStatus(s stripe.SubscriptionStatus) string {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return model.StatusActive
	case stripe.SubscriptionStatusPastDue:
		return model.StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid:
		return model.StatusCancelled
	case stripe.SubscriptionStatusIncompleteExpired:
		return model.StatusExpired
	default:
		return model.StatusCancelled
	}
}

// periodEnd pulls the billing-period end off the first subscription item,
// where newer API versions carry it. Zero means the event had none.
func periodEnd(sub *stripe.Subscription) time.Time {
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		return time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	return time.Time{}
}
