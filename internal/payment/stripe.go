// Package payment wraps the Stripe SDK: outbound checkout sessions and
// inbound webhook verification.
package payment

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/terakoya-app/terakoya/internal/catalog"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// Configured reports whether an API credential is present. Callers must
// check this before building sessions; its absence is a server-side
// configuration error, not a client error.
func (c *Client) Configured() bool {
	return c.cfg.SecretKey != ""
}

// Session is the caller-facing result of a checkout session: where to send
// the user and the opaque reference the webhook will echo back.
type Session struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// CreateCourseSession builds a one-time payment session for a single
// course. The metadata carries the course title so the webhook can compose
// the confirmation email without consulting the catalog.
func (c *Client) CreateCourseSession(course catalog.Course) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(course.Title),
						Description: stripe.String(fmt.Sprintf("Terakoya course: %s (%d lessons)", course.Title, course.TotalLessons)),
					},
					UnitAmount: stripe.Int64(course.Price),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	params.AddMetadata("type", "course")
	params.AddMetadata("courseSlug", course.Slug)
	params.AddMetadata("courseTitle", course.Title)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create course checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePlanSession builds a recurring monthly subscription session for a
// paid plan tier.
func (c *Client) CreatePlanSession(plan catalog.Plan) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(plan.Name),
						Description: stripe.String(fmt.Sprintf("Terakoya %s plan, billed monthly", plan.Name)),
					},
					UnitAmount: stripe.Int64(plan.Amount),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	params.AddMetadata("type", "plan")
	params.AddMetadata("planId", plan.ID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create plan checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// ConstructWebhookEvent verifies the signature over the raw body and
// returns the parsed event. API version drift between the SDK and the
// Stripe account is tolerated; the signature check is what matters.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
