// Package email sends transactional mail through Postmark. All sends are
// best-effort; callers log failures and move on.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint, used by tests.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendPurchaseConfirmation confirms a one-time course purchase.
func (c *Client) SendPurchaseConfirmation(toEmail, courseTitle string) error {
	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  fmt.Sprintf("Your course: %s", courseTitle),
		TextBody: fmt.Sprintf("Thanks for your purchase!\n\nYou now have full access to %s. Sign in with this email address to start learning.", courseTitle),
		HtmlBody: fmt.Sprintf("<p>Thanks for your purchase!</p><p>You now have full access to <strong>%s</strong>. Sign in with this email address to start learning.</p>", courseTitle),
	})
}

// SendSubscriptionActivated confirms a new plan subscription.
func (c *Client) SendSubscriptionActivated(toEmail, planName string) error {
	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  fmt.Sprintf("Welcome to Terakoya %s", planName),
		TextBody: fmt.Sprintf("Your %s subscription is active. Every course and lesson is now open to you.", planName),
		HtmlBody: fmt.Sprintf("<p>Your <strong>%s</strong> subscription is active. Every course and lesson is now open to you.</p>", planName),
	})
}

// SendCancellationNotice confirms a subscription has ended.
func (c *Client) SendCancellationNotice(toEmail string) error {
	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  "Your Terakoya subscription has ended",
		TextBody: "Your subscription has been cancelled. Courses you purchased individually remain yours, and the free preview lessons are always open.",
		HtmlBody: "<p>Your subscription has been cancelled. Courses you purchased individually remain yours, and the free preview lessons are always open.</p>",
	})
}

func (c *Client) send(msg postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
