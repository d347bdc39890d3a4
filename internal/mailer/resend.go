// Package mailer delivers magic-link sign-in emails.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer sends a sign-in link to an email address.
type Mailer interface {
	SendMagicLink(ctx context.Context, email, url string) error
}

const defaultResendBaseURL = "https://api.resend.com"

// ResendConfig configures the Resend email client.
type ResendConfig struct {
	APIKey  string
	From    string // e.g. "Photalabs <noreply@photalabs.com>"
	BaseURL string
	Timeout time.Duration
}

// Resend implements Mailer against Resend's REST API.
type Resend struct {
	cfg        ResendConfig
	httpClient *http.Client
}

var _ Mailer = (*Resend)(nil)

func NewResend(cfg ResendConfig) *Resend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultResendBaseURL
	}
	if cfg.From == "" {
		cfg.From = "Photalabs <noreply@photalabs.com>"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Resend{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether API credentials are present.
func (r *Resend) Configured() bool {
	return r.cfg.APIKey != ""
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

func (r *Resend) SendMagicLink(ctx context.Context, email, url string) error {
	payload := sendRequest{
		From:    r.cfg.From,
		To:      email,
		Subject: "Sign in to Photalabs",
		HTML:    fmt.Sprintf(`<p>Click the link below to sign in:</p><p><a href="%s">Sign in to Photalabs</a></p>`, url),
		Text:    fmt.Sprintf("Sign in to Photalabs: %s", url),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mailer: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailer: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: sending email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: resend error: status=%d body=%s", resp.StatusCode, detail)
	}

	return nil
}
