package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Client sends transactional email through the Postmark API.
type Client struct {
	mu          sync.RWMutex
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverToken != ""
}

// UpdateConfig replaces the server token, sender address, and base URL.
// Safe to call while sends are in flight.
func (c *Client) UpdateConfig(serverToken, fromEmail, baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverToken = serverToken
	c.fromEmail = fromEmail
	c.baseURL = baseURL
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendResetCode emails a six digit password reset code.
func (c *Client) SendResetCode(toEmail, code string) error {
	c.mu.RLock()
	token := c.serverToken
	from := c.fromEmail
	base := c.baseURL
	c.mu.RUnlock()

	if token == "" {
		return fmt.Errorf("email client not configured: missing server token")
	}

	link := fmt.Sprintf("%s/reset/confirm", base)
	textBody := fmt.Sprintf(
		"Your password reset code is: %s\n\nEnter it at %s to choose a new password. The code expires in 15 minutes.\n\nIf you didn't request a reset, you can ignore this email.",
		code, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>Your password reset code is:</p><p style="font-size:24px;letter-spacing:4px"><strong>%s</strong></p><p>Enter it at <a href="%s">%s</a> to choose a new password. The code expires in 15 minutes.</p><p>If you didn't request a reset, you can ignore this email.</p>`,
		code, link, link,
	)

	payload := postmarkEmail{
		From:     from,
		To:       toEmail,
		Subject:  "Your Larder password reset code",
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)

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
