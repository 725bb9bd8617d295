// ABOUTME: Outbound client for the WhatsApp Business (Graph) messages endpoint
// ABOUTME: Converts every delivery failure into a logged boolean, never an error

package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client sends text messages through the WhatsApp Business API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a WhatsApp client. baseURL is the Graph API root including
// version, e.g. "https://graph.facebook.com/v22.0".
func New(baseURL, accessToken, phoneNumberID string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:       baseURL,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger.With("component", "whatsapp"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// textMessage is the request body for a text send.
type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText delivers a text message to the given recipient. Delivery is
// fire-and-forget: transport errors and non-2xx responses are logged and
// reported as false, never propagated. There is no retry.
func (c *Client) SendText(ctx context.Context, to, body string) bool {
	msg := textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode message", "to", to, "error", err)
		return false
	}

	url := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("failed to build send request", "to", to, "error", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("failed to send message", "to", to, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("message send rejected",
			"to", to,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return false
	}

	c.logger.Info("message sent", "to", to)
	return true
}
