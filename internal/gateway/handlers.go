// ABOUTME: HTTP handlers for the webhook, health, and banner endpoints
// ABOUTME: The webhook POST always answers 200 so the provider never retries

package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/2389/relay-gateway/internal/webhook"
)

// Version is stamped by the build; surfaced in the banner endpoint.
var Version = "dev"

// maxWebhookBody bounds how much of a delivery notification is read.
const maxWebhookBody = 1 << 20

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	Conversations int    `json:"conversations"`
}

// homeResponse is the JSON body for GET /.
type homeResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// handleHandshake answers the provider's webhook verification challenge.
func (g *Gateway) handleHandshake(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := webhook.VerifyHandshake(
		q.Get("hub.mode"),
		q.Get("hub.verify_token"),
		q.Get("hub.challenge"),
		g.config.WhatsApp.VerifyToken,
	)
	if !ok {
		g.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	g.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleDelivery accepts a delivery notification and acknowledges it
// unconditionally. Outcome classification is for logs only.
func (g *Gateway) handleDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		g.logger.Error("failed to read webhook body", "error", err)
		body = nil
	}

	outcome := g.processor.Process(r.Context(), body)
	g.logger.Debug("delivery handled", "outcome", outcome.String())

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleHealth reports liveness and the number of tracked conversations.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Conversations: g.directory.Count(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleHome serves the static service banner.
func (g *Gateway) handleHome(w http.ResponseWriter, r *http.Request) {
	resp := homeResponse{
		Service: "relay-gateway",
		Status:  "running",
		Version: Version,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
