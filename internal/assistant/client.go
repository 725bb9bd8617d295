// ABOUTME: HTTP client for the OpenAI Assistants API (threads, messages, runs)
// ABOUTME: Owns the fixed-budget run polling loop that bounds reply latency

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Run statuses reported by the provider. A run is terminal once it reaches
// completed, failed, cancelled, or expired; queued and in_progress mean the
// run is still working.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusExpired    = "expired"
)

// APIError is returned when the provider answers with a non-2xx status.
type APIError struct {
	Operation string
	Status    int
	Body      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant %s: status %d: %s", e.Operation, e.Status, e.Body)
}

// Client talks to the OpenAI Assistants v2 REST API.
type Client struct {
	baseURL     string
	apiKey      string
	assistantID string
	httpClient  *http.Client
	logger      *slog.Logger

	pollInterval time.Duration
	pollAttempts int

	// sleep is indirected so tests can run the poll loop without real time.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPolling overrides the run polling interval and attempt budget.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if attempts > 0 {
			c.pollAttempts = attempts
		}
	}
}

// WithSleeper replaces the sleep function used between poll attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// New creates an assistant client for the given API key and assistant ID.
func New(baseURL, apiKey, assistantID string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		assistantID:  assistantID,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger.With("component", "assistant"),
		pollInterval: time.Second,
		pollAttempts: 10,
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type messageList struct {
	Data []struct {
		Content []struct {
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// CreateThread creates a new conversation thread and returns its ID.
// Non-2xx responses and transport failures are returned as errors so the
// caller can decide whether to retry on a later message.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var resp threadResponse
	if err := c.do(ctx, http.MethodPost, "/threads", nil, &resp); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	return resp.ID, nil
}

// AddMessage appends a user message to the thread. Failures are logged and
// reported as false rather than returned, so the caller decides whether to
// abort the exchange.
func (c *Client) AddMessage(ctx context.Context, threadID, text string) bool {
	body := map[string]string{"role": "user", "content": text}
	err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil)
	if err != nil {
		c.logger.Error("failed to add message to thread", "thread_id", threadID, "error", err)
		return false
	}
	return true
}

// AwaitReply starts a run on the thread and polls its status at a fixed
// interval up to a fixed attempt budget. On completion it returns the text of
// the latest assistant message. Terminal failure, polling exhaustion, an empty
// result list, and transport errors all yield ("", false); the caller cannot
// distinguish them, which bounds worst-case handling latency at roughly
// interval*attempts while silently dropping slow runs.
func (c *Client) AwaitReply(ctx context.Context, threadID string) (string, bool) {
	runID, err := c.startRun(ctx, threadID)
	if err != nil {
		c.logger.Error("failed to start run", "thread_id", threadID, "error", err)
		return "", false
	}

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			c.logger.Warn("run poll canceled", "thread_id", threadID, "run_id", runID, "error", err)
			return "", false
		}

		status, err := c.runStatus(ctx, threadID, runID)
		if err != nil {
			c.logger.Error("failed to poll run status", "thread_id", threadID, "run_id", runID, "error", err)
			return "", false
		}

		switch status {
		case StatusCompleted:
			text, err := c.latestMessage(ctx, threadID)
			if err != nil {
				c.logger.Error("failed to fetch run result", "thread_id", threadID, "run_id", runID, "error", err)
				return "", false
			}
			if text == "" {
				return "", false
			}
			return text, true
		case StatusFailed, StatusCancelled, StatusExpired:
			c.logger.Error("run ended without result", "thread_id", threadID, "run_id", runID, "status", status)
			return "", false
		}
	}

	c.logger.Warn("run polling budget exhausted",
		"thread_id", threadID,
		"run_id", runID,
		"attempts", c.pollAttempts,
	)
	return "", false
}

// startRun kicks off an assistant run against the thread.
func (c *Client) startRun(ctx context.Context, threadID string) (string, error) {
	body := map[string]string{"assistant_id": c.assistantID}
	var resp runResponse
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// runStatus fetches the current status of a run.
func (c *Client) runStatus(ctx context.Context, threadID, runID string) (string, error) {
	var resp runResponse
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// latestMessage returns the text of the newest message on the thread, or ""
// if the thread has no messages. The provider lists messages newest-first.
func (c *Client) latestMessage(ctx context.Context, threadID string) (string, error) {
	var resp messageList
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages", nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Content) == 0 {
		return "", nil
	}
	return resp.Data[0].Content[0].Text.Value, nil
}

// do issues a single JSON request against the provider API.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Operation: method + " " + path, Status: resp.StatusCode, Body: string(snippet)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
