// ABOUTME: Tests for the assistant client's REST calls and run polling loop
// ABOUTME: Uses a fake provider server and an instant sleeper to avoid real delays

package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable stand-in for the assistants API.
type fakeProvider struct {
	t *testing.T

	statuses     []string // returned by successive run-status polls
	replyText    string
	emptyResults bool

	createCalls  int
	messageCalls int
	runCalls     int
	statusCalls  int
	listCalls    int
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		f.createCalls++
		writeJSON(w, map[string]string{"id": fmt.Sprintf("thread_%d", f.createCalls)})
	})
	mux.HandleFunc("POST /threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.messageCalls++
		writeJSON(w, map[string]string{"id": "msg_1"})
	})
	mux.HandleFunc("POST /threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		f.runCalls++
		writeJSON(w, map[string]string{"id": "run_1", "status": StatusQueued})
	})
	mux.HandleFunc("GET /threads/{id}/runs/{rid}", func(w http.ResponseWriter, r *http.Request) {
		require.Less(f.t, f.statusCalls, len(f.statuses), "poll past the scripted status sequence")
		status := f.statuses[f.statusCalls]
		f.statusCalls++
		writeJSON(w, map[string]string{"id": "run_1", "status": status})
	})
	mux.HandleFunc("GET /threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls++
		if f.emptyResults {
			writeJSON(w, map[string]any{"data": []any{}})
			return
		}
		writeJSON(w, map[string]any{
			"data": []map[string]any{
				{"content": []map[string]any{{"text": map[string]string{"value": f.replyText}}}},
			},
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestClient(t *testing.T, f *fakeProvider, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	opts = append([]Option{WithSleeper(noSleep)}, opts...)
	return New(srv.URL, "sk-test", "asst_test", slog.Default(), opts...)
}

func TestCreateThread(t *testing.T) {
	f := &fakeProvider{t: t}
	c := newTestClient(t, f)

	id, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread_1", id)
	assert.Equal(t, 1, f.createCalls)
}

func TestCreateThread_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", "asst_test", slog.Default(), WithSleeper(noSleep))
	_, err := c.CreateThread(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestAddMessage(t *testing.T) {
	f := &fakeProvider{t: t}
	c := newTestClient(t, f)

	assert.True(t, c.AddMessage(context.Background(), "thread_1", "hello"))
	assert.Equal(t, 1, f.messageCalls)
}

func TestAddMessage_FailureReturnsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test", "asst_test", slog.Default(), WithSleeper(noSleep))
	assert.False(t, c.AddMessage(context.Background(), "thread_1", "hello"))
}

func TestAwaitReply_CompletesAfterPolling(t *testing.T) {
	f := &fakeProvider{
		t:         t,
		statuses:  []string{StatusInProgress, StatusInProgress, StatusCompleted},
		replyText: "Hi there",
	}
	c := newTestClient(t, f)

	text, ok := c.AwaitReply(context.Background(), "thread_1")
	require.True(t, ok)
	assert.Equal(t, "Hi there", text)
	assert.Equal(t, 1, f.runCalls)
	assert.Equal(t, 3, f.statusCalls, "should stop polling at the terminal status")
	assert.Equal(t, 1, f.listCalls)
}

func TestAwaitReply_BudgetExhausted(t *testing.T) {
	statuses := make([]string, 10)
	for i := range statuses {
		statuses[i] = StatusInProgress
	}
	f := &fakeProvider{t: t, statuses: statuses}
	c := newTestClient(t, f)

	text, ok := c.AwaitReply(context.Background(), "thread_1")
	assert.False(t, ok)
	assert.Empty(t, text)
	assert.Equal(t, 10, f.statusCalls, "must not issue an 11th status check")
	assert.Zero(t, f.listCalls)
}

func TestAwaitReply_TerminalFailureStates(t *testing.T) {
	for _, status := range []string{StatusFailed, StatusCancelled, StatusExpired} {
		t.Run(status, func(t *testing.T) {
			f := &fakeProvider{t: t, statuses: []string{StatusInProgress, status}}
			c := newTestClient(t, f)

			text, ok := c.AwaitReply(context.Background(), "thread_1")
			assert.False(t, ok)
			assert.Empty(t, text)
			assert.Equal(t, 2, f.statusCalls)
			assert.Zero(t, f.listCalls, "no result fetch after a failed run")
		})
	}
}

func TestAwaitReply_EmptyResultList(t *testing.T) {
	f := &fakeProvider{
		t:            t,
		statuses:     []string{StatusCompleted},
		emptyResults: true,
	}
	c := newTestClient(t, f)

	text, ok := c.AwaitReply(context.Background(), "thread_1")
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestAwaitReply_ContextCanceled(t *testing.T) {
	f := &fakeProvider{t: t, statuses: []string{StatusInProgress}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Real sleeper: the canceled context must abort the wait immediately.
	c := New(srv.URL, "sk-test", "asst_test", slog.Default(),
		WithPolling(time.Hour, 10))

	done := make(chan struct{})
	var ok bool
	go func() {
		_, ok = c.AwaitReply(ctx, "thread_1")
		close(done)
	}()

	select {
	case <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitReply did not honor context cancellation")
	}
	assert.Zero(t, f.statusCalls)
}

func TestAwaitReply_CustomBudget(t *testing.T) {
	f := &fakeProvider{t: t, statuses: []string{StatusInProgress, StatusInProgress, StatusInProgress}}
	c := newTestClient(t, f, WithPolling(time.Second, 3))

	_, ok := c.AwaitReply(context.Background(), "thread_1")
	assert.False(t, ok)
	assert.Equal(t, 3, f.statusCalls)
}
