// ABOUTME: Tests for the message orchestrator's short-circuit behavior
// ABOUTME: Uses hand-written fakes to assert exactly which collaborators are called

package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/relay-gateway/internal/webhook"
)

type fakeResolver struct {
	threadID string
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.threadID, f.err
}

type fakeAssistant struct {
	addOK    bool
	reply    string
	replyOK  bool
	addCalls int
	runCalls int
	lastText string
}

func (f *fakeAssistant) AddMessage(_ context.Context, _, text string) bool {
	f.addCalls++
	f.lastText = text
	return f.addOK
}

func (f *fakeAssistant) AwaitReply(_ context.Context, _ string) (string, bool) {
	f.runCalls++
	return f.reply, f.replyOK
}

type fakeSender struct {
	ok       bool
	calls    int
	lastTo   string
	lastBody string
}

func (f *fakeSender) SendText(_ context.Context, to, body string) bool {
	f.calls++
	f.lastTo = to
	f.lastBody = body
	return f.ok
}

func textMessage(id, from, body string) webhook.Message {
	var msg webhook.Message
	msg.ID = id
	msg.From = from
	msg.Type = "text"
	msg.Text.Body = body
	return msg
}

func TestHandleMessage_HappyPath(t *testing.T) {
	resolver := &fakeResolver{threadID: "thread_1"}
	asst := &fakeAssistant{addOK: true, reply: "Hi there", replyOK: true}
	sender := &fakeSender{ok: true}
	svc := New(resolver, asst, sender, nil, nil)

	svc.HandleMessage(context.Background(), textMessage("wamid.1", "111", "Hello"), nil)

	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, asst.addCalls)
	assert.Equal(t, "Hello", asst.lastText)
	assert.Equal(t, 1, asst.runCalls)
	require.Equal(t, 1, sender.calls)
	assert.Equal(t, "111", sender.lastTo)
	assert.Equal(t, "Hi there", sender.lastBody)
}

func TestHandleMessage_MissingSenderAborts(t *testing.T) {
	resolver := &fakeResolver{threadID: "thread_1"}
	asst := &fakeAssistant{addOK: true, reply: "Hi", replyOK: true}
	sender := &fakeSender{ok: true}
	svc := New(resolver, asst, sender, nil, nil)

	svc.HandleMessage(context.Background(), textMessage("wamid.1", "", "Hello"), nil)

	assert.Zero(t, resolver.calls, "no conversation lookup without a sender")
	assert.Zero(t, asst.addCalls)
	assert.Zero(t, asst.runCalls)
	assert.Zero(t, sender.calls)
}

func TestHandleMessage_ResolveFailureAborts(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("provider down")}
	asst := &fakeAssistant{addOK: true, reply: "Hi", replyOK: true}
	sender := &fakeSender{ok: true}
	svc := New(resolver, asst, sender, nil, nil)

	svc.HandleMessage(context.Background(), textMessage("wamid.1", "111", "Hello"), nil)

	assert.Zero(t, asst.addCalls)
	assert.Zero(t, sender.calls)
}

func TestHandleMessage_AppendFailureShortCircuits(t *testing.T) {
	resolver := &fakeResolver{threadID: "thread_1"}
	asst := &fakeAssistant{addOK: false}
	sender := &fakeSender{ok: true}
	svc := New(resolver, asst, sender, nil, nil)

	svc.HandleMessage(context.Background(), textMessage("wamid.1", "111", "Hello"), nil)

	assert.Equal(t, 1, asst.addCalls)
	assert.Zero(t, asst.runCalls, "append failure must prevent the run")
	assert.Zero(t, sender.calls)
}

func TestHandleMessage_NoReplyNoSend(t *testing.T) {
	resolver := &fakeResolver{threadID: "thread_1"}
	asst := &fakeAssistant{addOK: true, replyOK: false}
	sender := &fakeSender{ok: true}
	svc := New(resolver, asst, sender, nil, nil)

	svc.HandleMessage(context.Background(), textMessage("wamid.1", "111", "Hello"), nil)

	assert.Equal(t, 1, asst.runCalls)
	assert.Zero(t, sender.calls)
}

func TestHandleMessage_DeliveryFailureIsTerminal(t *testing.T) {
	resolver := &fakeResolver{threadID: "thread_1"}
	asst := &fakeAssistant{addOK: true, reply: "Hi", replyOK: true}
	sender := &fakeSender{ok: false}
	svc := New(resolver, asst, sender, nil, nil)

	// Must not panic or retry; the failure is logged and swallowed.
	svc.HandleMessage(context.Background(), textMessage("wamid.1", "111", "Hello"), nil)
	assert.Equal(t, 1, sender.calls)
}

func TestHandleMessage_FormatterApplied(t *testing.T) {
	resolver := &fakeResolver{threadID: "thread_1"}
	asst := &fakeAssistant{addOK: true, reply: "**bold** move", replyOK: true}
	sender := &fakeSender{ok: true}
	format := func(s string) string { return "formatted: " + s }
	svc := New(resolver, asst, sender, format, nil)

	svc.HandleMessage(context.Background(), textMessage("wamid.1", "111", "Hello"), nil)

	assert.Equal(t, "formatted: **bold** move", sender.lastBody)
}

func TestContactName(t *testing.T) {
	var ada webhook.Contact
	ada.WaID = "111"
	ada.Profile.Name = "Ada"

	var anon webhook.Contact
	anon.WaID = "222"

	tests := []struct {
		name     string
		contacts []webhook.Contact
		senderID string
		want     string
	}{
		{"match", []webhook.Contact{ada}, "111", "Ada"},
		{"no match", []webhook.Contact{ada}, "333", unknownContact},
		{"empty list", nil, "111", unknownContact},
		{"match without profile name", []webhook.Contact{anon}, "222", unknownContact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contactName(tt.contacts, tt.senderID))
		})
	}
}
