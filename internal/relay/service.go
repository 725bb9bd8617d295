// ABOUTME: Message orchestrator tying directory, assistant, and chat delivery together
// ABOUTME: One HandleMessage invocation owns the full lifecycle of one inbound message

package relay

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/relay-gateway/internal/webhook"
)

// unknownContact is used when the sender has no profile entry in the delivery.
const unknownContact = "Unknown"

// ConversationResolver maps a user to their conversation thread, creating
// one on first contact.
type ConversationResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// Assistant appends messages to a thread and produces replies.
type Assistant interface {
	AddMessage(ctx context.Context, threadID, text string) bool
	AwaitReply(ctx context.Context, threadID string) (string, bool)
}

// ReplySender delivers text back to the originating chat.
type ReplySender interface {
	SendText(ctx context.Context, to, body string) bool
}

// Formatter prepares assistant output for the chat medium.
type Formatter func(string) string

// Service orchestrates one inbound message end to end. Every failure along
// the way is terminal for that message: the user simply receives no reply,
// and nothing is retried.
type Service struct {
	resolver  ConversationResolver
	assistant Assistant
	sender    ReplySender
	format    Formatter
	logger    *slog.Logger
}

// New creates the orchestrator. format may be nil to send assistant output
// verbatim.
func New(resolver ConversationResolver, assistant Assistant, sender ReplySender, format Formatter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if format == nil {
		format = func(s string) string { return s }
	}
	return &Service{
		resolver:  resolver,
		assistant: assistant,
		sender:    sender,
		format:    format,
		logger:    logger.With("component", "relay"),
	}
}

// HandleMessage relays a single inbound message: resolve the sender's
// conversation thread, append the message, wait for the assistant's reply,
// and send it back. Implements webhook.Sink.
func (s *Service) HandleMessage(ctx context.Context, msg webhook.Message, contacts []webhook.Contact) {
	logger := s.logger.With("delivery_id", uuid.NewString())

	if msg.From == "" {
		logger.Error("message has no sender id", "message_id", msg.ID)
		return
	}

	name := contactName(contacts, msg.From)
	logger.Info("received message",
		"from", msg.From,
		"contact", name,
		"message_id", msg.ID,
	)

	threadID, err := s.resolver.Resolve(ctx, msg.From)
	if err != nil {
		logger.Error("failed to resolve conversation", "from", msg.From, "error", err)
		return
	}

	if !s.assistant.AddMessage(ctx, threadID, msg.Text.Body) {
		logger.Error("failed to append message, dropping", "thread_id", threadID)
		return
	}

	reply, ok := s.assistant.AwaitReply(ctx, threadID)
	if !ok {
		logger.Error("no assistant reply generated", "thread_id", threadID)
		return
	}

	// Fire and forget: a delivery failure is logged inside the sender and
	// changes nothing upstream.
	if s.sender.SendText(ctx, msg.From, s.format(reply)) {
		logger.Info("reply delivered", "to", msg.From, "contact", name)
	}
}

// contactName scans the delivery's contacts for the sender's display name.
// An absent profile is not an error.
func contactName(contacts []webhook.Contact, senderID string) string {
	for _, c := range contacts {
		if c.WaID == senderID && c.Profile.Name != "" {
			return c.Profile.Name
		}
	}
	return unknownContact
}
