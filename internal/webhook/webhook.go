// ABOUTME: Parsing and dispatch for WhatsApp Business webhook deliveries
// ABOUTME: Handshake verification plus the never-fail notification walk

package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
)

// expectedObject is the top-level discriminator the provider stamps on
// WhatsApp Business payloads. Anything else is acknowledged and ignored.
const expectedObject = "whatsapp_business_account"

// HandshakeMode is the only hub.mode accepted during webhook verification.
const HandshakeMode = "subscribe"

// Outcome classifies how a delivery notification was handled. All outcomes
// map to the same HTTP 200 acknowledgment so the provider never retries, but
// the distinction stays visible to logs and tests.
type Outcome int

const (
	// OutcomeProcessed means at least the payload shape matched and any
	// message entries were dispatched.
	OutcomeProcessed Outcome = iota
	// OutcomeIgnored means the discriminator did not match this provider.
	OutcomeIgnored
	// OutcomeMalformed means the body was not decodable as a delivery.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Payload is the provider's delivery notification envelope.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one field's worth of updates.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value holds the messages, contacts, and status updates of a change.
type Value struct {
	Messages []Message `json:"messages"`
	Contacts []Contact `json:"contacts"`
	Statuses []Status  `json:"statuses"`
}

// Message is a single inbound message.
type Message struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Contact carries the sender's profile as the provider knows it.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// Status is a delivery/read receipt for an earlier outbound message.
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// VerifyHandshake checks the challenge-response parameters the provider
// sends when registering the endpoint. It returns the challenge to echo and
// whether verification succeeded. Pure function of its inputs.
func VerifyHandshake(mode, token, challenge, secret string) (string, bool) {
	if mode == HandshakeMode && token == secret {
		return challenge, true
	}
	return "", false
}

// Deduper suppresses redelivered message IDs.
type Deduper interface {
	Seen(key string) bool
}

// Sink receives individual inbound messages along with the contacts list
// that accompanied them in the delivery.
type Sink interface {
	HandleMessage(ctx context.Context, msg Message, contacts []Contact)
}

// Processor walks delivery notifications and hands message entries to a Sink.
type Processor struct {
	sink   Sink
	seen   Deduper
	logger *slog.Logger
}

// NewProcessor creates a webhook processor. seen may be nil to disable
// redelivery suppression.
func NewProcessor(sink Sink, seen Deduper, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		sink:   sink,
		seen:   seen,
		logger: logger.With("component", "webhook"),
	}
}

// Process decodes a delivery notification and dispatches its message entries.
// It never fails outward: malformed bodies and foreign payloads are reported
// through the Outcome only, and the HTTP layer acknowledges all of them.
func (p *Processor) Process(ctx context.Context, body []byte) Outcome {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		p.logger.Error("malformed webhook payload", "error", err)
		return OutcomeMalformed
	}

	if payload.Object != expectedObject {
		p.logger.Info("ignoring payload for unexpected object", "object", payload.Object)
		return OutcomeIgnored
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			if len(change.Value.Statuses) > 0 {
				p.logger.Info("received status update", "count", len(change.Value.Statuses))
				continue
			}

			for _, msg := range change.Value.Messages {
				if p.seen != nil && msg.ID != "" && p.seen.Seen(msg.ID) {
					p.logger.Info("skipping redelivered message", "message_id", msg.ID)
					continue
				}
				p.sink.HandleMessage(ctx, msg, change.Value.Contacts)
			}
		}
	}

	return OutcomeProcessed
}
