// ABOUTME: Conversation directory mapping end users to provider thread handles
// ABOUTME: First message from a user creates a thread; every later message reuses it

package directory

import (
	"context"
	"fmt"
	"log/slog"
)

// ThreadCreator creates a new provider-side conversation thread.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (string, error)
}

// Store persists the user-to-thread mapping. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the thread for a user, or ("", nil) if none is stored.
	Get(ctx context.Context, userID string) (string, error)
	// Put stores the thread for a user, overwriting any existing entry.
	Put(ctx context.Context, userID, threadID string) error
	// Len returns the number of tracked conversations.
	Len(ctx context.Context) (int, error)
}

// Service resolves users to conversation threads, creating threads on first
// contact. A thread handle is never invalidated once stored; concurrent first
// messages from the same user may each create a thread, with the later Put
// winning. That write race is accepted: the loser's thread is simply orphaned
// on the provider side.
type Service struct {
	store   Store
	creator ThreadCreator
	logger  *slog.Logger
}

// New creates a directory service backed by the given store.
func New(store Store, creator ThreadCreator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		creator: creator,
		logger:  logger.With("component", "directory"),
	}
}

// Resolve returns the conversation thread for a user, creating one if the
// user has no entry. Creation failures propagate and nothing is stored, so a
// later message retries creation.
func (s *Service) Resolve(ctx context.Context, userID string) (string, error) {
	threadID, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up conversation for %s: %w", userID, err)
	}
	if threadID != "" {
		return threadID, nil
	}

	threadID, err = s.creator.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("creating conversation for %s: %w", userID, err)
	}

	if err := s.store.Put(ctx, userID, threadID); err != nil {
		return "", fmt.Errorf("storing conversation for %s: %w", userID, err)
	}

	s.logger.Info("created conversation thread", "user_id", userID, "thread_id", threadID)
	return threadID, nil
}

// Count returns the number of tracked conversations, for the health endpoint.
// Store errors degrade to zero rather than failing the health check.
func (s *Service) Count(ctx context.Context) int {
	n, err := s.store.Len(ctx)
	if err != nil {
		s.logger.Warn("failed to count conversations", "error", err)
		return 0
	}
	return n
}
