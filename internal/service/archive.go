package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// ErrInvalidDirection is returned for a direction outside the enum.
var ErrInvalidDirection = errors.New("service: invalid emotional direction")

// ArchiveService answers read-only queries over stored conversations.
type ArchiveService struct {
	store        store.Store
	defaultLimit int
}

// NewArchiveService creates an archive over st. defaultLimit applies when a
// caller passes no limit.
func NewArchiveService(st store.Store, defaultLimit int) *ArchiveService {
	if defaultLimit <= 0 {
		defaultLimit = defaultListLimit
	}
	return &ArchiveService{store: st, defaultLimit: defaultLimit}
}

func (a *ArchiveService) limit(n int) int {
	if n <= 0 {
		return a.defaultLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// Recent lists the most recent conversations; with a user id only that
// user's conversations are listed.
func (a *ArchiveService) Recent(ctx context.Context, userID string, limit int) (*model.ListConversationsResponse, error) {
	var (
		recs []model.Record
		err  error
	)
	if userID != "" {
		recs, err = a.store.GetByUser(ctx, userID, a.limit(limit))
	} else {
		recs, err = a.store.GetRecent(ctx, a.limit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	return &model.ListConversationsResponse{Conversations: recs, Total: len(recs)}, nil
}

// Get loads one stored conversation.
func (a *ArchiveService) Get(ctx context.Context, id string) (*model.Record, error) {
	rec, err := a.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return rec, nil
}

// Stats aggregates over every stored conversation.
func (a *ArchiveService) Stats(ctx context.Context) (*model.Statistics, error) {
	stats, err := a.store.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("conversation statistics: %w", err)
	}
	return stats, nil
}

// SearchByDirection lists conversations whose overall direction matches raw.
func (a *ArchiveService) SearchByDirection(ctx context.Context, raw string) (*model.ListConversationsResponse, error) {
	direction, ok := model.ParseDirection(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
	}

	recs, err := a.store.FindByDirection(ctx, direction)
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", err)
	}
	return &model.ListConversationsResponse{Conversations: recs, Total: len(recs)}, nil
}
