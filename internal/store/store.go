// Package store persists finished conversations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
)

var (
	// ErrNotConnected is returned by every operation while the backing store is unavailable.
	ErrNotConnected = errors.New("store: not connected")

	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("store: record not found")

	// ErrInvalidID is returned for ids the backend cannot have assigned.
	ErrInvalidID = errors.New("store: invalid record id")

	// ErrNoSummary is returned when a conversation without a summary is saved.
	ErrNoSummary = errors.New("store: conversation has no summary")
)

// Store is the document store for completed conversations.
type Store interface {
	// SaveCompleted maps a finished conversation to a record and writes it,
	// returning the store-assigned id.
	SaveCompleted(ctx context.Context, userID string, turns []model.Turn, summary *model.ConversationSummary, startedAt time.Time) (string, error)

	// Insert writes an already mapped record.
	Insert(ctx context.Context, rec *model.Record) (string, error)

	GetByID(ctx context.Context, id string) (*model.Record, error)

	// GetRecent returns up to limit records, most recent first.
	GetRecent(ctx context.Context, limit int) ([]model.Record, error)

	// GetByUser returns up to limit records for userID, most recent first.
	GetByUser(ctx context.Context, userID string, limit int) ([]model.Record, error)

	// Statistics aggregates over all records. An empty store yields zeros.
	Statistics(ctx context.Context) (*model.Statistics, error)

	FindByDirection(ctx context.Context, direction model.Direction) ([]model.Record, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
