package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("service: session not found")

// Session is one live conversation held by the API. Do serializes access,
// so a session has at most one outstanding call.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	chat     *ChatService
	lastUsed time.Time
	evicted  bool
}

// Do runs fn with exclusive access to the session's chat. It returns
// ErrSessionNotFound once the session has been evicted.
func (s *Session) Do(fn func(chat *ChatService) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evicted {
		return ErrSessionNotFound
	}

	s.lastUsed = s.chat.deps.Clock()
	return fn(s.chat)
}

// SessionRegistry holds live sessions. Independent sessions share no state
// and run in parallel.
type SessionRegistry struct {
	deps   Deps
	cfg    ChatConfig
	logger *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates a registry whose sessions use deps and cfg.
func NewSessionRegistry(deps Deps, cfg ChatConfig) *SessionRegistry {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &SessionRegistry{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.OrGlobal(deps.Logger),
		sessions: make(map[string]*Session),
	}
}

// Start opens a session for userID.
func (r *SessionRegistry) Start(userID string) *Session {
	now := r.deps.Clock()
	id := uuid.Must(uuid.NewV7()).String()
	chat := NewChatService(r.deps, r.cfg, userID)
	chat.logger = r.logger.WithConversation(id, chat.conv.UserID())

	sess := &Session{
		ID:        id,
		CreatedAt: now,
		chat:      chat,
		lastUsed:  now,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	metrics.ActiveSessions.Inc()
	return sess
}

// Get returns the session with id.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Remove forgets a session.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		metrics.ActiveSessions.Dec()
	}
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than maxIdle and returns how many
// were evicted. Sessions busy in Do are skipped. An ended conversation that
// was never saved is saved first; when that fails without reaching the
// spool the session is kept for the next sweep.
func (r *SessionRegistry) Sweep(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.deps.Clock().Add(-maxIdle)

	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		candidates = append(candidates, sess)
	}
	r.mu.RUnlock()

	evicted := 0
	for _, sess := range candidates {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastUsed.Before(cutoff) && r.evict(ctx, sess) {
			evicted++
		}
		sess.mu.Unlock()
	}
	return evicted
}

// Shutdown saves every ended conversation that is still unsaved and evicts
// all sessions. It returns how many ended conversations could not be saved.
func (r *SessionRegistry) Shutdown(ctx context.Context) int {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	r.mu.RUnlock()

	lost := 0
	for _, sess := range all {
		sess.mu.Lock()
		if !r.evict(ctx, sess) {
			lost++
			r.remove(sess)
		}
		sess.mu.Unlock()
	}
	return lost
}

// evict saves sess when its conversation needs it and then forgets it. It
// reports false, leaving the session registered, when the save failed and
// the record did not reach the spool. Caller holds sess.mu.
func (r *SessionRegistry) evict(ctx context.Context, sess *Session) bool {
	if sess.chat.NeedsSave() {
		id, err := sess.chat.EndConversation(ctx)
		switch {
		case errors.Is(err, ErrSpooled):
		case err != nil:
			sess.chat.logger.Error("ended conversation could not be saved", zap.Error(err))
			return false
		default:
			sess.chat.logger.Info("saved ended conversation before eviction", zap.String("record_id", id))
		}
	}
	r.remove(sess)
	return true
}

// remove marks sess evicted and drops it from the registry. Caller holds
// sess.mu.
func (r *SessionRegistry) remove(sess *Session) {
	sess.evicted = true
	r.Remove(sess.ID)
}
