package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/visionsuite/camstream/internal/shared"
)

const (
	// DefaultRemoveJoinTimeout bounds how long Remove waits for a capture
	// loop to acknowledge cancellation before giving up on the join.
	DefaultRemoveJoinTimeout = 3 * time.Second

	// DefaultArchiveInterval spaces frames forwarded to the archive sink.
	DefaultArchiveInterval = 2 * time.Second

	// DefaultFallbackAfter is how many consecutive failures on one variant
	// trigger rotation to the next one.
	DefaultFallbackAfter = 3
)

// Config carries the acquisition defaults applied to every session. A
// source descriptor can override the per-source knobs (backoff cap,
// fallback threshold, snapshot pacing).
type Config struct {
	ConnectTimeout    time.Duration
	ReadTimeout       time.Duration
	BackoffCap        time.Duration
	FallbackAfter     int
	SnapshotInterval  time.Duration
	ArchiveInterval   time.Duration
	RemoveJoinTimeout time.Duration
}

func (c Config) removeJoinTimeout() time.Duration {
	if c.RemoveJoinTimeout > 0 {
		return c.RemoveJoinTimeout
	}
	return DefaultRemoveJoinTimeout
}

func (c Config) archiveInterval() time.Duration {
	if c.ArchiveInterval > 0 {
		return c.ArchiveInterval
	}
	return DefaultArchiveInterval
}

func (c Config) fallbackAfter() int {
	if c.FallbackAfter > 0 {
		return c.FallbackAfter
	}
	return DefaultFallbackAfter
}

// Registry owns all active capture sessions, one per source. It is the
// single place sessions are created and torn down, which is what makes
// the one-loop-per-source guarantee hold across concurrent Add/Remove.
type Registry struct {
	connector Connector
	sink      FrameSink
	metrics   *Metrics
	logger    *slog.Logger
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry(connector Connector, sink FrameSink, metrics *Metrics, logger *slog.Logger, cfg Config) *Registry {
	return &Registry{
		connector: connector,
		sink:      sink,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
	}
}

// Add validates the descriptor, assigns an ID if absent, and starts the
// capture loop. Adding an ID that is already registered is an error; the
// caller must Remove first.
func (r *Registry) Add(desc SourceDescriptor) (string, error) {
	if desc.Host == "" {
		return "", fmt.Errorf("source host is required")
	}
	if len(desc.Variants) == 0 {
		desc.Variants = []VariantKind{VariantMJPEG, VariantSnapshot}
	}
	for _, v := range desc.Variants {
		if !v.Valid() {
			return "", fmt.Errorf("unknown variant %q", v)
		}
	}
	if desc.ID == "" {
		desc.ID = shared.NewID("src_")
	}
	if desc.BackoffCap <= 0 {
		desc.BackoffCap = r.cfg.BackoffCap
	}
	if desc.FallbackAfter <= 0 {
		desc.FallbackAfter = r.cfg.fallbackAfter()
	}
	if desc.SnapshotInterval <= 0 {
		desc.SnapshotInterval = r.cfg.SnapshotInterval
	}

	cfg := sessionConfig{
		policy:          BackoffPolicy{Cap: desc.BackoffCap},
		fallbackAfter:   desc.FallbackAfter,
		archiveInterval: r.cfg.archiveInterval(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", fmt.Errorf("registry is shut down")
	}
	if _, ok := r.sessions[desc.ID]; ok {
		r.mu.Unlock()
		return "", fmt.Errorf("source %s: %w", desc.ID, shared.ErrConflict)
	}
	sess := newSession(desc, NewSlot(), r.connector, r.sink, r.metrics, r.logger, cfg)
	r.sessions[desc.ID] = sess
	r.mu.Unlock()

	go sess.run()

	r.logger.Info("source registered", "source_id", desc.ID, "host", desc.Host)
	return desc.ID, nil
}

// Remove cancels the source's capture loop and waits, bounded, for it to
// finish. The session is unregistered immediately so the ID can be reused
// even if a wedged loop outlives the join timeout.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("source %s: %w", id, shared.ErrNotFound)
	}

	sess.Cancel()
	select {
	case <-sess.Done():
	case <-time.After(r.cfg.removeJoinTimeout()):
		r.logger.Warn("capture loop did not stop in time", "source_id", id)
	}

	r.metrics.ForgetSource(id)
	r.logger.Info("source removed", "source_id", id)
	return nil
}

// Slot returns the frame slot of a registered source.
func (r *Registry) Slot(id string) (*Slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Slot(), true
}

// Status returns the session snapshot of a registered source.
func (r *Registry) Status(id string) (SessionStatus, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return SessionStatus{}, false
	}
	return sess.Status(), true
}

// List returns snapshots of all sessions, ordered by source ID.
func (r *Registry) List() []SessionStatus {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	out := make([]SessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown cancels every session and waits for all loops to finish or the
// context to expire, whichever comes first.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		sessions = append(sessions, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.Cancel()
	}
	for _, sess := range sessions {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.logger.Info("registry shut down", "sessions", len(sessions))
	return nil
}
