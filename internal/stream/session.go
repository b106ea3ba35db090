package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RetryState tracks the backoff schedule of one session.
// Invariant: NextAllowed >= LastAttempt.
type RetryState struct {
	ConsecutiveFailures int
	LastAttempt         time.Time
	NextAllowed         time.Time
}

// SessionStatus is a point-in-time snapshot for the API and health surface.
type SessionStatus struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	State               string      `json:"state"`
	Connected           bool        `json:"connected"`
	Variant             VariantKind `json:"variant"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	NextAttemptAt       time.Time   `json:"next_attempt_at,omitempty"`
	LastFailure         string      `json:"last_failure,omitempty"`
	Seq                 uint64      `json:"seq"`
	LastFrameAt         time.Time   `json:"last_frame_at,omitempty"`
}

type sessionConfig struct {
	policy          BackoffPolicy
	fallbackAfter   int
	archiveInterval time.Duration
}

// Session owns one source's lifecycle: its retry state, at most one live
// connection, and the frame slot it publishes into. Exactly one capture
// loop goroutine is bound to a session for its lifetime.
type Session struct {
	id        string
	desc      SourceDescriptor
	slot      *Slot
	connector Connector
	sink      FrameSink
	metrics   *Metrics
	logger    *slog.Logger
	cfg       sessionConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu              sync.Mutex
	state           SessionState
	retry           RetryState
	variantIdx      int
	variantFailures int
	seq             uint64
	lastFrameAt     time.Time
	lastArchive     time.Time
}

func newSession(desc SourceDescriptor, slot *Slot, connector Connector, sink FrameSink, metrics *Metrics, logger *slog.Logger, cfg sessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        desc.ID,
		desc:      desc,
		slot:      slot,
		connector: connector,
		sink:      sink,
		metrics:   metrics,
		logger:    logger.With("source_id", desc.ID),
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (s *Session) Slot() *Slot {
	return s.slot
}

func (s *Session) Descriptor() SourceDescriptor {
	return s.desc
}

// Cancel requests cooperative shutdown. The loop re-checks the context
// before every blocking step, so termination is prompt even mid-backoff.
func (s *Session) Cancel() {
	s.cancel()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	status := SessionStatus{
		ID:                  s.id,
		Name:                s.desc.Name,
		State:               s.state.String(),
		Variant:             s.desc.Variants[s.variantIdx],
		ConsecutiveFailures: s.retry.ConsecutiveFailures,
		NextAttemptAt:       s.retry.NextAllowed,
		Seq:                 s.seq,
		LastFrameAt:         s.lastFrameAt,
	}
	s.mu.Unlock()

	slot := s.slot.Status()
	status.Connected = slot.Connected
	if slot.LastFailure != FailureNone {
		status.LastFailure = slot.LastFailure.String()
	}
	return status
}

// run is the capture loop: Idle -> Connecting -> Connected -> (Idle | done).
func (s *Session) run() {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.state = StateCancelled
		s.mu.Unlock()
		s.slot.Disconnect(FailureCancelled)
		s.metrics.SetConnected(s.id, false)
		s.logger.Info("capture loop stopped")
	}()

	s.logger.Info("capture loop started", "host", s.desc.Host, "variants", len(s.desc.Variants))

	for {
		if !s.waitForNextAttempt() {
			return
		}

		conn, first, aerr := s.attempt()
		if aerr != nil {
			if aerr.Kind == FailureCancelled || s.ctx.Err() != nil {
				return
			}
			s.recordFailure(aerr)
			continue
		}

		s.recordSuccess()
		s.publish(first)
		s.readLoop(conn)

		if s.ctx.Err() != nil {
			return
		}
	}
}

// waitForNextAttempt blocks until the retry schedule allows another attempt.
// Returns false when the session has been cancelled.
func (s *Session) waitForNextAttempt() bool {
	s.mu.Lock()
	s.state = StateIdle
	delay := time.Until(s.retry.NextAllowed)
	s.mu.Unlock()

	if delay <= 0 {
		return s.ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// attempt opens a connection for the current variant and reads the first
// frame. Both steps are individually bounded by the connector's timeouts.
// On failure the partially opened handle is released before returning, so
// at most one live connection ever exists per session.
func (s *Session) attempt() (Conn, FramePayload, *AttemptError) {
	s.mu.Lock()
	s.state = StateConnecting
	s.retry.LastAttempt = time.Now()
	if s.retry.NextAllowed.Before(s.retry.LastAttempt) {
		s.retry.NextAllowed = s.retry.LastAttempt
	}
	variant := s.desc.Variants[s.variantIdx]
	s.mu.Unlock()

	start := time.Now()
	conn, err := s.connector.Connect(s.ctx, s.desc, variant)
	if err != nil {
		aerr := asAttemptError(err)
		s.metrics.ObserveAttempt(s.id, variant, aerr.Kind.String(), time.Since(start))
		return nil, FramePayload{}, aerr
	}

	payload, err := conn.ReadFrame(s.ctx)
	if err != nil {
		conn.Close()
		aerr := asAttemptError(err)
		s.metrics.ObserveAttempt(s.id, variant, aerr.Kind.String(), time.Since(start))
		return nil, FramePayload{}, aerr
	}

	s.metrics.ObserveAttempt(s.id, variant, "success", time.Since(start))
	return conn, payload, nil
}

// readLoop pulls frames off an established connection until it fails or the
// session is cancelled. The handle is released before the loop returns.
func (s *Session) readLoop(conn Conn) {
	defer conn.Close()

	for {
		payload, err := conn.ReadFrame(s.ctx)
		if err != nil {
			aerr := asAttemptError(err)
			if aerr.Kind == FailureCancelled || s.ctx.Err() != nil {
				return
			}
			s.recordFailure(aerr)
			return
		}
		s.publish(payload)
	}
}

func (s *Session) recordFailure(aerr *AttemptError) {
	s.mu.Lock()
	s.retry.ConsecutiveFailures++
	s.retry.NextAllowed = time.Now().Add(s.cfg.policy.Delay(s.retry.ConsecutiveFailures))
	failures := s.retry.ConsecutiveFailures
	next := s.retry.NextAllowed
	variant := s.desc.Variants[s.variantIdx]

	s.variantFailures++
	if len(s.desc.Variants) > 1 && s.variantFailures >= s.cfg.fallbackAfter {
		s.variantIdx = (s.variantIdx + 1) % len(s.desc.Variants)
		s.variantFailures = 0
	}
	s.state = StateIdle
	s.mu.Unlock()

	s.slot.Disconnect(aerr.Kind)
	s.metrics.SetConnected(s.id, false)

	// Failures can repeat every few seconds; keep them off the default level.
	s.logger.Debug("attempt failed",
		"variant", variant,
		"kind", aerr.Kind.String(),
		"consecutive_failures", failures,
		"next_attempt", next,
		"error", aerr.Err,
	)
}

func (s *Session) recordSuccess() {
	s.mu.Lock()
	s.retry.ConsecutiveFailures = 0
	s.variantFailures = 0
	s.state = StateConnected
	variant := s.desc.Variants[s.variantIdx]
	s.mu.Unlock()

	s.metrics.SetConnected(s.id, true)
	s.logger.Info("source connected", "variant", variant)
}

func (s *Session) publish(p FramePayload) {
	s.mu.Lock()
	s.seq++
	rec := FrameRecord{
		SourceID:   s.id,
		Seq:        s.seq,
		Data:       p.Data,
		Width:      p.Width,
		Height:     p.Height,
		Variant:    s.desc.Variants[s.variantIdx],
		CapturedAt: time.Now(),
	}
	s.lastFrameAt = rec.CapturedAt

	archive := false
	if s.sink != nil && time.Since(s.lastArchive) >= s.cfg.archiveInterval {
		s.lastArchive = rec.CapturedAt
		archive = true
	}
	s.mu.Unlock()

	s.slot.Publish(rec)
	s.metrics.IncFrames(s.id)

	if archive {
		go s.archiveFrame(rec)
	}
}

// archiveFrame forwards a frame to the sink with a short budget so a slow
// archive can never stall the capture loop.
func (s *Session) archiveFrame(rec FrameRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := s.sink.StoreFrame(ctx, rec); err != nil {
		s.logger.Debug("frame archive failed", "error", err)
	}
}
