package stream

import (
	"sync"
	"time"
)

// SlotStatus reports a slot's connection state alongside frame bookkeeping,
// so consumers can tell "connected but no new frame" from "offline".
type SlotStatus struct {
	Connected   bool
	HasFrame    bool
	Seq         uint64
	CapturedAt  time.Time
	LastFailure FailureKind
}

// Slot is a single-writer, multi-reader latest-value holder. Publish
// overwrites unconditionally; there is no queue. Stale frames are worthless
// for a live preview, so readers only ever observe the most recent record.
type Slot struct {
	mu          sync.RWMutex
	rec         FrameRecord
	hasFrame    bool
	connected   bool
	lastFailure FailureKind
}

func NewSlot() *Slot {
	return &Slot{}
}

// Publish replaces the current record and marks the source connected.
// Only the owning capture loop may call it.
func (s *Slot) Publish(rec FrameRecord) {
	s.mu.Lock()
	s.rec = rec
	s.hasFrame = true
	s.connected = true
	s.lastFailure = FailureNone
	s.mu.Unlock()
}

// Disconnect marks the source offline while keeping the last frame so the
// consumer can keep displaying it.
func (s *Slot) Disconnect(kind FailureKind) {
	s.mu.Lock()
	s.connected = false
	s.lastFailure = kind
	s.mu.Unlock()
}

// Latest returns the most recent record, if any. The record must be treated
// as immutable; the capture loop never mutates a published frame in place.
func (s *Slot) Latest() (FrameRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec, s.hasFrame
}

func (s *Slot) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Slot) Status() SlotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SlotStatus{
		Connected:   s.connected,
		HasFrame:    s.hasFrame,
		Seq:         s.rec.Seq,
		CapturedAt:  s.rec.CapturedAt,
		LastFailure: s.lastFailure,
	}
}
