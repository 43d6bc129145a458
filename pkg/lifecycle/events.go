package lifecycle

import (
	"sync/atomic"

	"github.com/dan-solli/docid/pkg/logger"
)

// EventType classifies a lifecycle state transition.
type EventType string

const (
	EventCreated    EventType = "created"
	EventSuperseded EventType = "superseded"
	EventDuplicate  EventType = "duplicate"
	EventDeleted    EventType = "deleted"
)

// Event records one state transition. RelatedID names the other party when
// there is one: the successor for superseded, the retained original for
// duplicate, the predecessor for a created-by-update.
type Event struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	RelatedID  string    `json:"related_id,omitempty"`
}

// EventSink receives lifecycle events. Emit runs on the write path and must
// not block.
type EventSink interface {
	Emit(Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// ChannelSink buffers events on a channel for an external consumer. When the
// buffer is full new events are dropped and counted rather than blocking the
// write path.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChannelSink creates a sink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the channel events are delivered on.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close closes the delivery channel. Call only after the last Emit.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// LoggingSink writes each event to the structured log.
type LoggingSink struct {
	log *logger.Logger
}

func NewLoggingSink(log *logger.Logger) *LoggingSink {
	return &LoggingSink{log: logger.OrNop(log)}
}

func (s *LoggingSink) Emit(e Event) {
	s.log.Info("lifecycle event",
		"type", string(e.Type),
		"document_id", e.DocumentID,
		"related_id", e.RelatedID)
}

// MultiSink fans each event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Compile-time interface checks
var (
	_ EventSink = NopSink{}
	_ EventSink = (*ChannelSink)(nil)
	_ EventSink = (*LoggingSink)(nil)
	_ EventSink = MultiSink{}
)
