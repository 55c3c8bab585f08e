// Package events provides the generic event infrastructure for stage event
// emission. It defines the Envelope type that wraps stage events with
// consistent metadata and the EventSink interface events are appended to.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope wraps stage events with consistent metadata. The payload schema
// varies by Type; everything else identifies which run, workflow, and stage
// instance produced the event so downstream consumers can correlate a
// pipeline run end to end.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing,
	// e.g. "monitor.epoch_measured", "transient.candidates_compiled".
	Type string `json:"type"`

	// Source identifies the stage package that emitted this event.
	Source string `json:"source"`

	// Version enables payload schema evolution.
	Version string `json:"version"`

	// Timestamp records when the event was emitted (wall clock).
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey deduplicates events re-emitted across activity
	// retries of the same stage instance.
	IdempotencyKey string `json:"idempotency_key"`

	// WorkflowID and RunID tie the event to one Temporal execution.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// Payload contains the stage-specific event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// EventSink is where stage events are appended. Implementations should be
// failure-tolerant and idempotent on IdempotencyKey; callers never fail
// their primary operation because a sink append failed.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink is a null EventSink for tests or when events are disabled.
type NoOpEventSink struct{}

// Append implements EventSink with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }
