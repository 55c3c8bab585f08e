package transient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/skywatch/pkg/activity"
	"github.com/ahrav/skywatch/pkg/events"
)

// candidatesCompiledEvent records one completed candidate compilation.
type candidatesCompiledEvent struct {
	Epochs     int       `json:"epochs"`
	Table      string    `json:"table"`
	CompiledAt time.Time `json:"compiled_at"`
}

// EventEmitter handles event emission for the transient stage.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates an EventEmitter with the provided base activities.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitCandidatesCompiled emits an event when the candidate table is built.
func (e *EventEmitter) EmitCandidatesCompiled(
	ctx context.Context,
	epochs int,
	table string,
	wfCtx activity.WorkflowContext,
) {
	event := candidatesCompiledEvent{
		Epochs:     epochs,
		Table:      table,
		CompiledAt: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal candidates-compiled event", "error", err)
		return
	}

	envelope := events.Envelope{
		ID:             uuid.New().String(),
		Type:           "transient.candidates_compiled",
		Source:         "transient-activity",
		Version:        "1.0.0",
		Timestamp:      time.Now(),
		IdempotencyKey: wfCtx.WorkflowID + "-candidates",
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        payload,
	}

	e.base.EmitEventSafe(ctx, envelope, "candidates compiled event")
}
