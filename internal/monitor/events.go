package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/pkg/activity"
	"github.com/ahrav/skywatch/pkg/events"
)

// epochMeasuredEvent records one completed priorized measurement pass.
type epochMeasuredEvent struct {
	Image      string    `json:"image"`
	Epoch      int       `json:"epoch"`
	Master     string    `json:"master"`
	Catalogue  string    `json:"catalogue"`
	MeasuredAt time.Time `json:"measured_at"`
}

// EventEmitter handles event emission for the monitor stage.
type EventEmitter struct {
	base activity.BaseActivities
}

// NewEventEmitter creates an EventEmitter with the provided base activities.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitEpochMeasured emits an event for one re-measured epoch. Best effort;
// failures are logged, never propagated.
func (e *EventEmitter) EmitEpochMeasured(
	ctx context.Context,
	in domain.MeasureEpochInput,
	wfCtx activity.WorkflowContext,
) {
	event := epochMeasuredEvent{
		Image:      in.Provenance.Image,
		Epoch:      in.Provenance.Epoch,
		Master:     in.Master.Path,
		Catalogue:  in.OutCatalogue,
		MeasuredAt: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal epoch-measured event", "error", err)
		return
	}

	envelope := events.Envelope{
		ID:             uuid.New().String(),
		Type:           "monitor.epoch_measured",
		Source:         "monitor-activity",
		Version:        "1.0.0",
		Timestamp:      time.Now(),
		IdempotencyKey: fmt.Sprintf("%s-epoch-%d", wfCtx.WorkflowID, in.Provenance.Epoch),
		WorkflowID:     wfCtx.WorkflowID,
		RunID:          wfCtx.RunID,
		Payload:        payload,
	}

	e.base.EmitEventSafe(ctx, envelope, "epoch measured event")
}
