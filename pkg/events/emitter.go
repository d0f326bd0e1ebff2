// Package events handles event emission for pipeline lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for Clover. A nil *Emitter is valid and
// emits nothing, so downstream wiring is optional in tests and tooling.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitPlayerUnresolved emits an event when a raw name lands in the review queue
func (e *Emitter) EmitPlayerUnresolved(ctx context.Context, unresolvedID, rawName, source string) error {
	if e == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitPlayerUnresolved")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"raw_name":       rawName,
	})

	event := &kafka.PipelineEvent{
		EventType: "player.unresolved",
		Source:    source,
		SubjectID: unresolvedID,
		Data:      data,
	}

	if err := e.producer.PublishPipelineEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit player.unresolved event")
		return err
	}

	return nil
}

// EmitBatchArchived emits an event when a raw batch is archived
func (e *Emitter) EmitBatchArchived(ctx context.Context, batchID, source string, rowCount int) error {
	if e == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchArchived")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"row_count":      rowCount,
	})

	event := &kafka.PipelineEvent{
		EventType: "batch.archived",
		Source:    source,
		SubjectID: batchID,
		Data:      data,
	}

	if err := e.producer.PublishPipelineEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit batch.archived event")
		return err
	}

	return nil
}

// EmitBatchReplayed emits an event when an archived batch is replayed
func (e *Emitter) EmitBatchReplayed(ctx context.Context, originalBatchID, newBatchID, source string, rowCount int) error {
	if e == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchReplayed")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"new_batch_id":   newBatchID,
		"row_count":      rowCount,
	})

	event := &kafka.PipelineEvent{
		EventType: "batch.replayed",
		Source:    source,
		SubjectID: originalBatchID,
		Data:      data,
	}

	if err := e.producer.PublishPipelineEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit batch.replayed event")
		return err
	}

	return nil
}

// EmitBatchDisabled emits an event when a batch is marked non-replayable
func (e *Emitter) EmitBatchDisabled(ctx context.Context, batchID, source, reason string) error {
	if e == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchDisabled")
	defer span.End()

	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"reason":         reason,
	})

	event := &kafka.PipelineEvent{
		EventType: "batch.disabled",
		Source:    source,
		SubjectID: batchID,
		Data:      data,
	}

	if err := e.producer.PublishPipelineEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit batch.disabled event")
		return err
	}

	return nil
}
