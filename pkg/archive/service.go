// Package archive keeps a compressed, checksummed copy of every raw import
// batch and can replay one through the pipeline when matching or valuation
// logic changes.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	// ErrBatchNotFound is returned when no archived batch has the given ID
	ErrBatchNotFound = errors.New("archived batch not found")
	// ErrNotReplayable is returned when a batch has been disabled for replay
	ErrNotReplayable = errors.New("batch is not replayable")
	// ErrChecksumMismatch is returned when the stored payload fails
	// verification. The batch is never replayed in this state.
	ErrChecksumMismatch = errors.New("archived payload checksum mismatch")
)

// ArchiveStore persists archived batches
type ArchiveStore interface {
	Create(ctx context.Context, batch *models.ArchivedBatch) (*models.ArchivedBatch, error)
	Get(ctx context.Context, batchID string) (*models.ArchivedBatch, error)
	ListReplayable(ctx context.Context, limit int) ([]models.ArchivedBatch, error)
	IncrementReplay(ctx context.Context, batchID string) error
	SetNonReplayable(ctx context.Context, batchID, reason string) error
}

// IngestStore stages replayed rows and batch metadata
type IngestStore interface {
	InsertRows(ctx context.Context, rows []*models.RawRow) error
	CreateBatchMeta(ctx context.Context, meta *models.BatchMeta) (*models.BatchMeta, error)
}

// Locker serializes replays per batch ID. Optional.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl, wait time.Duration, fn func() error) error
}

// ReplayResult describes a completed replay
type ReplayResult struct {
	OriginalBatchID string `json:"original_batch_id"`
	NewBatchID      string `json:"new_batch_id"`
	RowCount        int    `json:"row_count"`
}

// Service archives and replays raw import batches
type Service struct {
	store    ArchiveStore
	ingest   IngestStore
	locker   Locker
	emitter  *events.Emitter
	logger   ectologger.Logger
	pageSize int
}

// NewService creates a new archive service. locker and emitter may be nil.
func NewService(store ArchiveStore, ingest IngestStore, locker Locker, emitter *events.Emitter, logger ectologger.Logger, pageSize int) *Service {
	if pageSize < 1 {
		pageSize = 50
	}
	return &Service{
		store:    store,
		ingest:   ingest,
		locker:   locker,
		emitter:  emitter,
		logger:   logger,
		pageSize: pageSize,
	}
}

// Archive serializes, checksums and compresses a raw batch, then persists
// it. The checksum covers the serialized payload before compression so a
// codec change can never mask corruption.
func (s *Service) Archive(ctx context.Context, batchID, source, targetTable string, rows []json.RawMessage) (*models.ArchivedBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "archive.Service.Archive")
	defer span.End()

	if batchID == "" {
		batchID = uuid.New().String()
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize batch payload: %w", err)
	}

	checksum := payloadChecksum(payload)

	compressed, err := compress(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compress batch payload: %w", err)
	}

	batch := &models.ArchivedBatch{
		BatchID:           batchID,
		Source:            source,
		TargetTable:       targetTable,
		CompressedPayload: compressed,
		RowCount:          len(rows),
		OriginalSize:      len(payload),
		CompressedSize:    len(compressed),
		Checksum:          checksum,
		CanReplay:         true,
	}

	if _, err := s.store.Create(ctx, batch); err != nil {
		return nil, err
	}

	metrics.BatchesArchivedTotal.WithLabelValues(source).Inc()
	metrics.ArchivePayloadBytes.Observe(float64(len(payload)))
	metrics.ArchiveCompressedBytes.Observe(float64(len(compressed)))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":        batchID,
		"source":          source,
		"row_count":       len(rows),
		"original_size":   len(payload),
		"compressed_size": len(compressed),
	}).Info("Archived raw batch")

	if err := s.emitter.EmitBatchArchived(ctx, batchID, source, len(rows)); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit batch.archived event")
	}

	return batch, nil
}

// Replay re-stages an archived batch's rows under a fresh batch ID. The
// stored payload is verified against its checksum before any row is
// written; a corrupt archive is always refused. The original batch is
// never mutated beyond its replay counters.
func (s *Service) Replay(ctx context.Context, batchID string) (*ReplayResult, error) {
	ctx, span := tracing.StartSpan(ctx, "archive.Service.Replay")
	defer span.End()

	var result *ReplayResult
	replay := func() error {
		var err error
		result, err = s.replay(ctx, batchID)
		return err
	}

	if s.locker == nil {
		if err := replay(); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := s.locker.WithLock(ctx, "replay:"+batchID, 60*time.Second, 10*time.Second, replay); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) replay(ctx context.Context, batchID string) (*ReplayResult, error) {
	batch, err := s.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if !batch.CanReplay {
		metrics.RecordReplay("refused")
		return nil, fmt.Errorf("%w: %s", ErrNotReplayable, batchID)
	}

	payload, err := decompress(batch.CompressedPayload)
	if err != nil {
		metrics.RecordReplay("failed")
		return nil, fmt.Errorf("failed to decompress batch %s: %w", batchID, err)
	}

	if actual := payloadChecksum(payload); actual != batch.Checksum {
		metrics.RecordReplay("corrupt")
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"batch_id": batchID,
			"expected": batch.Checksum,
			"actual":   actual,
		}).Error("ARCHIVE CORRUPTION: checksum mismatch on replay")
		return nil, fmt.Errorf("%w: batch %s", ErrChecksumMismatch, batchID)
	}

	var rowPayloads []json.RawMessage
	if err := json.Unmarshal(payload, &rowPayloads); err != nil {
		metrics.RecordReplay("failed")
		return nil, fmt.Errorf("failed to deserialize batch %s: %w", batchID, err)
	}

	newBatchID := uuid.New().String()
	rows := make([]*models.RawRow, len(rowPayloads))
	for i, p := range rowPayloads {
		rows[i] = &models.RawRow{
			BatchID:     newBatchID,
			Source:      batch.Source,
			TargetTable: batch.TargetTable,
			Payload:     p,
		}
	}

	if err := s.ingest.InsertRows(ctx, rows); err != nil {
		metrics.RecordReplay("failed")
		return nil, err
	}

	if _, err := s.ingest.CreateBatchMeta(ctx, &models.BatchMeta{
		BatchID:     newBatchID,
		Source:      batch.Source,
		TargetTable: batch.TargetTable,
		RowCount:    len(rows),
		ReplayOf:    &batch.BatchID,
	}); err != nil {
		return nil, err
	}

	if err := s.store.IncrementReplay(ctx, batchID); err != nil {
		return nil, err
	}

	metrics.RecordReplay("success")
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":     batchID,
		"new_batch_id": newBatchID,
		"row_count":    len(rows),
	}).Info("Replayed archived batch")

	if err := s.emitter.EmitBatchReplayed(ctx, batchID, newBatchID, batch.Source, len(rows)); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit batch.replayed event")
	}

	return &ReplayResult{
		OriginalBatchID: batchID,
		NewBatchID:      newBatchID,
		RowCount:        len(rows),
	}, nil
}

// MarkNonReplayable permanently disables replay for a batch. One-way: there
// is no operation to re-enable.
func (s *Service) MarkNonReplayable(ctx context.Context, batchID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "archive.Service.MarkNonReplayable")
	defer span.End()

	batch, err := s.store.Get(ctx, batchID)
	if err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	if err := s.store.SetNonReplayable(ctx, batchID, reason); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id": batchID,
		"reason":   reason,
	}).Warn("Marked batch non-replayable")

	if err := s.emitter.EmitBatchDisabled(ctx, batchID, batch.Source, reason); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit batch.disabled event")
	}

	return nil
}

// ListReplayable lists replayable batches, most recently archived first,
// capped at the configured page size.
func (s *Service) ListReplayable(ctx context.Context) ([]models.ArchivedBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "archive.Service.ListReplayable")
	defer span.End()

	return s.store.ListReplayable(ctx, s.pageSize)
}

func payloadChecksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
