package archive

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const archiveColumns = "batch_id, source, target_table, compressed_payload, row_count, original_size, compressed_size, checksum, can_replay, disabled_reason, replay_count, last_replayed_at, archived_at"

// Repository handles archived batch persistence. Archived rows are never
// deleted; replays only bump the counters.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new archive repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new archived batch
func (r *Repository) Create(ctx context.Context, batch *models.ArchivedBatch) (*models.ArchivedBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "archive.Repository.Create")
	defer span.End()

	batch.ArchivedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("archived_batches")
	sb.Cols("batch_id", "source", "target_table", "compressed_payload", "row_count", "original_size", "compressed_size", "checksum", "can_replay", "replay_count", "archived_at")
	sb.Values(batch.BatchID, batch.Source, batch.TargetTable, batch.CompressedPayload, batch.RowCount, batch.OriginalSize, batch.CompressedSize, batch.Checksum, batch.CanReplay, batch.ReplayCount, batch.ArchivedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batch.BatchID}).Error("Failed to create archived batch")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create archived batch")
	}

	return batch, nil
}

// Get retrieves an archived batch by ID. Returns nil when the batch does
// not exist.
func (r *Repository) Get(ctx context.Context, batchID string) (*models.ArchivedBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "archive.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(archiveColumns)
	sb.From("archived_batches")
	sb.Where(sb.Equal("batch_id", batchID))

	query, args := sb.Build()
	var batch models.ArchivedBatch
	if err := r.db.GetContext(ctx, &batch, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get archived batch")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get archived batch")
	}

	return &batch, nil
}

// ListReplayable lists replayable batches, most recently archived first
func (r *Repository) ListReplayable(ctx context.Context, limit int) ([]models.ArchivedBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "archive.Repository.ListReplayable")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 50
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(archiveColumns)
	sb.From("archived_batches")
	sb.Where(sb.Equal("can_replay", true))
	sb.OrderBy("archived_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var batches []models.ArchivedBatch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list replayable batches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list replayable batches")
	}

	return batches, nil
}

// IncrementReplay bumps the replay counters on the original batch
func (r *Repository) IncrementReplay(ctx context.Context, batchID string) error {
	ctx, span := tracing.StartSpan(ctx, "archive.Repository.IncrementReplay")
	defer span.End()

	query := `
		UPDATE archived_batches
		SET replay_count = replay_count + 1, last_replayed_at = $1
		WHERE batch_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), batchID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to increment replay count")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment replay count")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "archived batch not found")
	}

	return nil
}

// SetNonReplayable permanently disables replay for a batch. There is no
// inverse operation.
func (r *Repository) SetNonReplayable(ctx context.Context, batchID, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "archive.Repository.SetNonReplayable")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("archived_batches")
	sb.Set(
		sb.Assign("can_replay", false),
		sb.Assign("disabled_reason", reason),
	)
	sb.Where(sb.Equal("batch_id", batchID))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark batch non-replayable")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark batch non-replayable")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "archived batch not found")
	}

	return nil
}
