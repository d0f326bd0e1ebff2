package ingestion

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles staged raw rows and batch metadata
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new ingestion repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// InsertRows stages raw rows under a batch. Every row gets a fresh ID and
// pending status regardless of what the caller set.
func (r *Repository) InsertRows(ctx context.Context, rows []*models.RawRow) error {
	ctx, span := tracing.StartSpan(ctx, "ingestion.Repository.InsertRows")
	defer span.End()

	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("raw_rows")
	sb.Cols("id", "batch_id", "source", "target_table", "payload", "status", "created_at")

	for _, row := range rows {
		row.ID = uuid.New().String()
		row.Status = models.RawRowStatusPending
		row.CreatedAt = now
		sb.Values(row.ID, row.BatchID, row.Source, row.TargetTable, []byte(row.Payload), row.Status, row.CreatedAt)
	}

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(rows)}).Error("Failed to insert raw rows")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert raw rows")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(rows)}).Debug("Inserted raw rows")
	return nil
}

// CreateBatchMeta records one ingestion batch
func (r *Repository) CreateBatchMeta(ctx context.Context, meta *models.BatchMeta) (*models.BatchMeta, error) {
	ctx, span := tracing.StartSpan(ctx, "ingestion.Repository.CreateBatchMeta")
	defer span.End()

	meta.CreatedAt = time.Now().UTC()
	if meta.Status == "" {
		meta.Status = models.BatchStatusPending
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("batch_meta")
	sb.Cols("batch_id", "source", "target_table", "row_count", "status", "replay_of", "created_at")
	sb.Values(meta.BatchID, meta.Source, meta.TargetTable, meta.RowCount, meta.Status, meta.ReplayOf, meta.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": meta.BatchID}).Error("Failed to create batch metadata")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create batch metadata")
	}

	return meta, nil
}
