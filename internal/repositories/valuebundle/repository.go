package valuebundle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/integrity"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type bundleRow struct {
	models.ValueBundle
	Checksum string `db:"checksum"`
}

// Repository persists sealed value bundles. Rows are insert-only; a new
// epoch is a new row, and nothing here updates in place.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new value bundle repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Save persists a sealed bundle with its checksum
func (r *Repository) Save(ctx context.Context, sealed integrity.SealedBundle) error {
	ctx, span := tracing.StartSpan(ctx, "valuebundle.Repository.Save")
	defer span.End()

	b := sealed.Bundle()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("value_bundles")
	sb.Cols("player_id", "value", "tier", "overall_rank", "position_rank", "value_epoch", "updated_at", "checksum")
	sb.Values(b.PlayerID, b.Value, b.Tier, b.OverallRank, b.PositionRank, b.ValueEpoch, b.UpdatedAt, sealed.Checksum())

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"player_id": b.PlayerID, "value_epoch": b.ValueEpoch}).Error("Failed to save value bundle")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save value bundle")
	}

	return nil
}

// GetLatest retrieves the newest-epoch bundle for a player, rehydrated
// with its stored checksum. Verification belongs to the guard, not here.
func (r *Repository) GetLatest(ctx context.Context, playerID string) (integrity.SealedBundle, error) {
	ctx, span := tracing.StartSpan(ctx, "valuebundle.Repository.GetLatest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("player_id", "value", "tier", "overall_rank", "position_rank", "value_epoch", "updated_at", "checksum")
	sb.From("value_bundles")
	sb.Where(sb.Equal("player_id", playerID))
	sb.OrderBy("value_epoch DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var row bundleRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return integrity.SealedBundle{}, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no value bundle for player %s", playerID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get value bundle")
		return integrity.SealedBundle{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get value bundle")
	}

	return integrity.Restore(row.ValueBundle, row.Checksum), nil
}
