package unresolved

import (
	"context"
	"fmt"
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

const unresolvedColumns = "id, raw_name, position, team, source, status, resolved_player_id, created_at, updated_at, resolved_at"

// Repository handles review-queue persistence. Entries are append-and-flip
// only; nothing here deletes.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new unresolved repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindOpen finds the open entry for a raw name and source, if any
func (r *Repository) FindOpen(ctx context.Context, rawName, source string) (*models.UnresolvedPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "unresolved.Repository.FindOpen")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(unresolvedColumns)
	sb.From("unresolved_players")
	sb.Where(
		sb.Equal("raw_name", rawName),
		sb.Equal("source", source),
		sb.Equal("status", models.UnresolvedStatusOpen),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var entry models.UnresolvedPlayer
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // no open entry yet
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find open unresolved entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find open unresolved entry")
	}

	return &entry, nil
}

// Create inserts a new open entry. A partial unique index on
// (raw_name, source) WHERE status = 'open' backs the dedupe, so a
// concurrent duplicate insert is dropped rather than erroring.
func (r *Repository) Create(ctx context.Context, entry *models.UnresolvedPlayer) (*models.UnresolvedPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "unresolved.Repository.Create")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.Status = models.UnresolvedStatusOpen
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("unresolved_players")
	sb.Cols("id", "raw_name", "position", "team", "source", "status", "created_at", "updated_at")
	sb.Values(entry.ID, entry.RawName, entry.Position, entry.Team, entry.Source, entry.Status, entry.CreatedAt, entry.UpdatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT DO NOTHING"

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"raw_name": entry.RawName, "source": entry.Source}).Error("Failed to create unresolved entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create unresolved entry")
	}

	return entry, nil
}

// ListByStatus lists review-queue entries by status, newest first
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]models.UnresolvedPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "unresolved.Repository.ListByStatus")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(unresolvedColumns)
	sb.From("unresolved_players")
	sb.Where(sb.Equal("status", status))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var entries []models.UnresolvedPlayer
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unresolved entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unresolved entries")
	}

	return entries, nil
}

// MarkResolved flips an open entry to resolved with the chosen player
func (r *Repository) MarkResolved(ctx context.Context, id, playerID string) error {
	ctx, span := tracing.StartSpan(ctx, "unresolved.Repository.MarkResolved")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("unresolved_players")
	sb.Set(
		sb.Assign("status", models.UnresolvedStatusResolved),
		sb.Assign("resolved_player_id", playerID),
		sb.Assign("resolved_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", models.UnresolvedStatusOpen),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark unresolved entry resolved")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark unresolved entry resolved")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("open unresolved entry %s not found", id))
	}

	return nil
}
