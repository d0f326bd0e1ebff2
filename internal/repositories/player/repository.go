package player

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const playerColumns = "id, display_name, normalized_name, position, team, status, created_at, updated_at"

// Repository reads canonical player records. The roster sync service owns
// writes; nothing here mutates the table.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new player repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a player by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.CanonicalPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "player.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(playerColumns)
	sb.From("canonical_players")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var player models.CanonicalPlayer
	if err := r.db.GetContext(ctx, &player, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("player %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get player")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get player")
	}

	return &player, nil
}

// FindByNormalizedName finds players whose normalized name matches exactly,
// narrowed by position and team when hints are present. Returns at most two
// rows; the resolver only needs to distinguish zero, one, and many.
func (r *Repository) FindByNormalizedName(ctx context.Context, normalizedName string, position, team *string) ([]models.CanonicalPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "player.Repository.FindByNormalizedName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(playerColumns)
	sb.From("canonical_players")

	where := []string{sb.Equal("normalized_name", normalizedName)}
	if position != nil && *position != "" {
		where = append(where, sb.Equal("position", *position))
	}
	if team != nil && *team != "" {
		where = append(where, sb.Equal("team", *team))
	}
	sb.Where(where...)
	sb.Limit(2)

	query, args := sb.Build()
	var players []models.CanonicalPlayer
	if err := r.db.SelectContext(ctx, &players, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find players by normalized name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find players by normalized name")
	}

	return players, nil
}

// ListResolvable lists players eligible as fuzzy-match candidates: every
// status except retired, narrowed by position when the hint is present.
// The full restricted pool is returned; the resolver scores every row and
// caps the ranked results itself, so no row is dropped before scoring.
func (r *Repository) ListResolvable(ctx context.Context, position *string) ([]models.CanonicalPlayer, error) {
	ctx, span := tracing.StartSpan(ctx, "player.Repository.ListResolvable")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(playerColumns)
	sb.From("canonical_players")

	where := []string{sb.In("status", statusesToAny(models.ResolvableStatuses)...)}
	if position != nil && *position != "" {
		where = append(where, sb.Equal("position", *position))
	}
	sb.Where(where...)
	sb.OrderBy("display_name ASC")

	query, args := sb.Build()
	var players []models.CanonicalPlayer
	if err := r.db.SelectContext(ctx, &players, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list resolvable players")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list resolvable players")
	}

	return players, nil
}

func statusesToAny(statuses []string) []any {
	result := make([]any, len(statuses))
	for i, s := range statuses {
		result[i] = s
	}
	return result
}
