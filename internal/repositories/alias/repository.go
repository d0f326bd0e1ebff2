package alias

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository reads the curated alias table. Read-only for the resolver.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new alias repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByAlias looks up an alias by its normalized form. Returns nil when no
// alias exists; a miss here is an ordinary resolution outcome.
func (r *Repository) GetByAlias(ctx context.Context, normalizedAlias string) (*models.AliasEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.GetByAlias")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "normalized_alias", "player_id", "created_at")
	sb.From("player_aliases")
	sb.Where(sb.Equal("normalized_alias", normalizedAlias))
	sb.Limit(1)

	query, args := sb.Build()
	var entry models.AliasEntry
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // no alias for this name
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get alias")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get alias")
	}

	return &entry, nil
}
