package values

import (
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/valuebundle"
	"github.com/Ramsey-B/clover/pkg/integrity"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Handler serves sealed player valuations
type Handler struct {
	repo   *valuebundle.Repository
	guard  *integrity.Guard
	logger ectologger.Logger
}

// NewHandler creates a new values handler
func NewHandler(repo *valuebundle.Repository, guard *integrity.Guard, logger ectologger.Logger) *Handler {
	return &Handler{
		repo:   repo,
		guard:  guard,
		logger: logger,
	}
}

// SealBundleRequest submits a computed valuation for sealing
type SealBundleRequest struct {
	Value        float64 `json:"value" validate:"min=0"`
	Tier         int     `json:"tier" validate:"min=1"`
	OverallRank  int     `json:"overall_rank" validate:"min=1"`
	PositionRank int     `json:"position_rank" validate:"min=1"`
	ValueEpoch   int64   `json:"value_epoch" validate:"min=1"`
}

// BundleResponse is a served valuation plus its integrity token
type BundleResponse struct {
	Bundle   models.ValueBundle `json:"bundle"`
	Checksum string             `json:"checksum"`
}

// Seal seals and persists a computed valuation
// PUT /api/v1/players/:id/value
func (h *Handler) Seal(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "values_handler.Seal")
	defer span.End()

	playerID := c.Param("id")

	var req SealBundleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sealed := integrity.Seal(models.ValueBundle{
		PlayerID:     playerID,
		Value:        req.Value,
		Tier:         req.Tier,
		OverallRank:  req.OverallRank,
		PositionRank: req.PositionRank,
		ValueEpoch:   req.ValueEpoch,
		UpdatedAt:    time.Now().UTC(),
	})

	if err := h.repo.Save(ctx, sealed); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to save sealed bundle")
		return err
	}

	return c.JSON(http.StatusCreated, BundleResponse{Bundle: sealed.Bundle(), Checksum: sealed.Checksum()})
}

// Get serves a player's latest valuation through the integrity guard. In
// strict mode a tampered row is refused with 503 rather than served.
// GET /api/v1/players/:id/value
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "values_handler.Get")
	defer span.End()

	playerID := c.Param("id")

	sealed, err := h.repo.GetLatest(ctx, playerID)
	if err != nil {
		return err
	}

	bundle, err := h.guard.Release(ctx, sealed)
	if err != nil {
		if errors.Is(err, integrity.ErrIntegrityViolation) {
			return httperror.NewHTTPError(http.StatusServiceUnavailable, "value bundle failed integrity verification")
		}
		return err
	}

	return c.JSON(http.StatusOK, BundleResponse{Bundle: bundle, Checksum: sealed.Checksum()})
}

// Validate reports integrity defects for a player's latest valuation
// GET /api/v1/players/:id/value/validate
func (h *Handler) Validate(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "values_handler.Validate")
	defer span.End()

	playerID := c.Param("id")

	sealed, err := h.repo.GetLatest(ctx, playerID)
	if err != nil {
		return err
	}

	defects := h.guard.Validate(ctx, sealed)
	return c.JSON(http.StatusOK, map[string]any{
		"player_id": playerID,
		"valid":     len(defects) == 0,
		"defects":   defects,
	})
}

// RegisterRoutes registers the valuation routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	players := g.Group("/players")
	players.PUT("/:id/value", h.Seal)
	players.GET("/:id/value", h.Get)
	players.GET("/:id/value/validate", h.Validate)
}
