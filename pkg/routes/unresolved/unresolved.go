package unresolved

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	unresolvedrepo "github.com/Ramsey-B/clover/internal/repositories/unresolved"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Handler serves the review-queue API
type Handler struct {
	repo   *unresolvedrepo.Repository
	logger ectologger.Logger
}

// NewHandler creates a new review-queue handler
func NewHandler(repo *unresolvedrepo.Repository, logger ectologger.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// ListResponse wraps a page of review-queue entries
type ListResponse struct {
	Items []models.UnresolvedPlayer `json:"items"`
	Count int                       `json:"count"`
}

// List returns review-queue entries, open by default
// GET /api/v1/unresolved
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "unresolved_handler.List")
	defer span.End()

	status := c.QueryParam("status")
	if status == "" {
		status = models.UnresolvedStatusOpen
	}
	if status != models.UnresolvedStatusOpen && status != models.UnresolvedStatusResolved {
		return httperror.NewHTTPError(http.StatusBadRequest, "status must be open or resolved")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	items, err := h.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list unresolved entries")
		return err
	}

	return c.JSON(http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// Resolve assigns a canonical player to an open entry
// POST /api/v1/unresolved/:id/resolve
func (h *Handler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "unresolved_handler.Resolve")
	defer span.End()

	id := c.Param("id")

	var req models.ResolveUnresolvedRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.repo.MarkResolved(ctx, id, req.PlayerID); err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to resolve review-queue entry")
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":    "resolved",
		"player_id": req.PlayerID,
	})
}

// RegisterRoutes registers the review-queue routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	queue := g.Group("/unresolved")
	queue.GET("", h.List)
	queue.POST("/:id/resolve", h.Resolve)
}
