package archive

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	archivesvc "github.com/Ramsey-B/clover/pkg/archive"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Handler serves the archive admin API
type Handler struct {
	service *archivesvc.Service
	logger  ectologger.Logger
}

// NewHandler creates a new archive handler
func NewHandler(service *archivesvc.Service, logger ectologger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// ListResponse wraps a page of replayable batches
type ListResponse struct {
	Items []models.ArchivedBatch `json:"items"`
	Count int                    `json:"count"`
}

// ListReplayable returns replayable batches, most recent first
// GET /api/v1/archives/replayable
func (h *Handler) ListReplayable(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "archive_handler.ListReplayable")
	defer span.End()

	items, err := h.service.ListReplayable(ctx)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list replayable batches")
		return err
	}

	return c.JSON(http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// Replay re-stages an archived batch under a fresh batch ID
// POST /api/v1/archives/:batchID/replay
func (h *Handler) Replay(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "archive_handler.Replay")
	defer span.End()

	batchID := c.Param("batchID")

	result, err := h.service.Replay(ctx, batchID)
	if err != nil {
		switch {
		case errors.Is(err, archivesvc.ErrBatchNotFound):
			return httperror.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, archivesvc.ErrNotReplayable):
			return httperror.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, archivesvc.ErrChecksumMismatch):
			return httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		h.logger.WithContext(ctx).WithError(err).Error("Failed to replay batch")
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Disable permanently marks a batch non-replayable
// POST /api/v1/archives/:batchID/disable
func (h *Handler) Disable(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "archive_handler.Disable")
	defer span.End()

	batchID := c.Param("batchID")

	var req models.MarkNonReplayableRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.MarkNonReplayable(ctx, batchID, req.Reason); err != nil {
		if errors.Is(err, archivesvc.ErrBatchNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, err.Error())
		}
		h.logger.WithContext(ctx).WithError(err).Error("Failed to disable batch")
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "disabled"})
}

// RegisterRoutes registers the archive routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	archives := g.Group("/archives")
	archives.GET("/replayable", h.ListReplayable)
	archives.POST("/:batchID/replay", h.Replay)
	archives.POST("/:batchID/disable", h.Disable)
}
