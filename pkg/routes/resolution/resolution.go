package resolution

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/resolver"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var validate = validator.New()

// Handler serves the name resolution API
type Handler struct {
	resolver *resolver.Service
	logger   ectologger.Logger
}

// NewHandler creates a new resolution handler
func NewHandler(resolver *resolver.Service, logger ectologger.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		logger:   logger,
	}
}

// BatchResolveRequest resolves multiple names in one call
type BatchResolveRequest struct {
	Items []models.MatchContext `json:"items" validate:"required,min=1,max=500,dive"`
}

// Resolve resolves one raw name
// POST /api/v1/resolve
func (h *Handler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "resolution_handler.Resolve")
	defer span.End()

	var req models.MatchContext
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.resolver.Resolve(ctx, req)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to resolve name")
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ResolveBatch resolves a batch of names, keyed by raw name
// POST /api/v1/resolve/batch
func (h *Handler) ResolveBatch(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "resolution_handler.ResolveBatch")
	defer span.End()

	var req BatchResolveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	results, err := h.resolver.ResolveBatch(ctx, req.Items)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to resolve batch")
		return err
	}

	return c.JSON(http.StatusOK, results)
}

// RegisterRoutes registers the resolution routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/resolve", h.Resolve)
	g.POST("/resolve/batch", h.ResolveBatch)
}
