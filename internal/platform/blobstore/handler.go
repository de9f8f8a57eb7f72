package blobstore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/carehub/internal/platform/auth"
	"github.com/ehr/carehub/pkg/pagination"
)

// Handler serves the /uploads routes.
type Handler struct {
	store  Store
	logger zerolog.Logger
}

func NewHandler(store Store, logger zerolog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/uploads", h.Upload)
	g.GET("/uploads", h.List)
	g.GET("/uploads/:id", h.Get)
	g.GET("/uploads/:id/content", h.Download)
	g.DELETE("/uploads/:id", h.Delete)
}

func (h *Handler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file").SetInternal(err)
	}
	defer src.Close()

	ctx := c.Request().Context()
	meta := Metadata{
		FileName:    file.Filename,
		ContentType: file.Header.Get(echo.HeaderContentType),
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
		PatientID:   c.FormValue("patient_id"),
		CreatedBy:   auth.UserIDFromContext(ctx),
	}

	stored, err := h.store.Put(ctx, meta, src)
	if err != nil {
		return httpError(err)
	}
	h.logger.Info().
		Str("upload_id", stored.ID.String()).
		Str("category", stored.Category).
		Int64("size", stored.Size).
		Msg("upload stored")
	return c.JSON(http.StatusCreated, stored)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	category := c.QueryParam("category")
	if category != "" && !AllowedCategories[category] {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category")
	}
	items, total, err := h.store.List(c.Request().Context(), SearchParams{
		Category:    category,
		ContentType: c.QueryParam("content_type"),
		FileName:    c.QueryParam("file_name"),
		PatientID:   c.QueryParam("patient_id"),
		Limit:       pg.Limit,
		Offset:      pg.Offset,
	})
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Metadata{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	meta, err := h.store.Stat(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, meta)
}

func (h *Handler) Download(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rc, meta, err := h.store.Open(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", meta.FileName))
	c.Response().Header().Set("X-Content-SHA256", meta.Hash)
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrBlobNotFound.Error())
	case errors.Is(err, ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrEmptyFile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
