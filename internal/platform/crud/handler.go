package crud

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/carehub/pkg/pagination"
)

// Handler serves one kind over REST.
type Handler[T Entity] struct {
	svc *Service[T]
}

func NewHandler[T Entity](svc *Service[T]) *Handler[T] {
	return &Handler[T]{svc: svc}
}

func (h *Handler[T]) RegisterRoutes(g *echo.Group) {
	base := "/" + h.svc.kind.Name
	g.GET(base, h.List)
	g.GET(base+"/:id", h.Get)
	g.POST(base, h.Create)
	g.PUT(base+"/:id", h.Update)
	g.DELETE(base+"/:id", h.Delete)
}

// Mount builds the service and handler for kind, attaches observers and
// registers the routes on g.
func Mount[T Entity](g *echo.Group, kind *Kind[T], repo Repository[T], observers ...Observer) *Service[T] {
	svc := NewService(kind.MustCheck(), repo)
	for _, o := range observers {
		svc.Observe(o)
	}
	NewHandler(svc).RegisterRoutes(g)
	return svc
}

var pagingParams = map[string]bool{
	"limit": true, "offset": true, "page": true, "_count": true, "_offset": true,
}

func (h *Handler[T]) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	filters := map[string]string{}
	for key, vals := range c.QueryParams() {
		if pagingParams[key] || len(vals) == 0 {
			continue
		}
		filters[key] = vals[0]
	}

	items, total, err := h.svc.List(c.Request().Context(), Query{Filters: filters, Limit: pg.Limit, Offset: pg.Offset})
	if err != nil {
		return h.httpError(err)
	}
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler[T]) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler[T]) Create(c echo.Context) error {
	rec := h.svc.kind.New()
	if err := c.Bind(rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), rec); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler[T]) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec := h.svc.kind.New()
	if err := c.Bind(rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Update(c.Request().Context(), id, rec); err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler[T]) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.httpError(err)
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

// ValidationBody is the 422 response payload.
type ValidationBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (h *Handler[T]) httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("%s not found", strings.ToLower(h.svc.kind.ResourceType)))
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ValidationBody{Message: "validation failed", Fields: ve.Fields})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
