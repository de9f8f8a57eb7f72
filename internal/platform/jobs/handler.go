package jobs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/carehub/internal/platform/auth"
	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/internal/platform/websocket"
	"github.com/ehr/carehub/pkg/pagination"
)

// Handler exposes the manager over REST plus a websocket event stream.
type Handler struct {
	mgr *Manager
	hub *websocket.Hub
}

func NewHandler(mgr *Manager, hub *websocket.Hub) *Handler {
	return &Handler{mgr: mgr, hub: hub}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/jobs", h.Submit)
	g.GET("/jobs", h.List)
	g.GET("/jobs/:id", h.Get)
	g.DELETE("/jobs/:id", h.Cancel)
	g.GET("/jobs/:id/events", h.Events)
}

// SubmitRequest is the POST /jobs body.
type SubmitRequest struct {
	Kind  string          `json:"kind"`
	Input json.RawMessage `json:"input"`
}

func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Kind == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "kind is required")
	}
	job, err := h.mgr.Submit(c.Request().Context(), req.Kind, req.Input, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, job)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	items, total, err := h.mgr.List(c.Request().Context(), ListOptions{
		Kind:   c.QueryParam("kind"),
		Status: status,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Job{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	job, err := h.mgr.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	job, err := h.mgr.Cancel(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, job)
}

// Events upgrades to a websocket subscribed to the job's topic. The first
// frame is a "job.snapshot" event with the current state.
func (h *Handler) Events(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.mgr.Get(ctx, id); err != nil {
		return httpError(err)
	}
	return h.hub.Serve(c, []string{Topic(id)}, func() ([]byte, error) {
		job, err := h.mgr.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return nil, err
		}
		return json.Marshal(websocket.Event{Type: "job.snapshot", Topic: Topic(id), Timestamp: job.UpdatedAt, Data: data})
	})
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	var ve *crud.ValidationError
	switch {
	case errors.Is(err, ErrUnknownKind):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrJobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	case errors.Is(err, ErrJobFinished):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrQueueFull):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, crud.ValidationBody{Message: "validation failed", Fields: ve.Fields})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
