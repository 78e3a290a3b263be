package admission

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "doctor", "nurse", "registrar"))
	read.GET("/patients/:id/status", h.GetStatus)
	read.GET("/patients/:id/status/history", h.History)

	write := api.Group("", auth.RequireRole("admin", "doctor", "nurse"))
	write.PUT("/patients/:id/status", h.SetStatus)
}

type setStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	var in setStatusRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var actor *string
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		actor = &uid
	}
	status, err := h.svc.SetStatus(c.Request().Context(), c.Param("id"), in.Status, actor, in.Note)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, identity.ErrRecordLocked):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidStatus):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patient_id": c.Param("id"),
		"status":     status,
	})
}

func (h *Handler) GetStatus(c echo.Context) error {
	status, err := h.svc.GetStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patient_id": c.Param("id"),
		"status":     status,
	})
}

func (h *Handler) History(c echo.Context) error {
	entries, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*HistoryEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
