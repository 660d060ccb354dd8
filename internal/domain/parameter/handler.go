package parameter

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/laberr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(
		auth.RoleLabTech, auth.RoleLabSupervisor, auth.RolePathologist, auth.RolePhysician))
	readGroup.GET("/test-types/:id/parameters", h.ListByTestType)
	readGroup.GET("/parameters/:id", h.GetParameter)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleLabTech, auth.RoleLabSupervisor))
	writeGroup.POST("/test-types/:id/parameters", h.AddParameter)
	writeGroup.PUT("/parameters/:id", h.UpdateParameter)
	writeGroup.DELETE("/parameters/:id", h.DeleteParameter)
}

func httpError(err error) error {
	var le *laberr.Error
	if errors.As(err, &le) {
		return echo.NewHTTPError(laberr.HTTPStatus(le), le)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) AddParameter(c echo.Context) error {
	testTypeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p ResultParameter
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddParameter(c.Request().Context(), testTypeID, &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetParameter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetParameter(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateParameter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p ResultParameter
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateParameter(c.Request().Context(), id, &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteParameter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteParameter(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByTestType(c echo.Context) error {
	testTypeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListByTestType(c.Request().Context(), testTypeID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
