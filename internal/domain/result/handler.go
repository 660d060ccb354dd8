package result

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
	readGroup.GET("/test-requests/:id/results", h.ListResults)

	techGroup := api.Group("", auth.RequireRole(auth.RoleLabTech, auth.RoleLabSupervisor))
	techGroup.POST("/test-requests/:id/results", h.SubmitResults)
}

func httpError(err error) error {
	var le *laberr.Error
	if errors.As(err, &le) {
		return echo.NewHTTPError(laberr.HTTPStatus(le), le)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func requestID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type submitResultsInput struct {
	InstrumentID uuid.UUID     `json:"instrument_id"`
	Results      []ResultEntry `json:"results"`
}

func (h *Handler) SubmitResults(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in submitResultsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	results, err := h.svc.SubmitResults(c.Request().Context(), id, in.InstrumentID, in.Results, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, results)
}

func (h *Handler) ListResults(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	results, err := h.svc.ListResults(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, results)
}
