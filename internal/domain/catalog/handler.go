package catalog

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/laberr"
	"github.com/lims/lims/pkg/pagination"
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
	readGroup.GET("/specimen-types", h.ListSpecimenTypes)
	readGroup.GET("/specimen-types/:id", h.GetSpecimenType)
	readGroup.GET("/test-types", h.ListTestTypes)
	readGroup.GET("/test-types/:id", h.GetTestType)
	readGroup.GET("/test-types/:id/specimen-types", h.GetAssignedSpecimenTypes)
	readGroup.GET("/instruments", h.ListInstruments)
	readGroup.GET("/instruments/:id", h.GetInstrument)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleLabTech, auth.RoleLabSupervisor))
	writeGroup.POST("/specimen-types", h.CreateSpecimenType)
	writeGroup.PUT("/specimen-types/:id", h.UpdateSpecimenType)
	writeGroup.POST("/test-types", h.CreateTestType)
	writeGroup.PUT("/test-types/:id", h.UpdateTestType)
	writeGroup.POST("/test-types/:id/specimen-types/:specimenTypeId", h.AssignSpecimenType)
	writeGroup.DELETE("/test-types/:id/specimen-types/:specimenTypeId", h.UnassignSpecimenType)
	writeGroup.POST("/instruments", h.CreateInstrument)
	writeGroup.PUT("/instruments/:id", h.UpdateInstrument)
}

func httpError(err error) error {
	var le *laberr.Error
	if errors.As(err, &le) {
		return echo.NewHTTPError(laberr.HTTPStatus(le), le)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- SpecimenType Handlers --

func (h *Handler) CreateSpecimenType(c echo.Context) error {
	var st SpecimenType
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSpecimenType(c.Request().Context(), &st); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetSpecimenType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	st, err := h.svc.GetSpecimenType(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) UpdateSpecimenType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var st SpecimenType
	if err := c.Bind(&st); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st.ID = id
	if err := h.svc.UpdateSpecimenType(c.Request().Context(), &st); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListSpecimenTypes(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSpecimenTypes(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- TestType Handlers --

func (h *Handler) CreateTestType(c echo.Context) error {
	var tt TestType
	if err := c.Bind(&tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTestType(c.Request().Context(), &tt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tt)
}

func (h *Handler) GetTestType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tt, err := h.svc.GetTestType(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tt)
}

func (h *Handler) UpdateTestType(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var tt TestType
	if err := c.Bind(&tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tt.ID = id
	if err := h.svc.UpdateTestType(c.Request().Context(), &tt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tt)
}

func (h *Handler) ListTestTypes(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"category", "code", "active"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.SearchTestTypes(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Instrument Handlers --

func (h *Handler) CreateInstrument(c echo.Context) error {
	var in Instrument
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateInstrument(c.Request().Context(), &in); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, in)
}

func (h *Handler) GetInstrument(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	in, err := h.svc.GetInstrument(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) UpdateInstrument(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var in Instrument
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.ID = id
	if err := h.svc.UpdateInstrument(c.Request().Context(), &in); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, in)
}

func (h *Handler) ListInstruments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInstruments(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Assignment Handlers --

func (h *Handler) AssignSpecimenType(c echo.Context) error {
	testTypeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	specimenTypeID, err := pathID(c, "specimenTypeId")
	if err != nil {
		return err
	}
	if err := h.svc.AssignSpecimenType(c.Request().Context(), testTypeID, specimenTypeID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UnassignSpecimenType(c echo.Context) error {
	testTypeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	specimenTypeID, err := pathID(c, "specimenTypeId")
	if err != nil {
		return err
	}
	if err := h.svc.UnassignSpecimenType(c.Request().Context(), testTypeID, specimenTypeID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetAssignedSpecimenTypes(c echo.Context) error {
	testTypeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.GetAssignedSpecimenTypes(c.Request().Context(), testTypeID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}
