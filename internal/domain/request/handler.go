package request

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
	svc     *Service
	results ResultLister
}

func NewHandler(svc *Service, results ResultLister) *Handler {
	return &Handler{svc: svc, results: results}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(
		auth.RoleLabTech, auth.RoleLabSupervisor, auth.RolePathologist, auth.RolePhysician))
	readGroup.GET("/test-requests", h.ListTestRequests)
	readGroup.GET("/test-requests/:id", h.GetTestRequest)
	readGroup.GET("/test-requests/:id/status-history", h.GetStatusHistory)

	techGroup := api.Group("", auth.RequireRole(auth.RoleLabTech, auth.RoleLabSupervisor))
	techGroup.POST("/test-requests", h.CreateTestRequest)
	techGroup.POST("/test-requests/:id/collect", h.CollectSpecimen)
	techGroup.POST("/test-requests/:id/accept", h.AcceptSpecimen)
	techGroup.POST("/test-requests/:id/start", h.StartAnalysis)
	techGroup.POST("/test-requests/:id/reject", h.Reject)

	seniorGroup := api.Group("", auth.RequireRole(auth.RoleLabSupervisor, auth.RolePathologist))
	seniorGroup.POST("/test-requests/:id/verify", h.VerifyResults)
	seniorGroup.POST("/test-requests/:id/approve", h.ApproveResults)
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

// testRequestView is the read shape: the request plus its progress position
// and captured results with their snapshots.
type testRequestView struct {
	*TestRequest
	ProgressOrdinal int         `json:"progress_ordinal"`
	Results         interface{} `json:"results,omitempty"`
}

type createTestRequestInput struct {
	PatientID  uuid.UUID  `json:"patient_id"`
	VisitID    *uuid.UUID `json:"visit_id,omitempty"`
	TestTypeID uuid.UUID  `json:"test_type_id"`
}

func (h *Handler) CreateTestRequest(c echo.Context) error {
	var in createTestRequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.CreateTestRequest(c.Request().Context(), in.PatientID, in.VisitID, in.TestTypeID, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tr)
}

func (h *Handler) GetTestRequest(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	tr, err := h.svc.GetTestRequest(ctx, id)
	if err != nil {
		return httpError(err)
	}
	results, err := h.results.ListByRequest(ctx, id)
	if err != nil {
		return httpError(err)
	}
	view := testRequestView{
		TestRequest:     tr,
		ProgressOrdinal: tr.Status.ProgressOrdinal(),
		Results:         results,
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ListTestRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"patient", "visit", "status", "test_type"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.GetStatusHistory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CollectSpecimen(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.CollectSpecimen(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tr)
}

type acceptSpecimenInput struct {
	SpecimenTypeID uuid.UUID `json:"specimen_type_id"`
}

func (h *Handler) AcceptSpecimen(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in acceptSpecimenInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.AcceptSpecimen(c.Request().Context(), id, in.SpecimenTypeID, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tr)
}

func (h *Handler) StartAnalysis(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.StartAnalysis(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tr)
}

type rejectInput struct {
	Reason string `json:"reason"`
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in rejectInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.Reject(c.Request().Context(), id, in.Reason, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tr)
}

func (h *Handler) VerifyResults(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.VerifyResults(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tr)
}

func (h *Handler) ApproveResults(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	tr, err := h.svc.ApproveResults(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tr)
}
