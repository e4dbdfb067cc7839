package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healsync/healsync/internal/platform/auth"
	"github.com/healsync/healsync/internal/platform/fhir"
	"github.com/healsync/healsync/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/audit-trail", h.PatientTrail, auth.RequireRole("user", "doctor"))
	api.GET("/doctors/:id/audit-trail", h.DoctorTrail, auth.RequireRole("doctor"))
	api.POST("/auth/events", h.AuthEvent)
}

// PatientTrail returns the grouped, summarized access history for a patient.
// Patients may only read their own trail; doctors and admins may read any.
func (h *Handler) PatientTrail(c echo.Context) error {
	patientID := c.Param("id")
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	if identity.Role == "user" && identity.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own audit trail")
	}

	pg := pagination.FromContext(c)
	trail, err := h.svc.PatientTrail(c.Request().Context(), patientID, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, trail)
}

// DoctorTrail returns the actions one doctor performed across all patients.
func (h *Handler) DoctorTrail(c echo.Context) error {
	actorID := c.Param("id")
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	if identity.Role == "doctor" && identity.ID != actorID {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only view their own activity")
	}

	pg := pagination.FromContext(c)
	entries, err := h.svc.ActorTrail(c.Request().Context(), actorID, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

type authEventRequest struct {
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
}

// AuthEvent records a login or logout for the calling identity.
func (h *Handler) AuthEvent(c echo.Context) error {
	var req authEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Kind != "login" && req.Kind != "logout" {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be login or logout")
	}

	identity, _ := auth.IdentityFromContext(c.Request().Context())
	h.svc.Recorder.RecordAuth(c.Request().Context(), fhir.AuthParams{
		UserID:         identity.ID,
		UserName:       identity.DisplayName,
		Kind:           req.Kind,
		Outcome:        req.Outcome,
		NetworkAddress: c.RealIP(),
	})
	return c.NoContent(http.StatusAccepted)
}
