package visit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healsync/healsync/internal/domain/legacy"
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
	api.POST("/visits", h.Create, auth.RequireRole("doctor"))
	api.GET("/patients/:id/visits", h.ForPatient, auth.RequireRole("user", "doctor"))
}

func (h *Handler) Create(c echo.Context) error {
	var rec legacy.VisitRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visit body")
	}

	if err := h.svc.Create(c.Request().Context(), &rec, actorParams(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ForPatient(c echo.Context) error {
	patientID := c.Param("id")
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	if identity.Role == "user" && identity.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own visits")
	}

	pg := pagination.FromContext(c)
	records, err := h.svc.ForPatient(c.Request().Context(), patientID, pg.Limit, actorParams(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, records)
}

func actorParams(c echo.Context) fhir.AccessParams {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	return fhir.AccessParams{
		ActorID:        identity.ID,
		ActorName:      identity.DisplayName,
		NetworkAddress: c.RealIP(),
	}
}
