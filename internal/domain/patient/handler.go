package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/auth"
	"github.com/healsync/healsync/internal/platform/fhir"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/profile", h.GetProfile, auth.RequireRole("user", "doctor"))
	api.PUT("/patients/:id/profile", h.SaveProfile, auth.RequireRole("user"))
	api.GET("/patients/:id/fhir", h.GetFHIRRecord, auth.RequireRole("user", "doctor"))
}

func (h *Handler) GetProfile(c echo.Context) error {
	patientID := c.Param("id")
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	if identity.Role == "user" && identity.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only view their own profile")
	}

	profile, err := h.svc.GetProfile(c.Request().Context(), patientID, actorParams(c))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) SaveProfile(c echo.Context) error {
	patientID := c.Param("id")
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	if identity.Role == "user" && identity.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only edit their own profile")
	}

	var profile legacy.Profile
	if err := c.Bind(&profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid profile body")
	}

	if err := h.svc.SaveProfile(c.Request().Context(), patientID, &profile, actorParams(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) GetFHIRRecord(c echo.Context) error {
	doc, err := h.svc.FHIRRecord(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient resource not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSONBlob(http.StatusOK, doc)
}

func actorParams(c echo.Context) fhir.AccessParams {
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	return fhir.AccessParams{
		ActorID:        identity.ID,
		ActorName:      identity.DisplayName,
		NetworkAddress: c.RealIP(),
	}
}
