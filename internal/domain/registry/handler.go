package registry

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healsync/healsync/internal/domain/legacy"
	"github.com/healsync/healsync/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := auth.RequireRole("admin")
	api.POST("/doctors", h.RegisterDoctor, admin)
	api.POST("/organizations", h.RegisterOrganization, admin)
	api.GET("/organizations/:id", h.GetOrganization, auth.RequireRole("doctor"))
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var rec legacy.DoctorRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor body")
	}
	if rec.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor name is required")
	}

	p, err := h.svc.RegisterDoctor(c.Request().Context(), &rec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) RegisterOrganization(c echo.Context) error {
	var rec legacy.OrgRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid organization body")
	}
	if rec.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization name is required")
	}

	org, err := h.svc.RegisterOrganization(c.Request().Context(), &rec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, org)
}

func (h *Handler) GetOrganization(c echo.Context) error {
	rec, err := h.svc.Organization(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "organization not found")
	}
	return c.JSON(http.StatusOK, rec)
}
