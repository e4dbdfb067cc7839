package export

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

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
	api.GET("/patients/:id/export", h.ExportPatient, auth.RequireRole("user"))
	api.GET("/organizations/:id/export", h.ExportOrganization, auth.RequireRole("admin"))
}

// ExportPatient streams the patient's full bundle as a JSON attachment.
func (h *Handler) ExportPatient(c echo.Context) error {
	patientID := c.Param("id")
	identity, _ := auth.IdentityFromContext(c.Request().Context())
	if identity.Role == "user" && identity.ID != patientID {
		return echo.NewHTTPError(http.StatusForbidden, "patients may only export their own data")
	}

	actor := fhir.ExportParams{
		ActorID:        identity.ID,
		ActorName:      identity.DisplayName,
		NetworkAddress: c.RealIP(),
	}
	includeEncounters := c.QueryParam("encounters") != "false"
	_, err := h.svc.ExportPatient(c.Request().Context(), patientID, actor, includeEncounters, attachmentSink(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return nil
}

func (h *Handler) ExportOrganization(c echo.Context) error {
	_, err := h.svc.ExportOrganization(c.Request().Context(), c.Param("id"), attachmentSink(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return nil
}

// attachmentSink writes the export to the HTTP response as a downloadable
// attachment.
func attachmentSink(c echo.Context) Sink {
	return SinkFunc(func(filename string, data []byte) error {
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", filename))
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
	})
}
