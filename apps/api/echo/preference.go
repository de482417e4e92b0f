package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/course"
)

type preferenceApi struct {
	svc course.ServiceInterface
}

type (
	// PreferencesResponse reports the dashboard's current course; null when unset.
	PreferencesResponse struct {
		CurrentCourseID *string `json:"current_course_id"`
	}

	SetPreferencesRequest struct {
		CurrentCourseID *string `json:"current_course_id"`
	}
)

// registerPreferenceAPI mounts the current-course preference endpoints.
func registerPreferenceAPI(g *echo.Group, svc course.ServiceInterface) {
	api := preferenceApi{svc: svc}

	pg := g.Group("/preferences")
	pg.GET("", api.retrieve)
	pg.POST("", api.update)
}

// Handlers

func (api *preferenceApi) retrieve(ctx echo.Context) error {
	id, err := api.svc.CurrentCourseID(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reading current course")
	}

	var resp PreferencesResponse
	if id != "" {
		resp.CurrentCourseID = &id
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *preferenceApi) update(ctx echo.Context) error {
	var data SetPreferencesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPreferencesRequest")
	}

	var id string
	if data.CurrentCourseID != nil {
		id = *data.CurrentCourseID
	}
	if err := api.svc.SetCurrentCourseID(ctx.Request().Context(), id); err != nil {
		return err
	}
	return api.retrieve(ctx)
}
