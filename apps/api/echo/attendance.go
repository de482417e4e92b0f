package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceApi struct {
	svc   attendance.ServiceInterface
	clock core.Clock
}

type (
	// SubmitResponse confirms a student's check-in.
	SubmitResponse struct {
		Message     string `json:"message"`
		StudentName string `json:"student_name"`
	}

	// TodayCountResponse is the one-shot present-count read dashboards use to
	// catch up after a websocket reconnect.
	TodayCountResponse struct {
		CourseID     string    `json:"course_id"`
		Date         time.Time `json:"date"`
		PresentCount int       `json:"present_count"`
	}
)

// registerAttendanceAPI mounts the student check-in endpoint (rate limited per
// device) and the present-count read.
func registerAttendanceAPI(g *echo.Group, limiter echo.MiddlewareFunc, svc attendance.ServiceInterface, clock core.Clock) {
	api := attendanceApi{svc: svc, clock: clock}

	ag := g.Group("/attendance")
	ag.POST("", api.submit, limiter)
	ag.GET("/today-count/:course_id", api.todayCount)
}

// Handlers

func (api *attendanceApi) submit(ctx echo.Context) error {
	var data attendance.SubmitAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAttendance")
	}

	rec, err := api.svc.Submit(ctx.Request().Context(), data, peerAddr(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, SubmitResponse{
		Message:     "Attendance recorded successfully.",
		StudentName: rec.StudentName,
	})
}

func (api *attendanceApi) todayCount(ctx echo.Context) error {
	today := api.clock.Today()
	count, err := api.svc.PresentCount(ctx.Request().Context(), ctx.Param("course_id"), today)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, TodayCountResponse{
		CourseID:     ctx.Param("course_id"),
		Date:         today,
		PresentCount: count,
	})
}
