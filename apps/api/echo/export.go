package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
)

type exportApi struct {
	svc      exportsvc.ServiceInterface
	validate *validator.Validate
}

type (
	EmailRollRequest struct {
		To []string `json:"to" validate:"required,min=1,dive,required,email"`
	}

	EmailRollResponse struct {
		Message string `json:"message"`
	}
)

func (er *EmailRollRequest) Validate(validate *validator.Validate) error {
	for i, addr := range er.To {
		er.To[i] = core.CleanString(addr, true /* lower */)
	}
	return validate.Struct(er)
}

// registerExportAPI mounts the CSV roll download and the email-roll trigger.
func registerExportAPI(g *echo.Group, svc exportsvc.ServiceInterface, validate *validator.Validate) {
	api := exportApi{svc: svc, validate: validate}

	eg := g.Group("/export")
	eg.GET("/csv/:course_id", api.downloadCSV)
	eg.POST("/email/:course_id", api.emailRoll)
}

// Handlers

func (api *exportApi) downloadCSV(ctx echo.Context) error {
	roll, err := api.svc.Roll(ctx.Request().Context(), ctx.Param("course_id"))
	if err != nil {
		return err
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+roll.Filename+`"`)
	return ctx.Blob(http.StatusOK, "text/csv", roll.Content)
}

func (api *exportApi) emailRoll(ctx echo.Context) error {
	var data EmailRollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRollRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	to := make([]mail.Address, 0, len(data.To))
	for _, addr := range data.To {
		to = append(to, mail.Address{Address: addr})
	}
	if err := api.svc.EmailRoll(ctx.Request().Context(), ctx.Param("course_id"), to...); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, EmailRollResponse{Message: "Attendance roll sent."})
}
