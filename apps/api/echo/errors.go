package echoapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
)

// error kinds; the student form and the dashboard switch on these
const (
	kindNotFound        = "not_found"
	kindBadRequest      = "bad_request"
	kindInvalidCode     = "invalid_code"
	kindExpiredCode     = "expired_code"
	kindConflict        = "conflict"
	kindForbidden       = "forbidden"
	kindTooManyRequests = "too_many_requests"
	kindInternal        = "internal_error"
)

var (
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden,
		"this resource is only accessible from the host machine")
	errHttpTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Rejections (4xx) are never logged at error level.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var status int
		var body ErrorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			status = origErr.Code
			body = ErrorResponse{Error: kindForStatus(status), Message: fmt.Sprintf("%v", origErr.Message)}
		case validator.ValidationErrors:
			fldErrs := make([]core.FieldError, 0, len(origErr))
			for _, vErr := range origErr {
				fldErrs = append(fldErrs, core.FieldError{Field: vErr.Field(), Error: vErr.Translate(translator)})
			}
			status = http.StatusBadRequest
			body = ErrorResponse{Error: kindBadRequest, Message: joinFieldErrors(fldErrs)}
		case *core.ValidationError:
			status = http.StatusBadRequest
			if origErr.Fields != nil {
				body = ErrorResponse{Error: kindBadRequest, Message: joinFieldErrors(origErr.Fields)}
			} else {
				body = ErrorResponse{Error: kindBadRequest, Message: origErr.Error()}
			}
		default:
			status, body = translateDomainError(origErr)

			if status == http.StatusInternalServerError {
				msg := fmt.Sprintf("%s %s", ctx.Request().Method, ctx.Request().RequestURI)
				logger.Error(msg, errors.Wrap(err, msg))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(status)
			} else {
				err = ctx.JSON(status, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// translateDomainError maps the typed sentinels raised by the services;
// anything unrecognized (storage failures included) reports 500.
func translateDomainError(err error) (int, ErrorResponse) {
	switch err {
	case course.ErrNotFound:
		return http.StatusNotFound, ErrorResponse{Error: kindNotFound, Message: err.Error()}
	case course.ErrNameExists:
		return http.StatusConflict, ErrorResponse{Error: kindConflict, Message: err.Error()}
	case attendance.ErrDuplicateStudent, attendance.ErrDuplicateDevice:
		return http.StatusConflict, ErrorResponse{Error: kindConflict, Message: err.Error()}
	case code.ErrInvalidCode:
		return http.StatusBadRequest, ErrorResponse{Error: kindInvalidCode, Message: "Invalid confirmation code."}
	case code.ErrExpiredCode, code.ErrNoCode:
		return http.StatusBadRequest, ErrorResponse{Error: kindExpiredCode, Message: "Confirmation code has expired."}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: kindInternal, Message: "An unexpected error occurred."}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return kindNotFound
	case http.StatusForbidden:
		return kindForbidden
	case http.StatusConflict:
		return kindConflict
	case http.StatusTooManyRequests:
		return kindTooManyRequests
	default:
		if status < http.StatusInternalServerError {
			return kindBadRequest
		}
		return kindInternal
	}
}

// joinFieldErrors renders field errors as a stable, human-readable message.
func joinFieldErrors(fldErrs []core.FieldError) string {
	parts := make([]string, 0, len(fldErrs))
	for _, fErr := range fldErrs {
		parts = append(parts, fErr.Field+": "+fErr.Error)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
