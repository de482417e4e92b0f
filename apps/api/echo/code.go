package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/code"
)

type codeApi struct {
	engine *code.Engine
	clock  core.Clock
}

// CodeResponse is what the dashboard renders next to the QR code.
type CodeResponse struct {
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expires_at"` // RFC3339 UTC
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
}

// registerCodeAPI mounts the dashboard's confirmation-code poll. Reading the
// code mints a fresh one when the stored one has lapsed, so the dashboard
// never displays a dead code.
func registerCodeAPI(g *echo.Group, engine *code.Engine, clock core.Clock) {
	api := codeApi{engine: engine, clock: clock}

	g.GET("/confirmation-code/:course_id", api.current)
}

func (api *codeApi) current(ctx echo.Context) error {
	c, err := api.engine.Current(ctx.Request().Context(), ctx.Param("course_id"))
	if err != nil {
		return err
	}

	remaining := int64(c.ExpiresAt.Sub(api.clock.Now()) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return ctx.JSON(http.StatusOK, CodeResponse{
		Code:             c.Value,
		ExpiresAt:        c.ExpiresAt,
		ExpiresInSeconds: remaining,
	})
}
