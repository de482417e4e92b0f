package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/presence"
)

// wsWriteWait bounds how long a single frame write may block before the
// subscriber is considered gone.
const wsWriteWait = 10 * time.Second

type presenceApi struct {
	hub     *presence.Hub
	courses course.ServiceInterface
	conf    core.PresenceConfig
	logger  core.Logger

	upgrader websocket.Upgrader
}

// registerPresenceAPI mounts the live present-count feed. One socket per
// dashboard per course; the hub pushes an update on every accepted check-in.
func registerPresenceAPI(g *echo.Group, hub *presence.Hub, courses course.ServiceInterface, conf core.PresenceConfig, logger core.Logger) {
	api := presenceApi{
		hub:     hub,
		courses: courses,
		conf:    conf,
		logger:  logger,
		upgrader: websocket.Upgrader{
			// the dashboard may be served from another local port
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	g.GET("/ws/:course_id", api.serve)
}

func (api *presenceApi) serve(ctx echo.Context) error {
	courseID := ctx.Param("course_id")

	// reject unknown courses before committing to the upgrade
	if _, err := api.courses.Get(ctx.Request().Context(), courseID); err != nil {
		return err
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already replied with an HTTP error
		return nil
	}

	sub := api.hub.Subscribe(courseID)
	go api.writeLoop(conn, sub)
	api.readLoop(conn, sub)
	return nil
}

// readLoop consumes the client side until the socket drops. Inbound frames
// carry no application messages; pings are answered by the default handler and
// pongs refresh the liveness deadline.
func (api *presenceApi) readLoop(conn *websocket.Conn, sub *presence.Subscriber) {
	defer func() {
		api.hub.Unsubscribe(sub)
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(api.conf.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(api.conf.PongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				api.logger.Debug(fmt.Sprintf("websocket closed for course %s: %v", sub.CourseID(), err))
			}
			return
		}
	}
}

// writeLoop pushes hub updates and periodic pings. It exits when the
// subscriber is dropped (channel closed) or a write fails; closing the
// connection unblocks readLoop, which unsubscribes.
func (api *presenceApi) writeLoop(conn *websocket.Conn, sub *presence.Subscriber) {
	ticker := time.NewTicker(api.conf.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case update, ok := <-sub.Updates():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// unsubscribed (course deleted or handle dropped)
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
