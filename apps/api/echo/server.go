package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/code"
	"github.com/trezcool/mahudhurio/core/course"
	"github.com/trezcool/mahudhurio/core/presence"
	exportsvc "github.com/trezcool/mahudhurio/services/export"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool

		Logger        core.Logger
		Clock         core.Clock
		CourseSvc     course.ServiceInterface
		AttendanceSvc attendance.ServiceInterface
		CodeEngine    *code.Engine
		Hub           *presence.Hub
		ExportSvc     exportsvc.ServiceInterface
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts       *Options
		app        *echo.Echo
		errCh      chan error
		shutdownCh chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:       opts,
		app:        echo.New(),
		errCh:      make(chan error, 1),
		shutdownCh: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = debug
	s.app.Logger.SetLevel(gommonLevel(core.Conf.LogLevel))

	s.app.GET("/", home)

	v1 := s.app.Group("/api/v1")

	// public endpoints: student check-in + dashboard reads from any LAN peer
	registerCourseAPI(v1, s.opts.CourseSvc, s.opts.Validate)
	registerAttendanceAPI(v1, newRateLimiter(core.Conf.RateLimits).middleware(), s.opts.AttendanceSvc, s.opts.Clock)
	registerPresenceAPI(v1, s.opts.Hub, s.opts.CourseSvc, core.Conf.Presence, s.opts.Logger)

	// professor endpoints: only reachable from the host machine running the dashboard
	ag := v1.Group("/admin", hostOnlyMiddleware(s.opts.Logger))
	registerCourseAdminAPI(ag, s.opts.CourseSvc, s.opts.Validate)
	registerCodeAPI(ag, s.opts.CodeEngine, s.opts.Clock)
	registerPreferenceAPI(ag, s.opts.CourseSvc)
	registerExportAPI(ag, s.opts.ExportSvc, s.opts.Validate)
}

func (s *server) Start() {
	signal.Notify(s.shutdownCh, os.Interrupt, syscall.SIGTERM)

	if err := s.app.Start(s.opts.Addr); err != nil && err != http.ErrServerClosed {
		s.errCh <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errCh
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownCh
}

// signalShutdown requests a graceful stop; used when an unrecoverable error
// bubbles up through the error handler.
func (s *server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func gommonLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Mahudhurio API!")
}
