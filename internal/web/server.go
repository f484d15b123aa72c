package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"versescope/internal/analysis"
	"versescope/internal/logging"
	"versescope/internal/pipeline"
)

const (
	eventsPath      = "/api/events"
	shutdownTimeout = 5 * time.Second
)

// Options configures the web server.
type Options struct {
	// APIToken, when set, is required as a bearer token on /api/* routes.
	APIToken string
	// AllowedOrigins lists origins allowed by CORS and the websocket
	// upgrader. Empty permits same-origin requests only.
	AllowedOrigins []string
	// DefaultDetail is preselected in the form.
	DefaultDetail analysis.DetailLevel
}

// Server hosts the HTML page, JSON API, and websocket stream.
type Server struct {
	echo   *echo.Echo
	orch   *pipeline.Orchestrator
	events *eventHub
	page   *template.Template
	opts   Options
	logger *slog.Logger

	unsubscribe func()
}

// New wires routes for orch. Call Close (or let Serve return) to release the
// snapshot subscription and websocket clients.
func New(orch *pipeline.Orchestrator, opts Options, logger *slog.Logger) (*Server, error) {
	if orch == nil {
		return nil, errors.New("web: orchestrator required")
	}
	page, err := parsePage()
	if err != nil {
		return nil, fmt.Errorf("web: parse template: %w", err)
	}
	if opts.DefaultDetail == "" {
		opts.DefaultDetail = analysis.DetailBrief
	}
	logger = logging.NewComponentLogger(logger, "web")
	s := &Server{
		echo:   echo.New(),
		orch:   orch,
		events: newEventHub(opts.AllowedOrigins, logger),
		page:   page,
		opts:   opts,
		logger: logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleHTTPError
	s.routes()
	s.events.publish(orch.Snapshot())
	s.unsubscribe = orch.Subscribe(s.events.publish)
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []logging.Attr{
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String(logging.FieldCorrelationID, v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			s.logger.Debug("http request", logging.Args(attrs...)...)
			return nil
		},
	}))
	if len(s.opts.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.opts.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	e.GET("/", s.handleIndex)
	e.POST("/analyze", s.handleAnalyzeForm)
	e.GET("/healthz", s.handleHealth)
	// The page that opens the stream is unauthenticated, so the stream is
	// guarded by the upgrader's origin check instead of the API token.
	e.GET(eventsPath, s.handleEvents)

	api := e.Group("/api", bearerAuth(strings.TrimSpace(s.opts.APIToken)))
	api.POST("/analyze", s.handleAPIAnalyze)
	api.GET("/state", s.handleState)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on listener until ctx is cancelled or the server
// fails, then shuts down gracefully and closes websocket clients.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("web server listening", logging.String("address", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close detaches from the orchestrator and disconnects websocket clients.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.events.close()
}

func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		logging.ErrorWithContext(s.logger, "request failed", "http_error",
			logging.String("path", c.Path()),
			logging.Error(err),
		)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: message})
}
