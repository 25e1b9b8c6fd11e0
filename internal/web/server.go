// Package web serves the Pharmabot page and its JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"pharmabot/internal/logger"
	"pharmabot/internal/prescription"
)

//go:embed templates/*.html
var templateFS embed.FS

// Options configures the server.
type Options struct {
	Address        string        // listen address, e.g. ":8501"
	BodyLimit      string        // echo size string, e.g. "25M"
	RequestTimeout time.Duration // per request pipeline timeout
}

// Server hosts the upload page, the question box and the JSON API.
type Server struct {
	echo     *echo.Echo
	analyzer prescription.Analyzer
	opts     Options
	log      zerolog.Logger
}

type templateRenderer struct {
	templates *template.Template
}

func (t *templateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

// NewServer wires routes and middleware around analyzer.
func NewServer(analyzer prescription.Analyzer, opts Options) *Server {
	if opts.Address == "" {
		opts.Address = ":8501"
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "25M"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}

	s := &Server{
		analyzer: analyzer,
		opts:     opts,
		log:      logger.WithComponent("web"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}

	// Global middleware
	e.Use(RequestID())
	e.Use(Logger(s.log))
	e.Use(Recovery(s.log))
	e.Use(echomw.BodyLimit(opts.BodyLimit))

	e.GET("/", s.handleIndex)
	e.POST("/analyze", s.handleAnalyze)
	e.POST("/ask", s.handleAsk)
	e.GET("/health", s.handleHealth)

	api := e.Group("/api/v1")
	api.POST("/prescriptions", s.handleAPIPrescriptions)
	api.POST("/parse", s.handleAPIParse)
	api.POST("/ask", s.handleAPIAsk)

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Address).Msg("starting server")
		if err := s.echo.Start(s.opts.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	s.log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.log.Info().Msg("server stopped")
	return nil
}
