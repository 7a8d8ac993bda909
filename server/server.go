package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/krau/fruitlens/config"
	"github.com/krau/fruitlens/service"
)

//go:embed templates/*
var templateFS embed.FS

const (
	MinTopK     = 3
	MaxTopK     = 10
	DefaultTopK = 5
)

type Server struct {
	cfg    config.Config
	clf    *service.Classifier
	router *gin.Engine
}

func New(cfg config.Config, clf *service.Classifier) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))
	r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20

	s := &Server{cfg: cfg, clf: clf, router: r}

	predict := r.Group("/")
	if cfg.RateLimit > 0 {
		predict.Use(rateLimit(cfg.RateLimit, time.Minute))
	}
	r.GET("/", s.IndexHandler)
	predict.POST("/", s.UploadHandler)
	predict.POST("/predict", s.PredictHandler)
	r.GET("/health", s.HealthHandler)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening on", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		slog.Info("Request",
			slog.String("id", id),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.String("client", c.ClientIP()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

// rateLimit adapts an httprate per-IP limiter to gin. Requests over the
// limit are answered with 429 by httprate and never reach the handler.
func rateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiter := httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
	return func(c *gin.Context) {
		passed := false
		limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
