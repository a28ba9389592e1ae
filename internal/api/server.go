package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/metrics"
)

// RunController is the scheduler surface the API drives.
type RunController interface {
	Trigger(ctx context.Context) bool
	Status() domain.RunStatus
}

// AlertProcessor runs a single alert on demand.
type AlertProcessor interface {
	ProcessAlertByID(ctx context.Context, alertID string) (domain.AlertResult, error)
}

// IntentParser previews intents without persisting them.
type IntentParser interface {
	Parse(ctx context.Context, alert domain.Alert) domain.AlertIntent
	ParseText(ctx context.Context, text string) domain.AlertIntent
}

// AlertLookup loads alerts by id.
type AlertLookup interface {
	GetAlert(ctx context.Context, alertID string) (*domain.Alert, error)
}

// Deps bundles the handlers' collaborators.
type Deps struct {
	Runs       RunController
	Processor  AlertProcessor
	Intents    IntentParser
	Alerts     AlertLookup
	Logger     *slog.Logger
	Production bool
}

// Server is the gin control API.
type Server struct {
	deps   Deps
	engine *gin.Engine
	http   *http.Server
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer builds the router.
func NewServer(addr string, deps Deps) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics(), requestLogger(deps.Logger))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	s := &Server{deps: deps, engine: r}

	r.GET("/health", s.health)
	r.GET("/status", s.status)
	r.POST("/run", s.run)
	r.POST("/alerts/:id/process", s.processAlert)
	r.POST("/intent/parse", s.parseIntent)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// reported as nil.
func (s *Server) ListenAndServe() error {
	s.deps.Logger.Info("control api listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "newsalerts"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: "scheduler status", Data: s.deps.Runs.Status()})
}

func (s *Server) run(c *gin.Context) {
	if !s.deps.Runs.Trigger(c.Request.Context()) {
		c.JSON(http.StatusOK, envelope{Success: false, Message: "a run is already in progress", Data: s.deps.Runs.Status()})
		return
	}
	c.JSON(http.StatusAccepted, envelope{Success: true, Message: "run started"})
}

func (s *Server) processAlert(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	result, err := s.deps.Processor.ProcessAlertByID(c.Request.Context(), id)
	if err != nil {
		s.fail(c, statusFor(err), "failed to process alert", err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: result.Status != domain.AlertError, Message: "alert processed", Data: result})
}

type parseRequest struct {
	Text    string `json:"text"`
	AlertID string `json:"alert_id"`
}

func (s *Server) parseIntent(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	req.AlertID = strings.TrimSpace(req.AlertID)

	switch {
	case req.AlertID != "":
		alert, err := s.deps.Alerts.GetAlert(c.Request.Context(), req.AlertID)
		if err != nil {
			s.fail(c, statusFor(err), "failed to load alert", err)
			return
		}
		c.JSON(http.StatusOK, envelope{Success: true, Message: "intent parsed", Data: s.deps.Intents.Parse(c.Request.Context(), *alert)})
	case req.Text != "":
		c.JSON(http.StatusOK, envelope{Success: true, Message: "intent parsed", Data: s.deps.Intents.ParseText(c.Request.Context(), req.Text)})
	default:
		s.fail(c, http.StatusBadRequest, "text or alert_id is required", nil)
	}
}

func (s *Server) fail(c *gin.Context, code int, message string, err error) {
	body := envelope{Success: false, Message: message}
	if err != nil {
		s.deps.Logger.Warn(message, "path", c.FullPath(), "error", err)
		if !s.deps.Production {
			body.Error = err.Error()
		}
	}
	c.JSON(code, body)
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
