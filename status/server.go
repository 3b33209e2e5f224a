// Package status serves run progress over HTTP.
//
// Routes:
//   - GET /healthz      liveness, always 200 while the process runs
//   - GET /v1/progress  generation and state of each local participant
//   - GET /metrics      prometheus exposition
package status

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sbl8/rowlife/runtime"
	"github.com/sbl8/rowlife/telemetry"
)

// ProgressSource reports the participants hosted by this process.
type ProgressSource interface {
	Progress() []runtime.Progress
}

// ProgressFunc adapts a function to ProgressSource.
type ProgressFunc func() []runtime.Progress

// Progress calls f.
func (f ProgressFunc) Progress() []runtime.Progress {
	return f()
}

// ProgressResponse is the body of /v1/progress.
type ProgressResponse struct {
	RunID        string             `json:"run_id,omitempty"`
	Participants []runtime.Progress `json:"participants"`
	Done         bool               `json:"done"`
}

// Server is the status HTTP server.
type Server struct {
	runID  string
	source ProgressSource
	log    *slog.Logger
	router *gin.Engine
	srv    *http.Server
}

// NewServer builds the router. runID may be empty.
func NewServer(runID string, source ProgressSource, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		runID:  runID,
		source: source,
		log:    log.With("component", "status"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.handleHealth)
	router.GET("/v1/progress", s.handleProgress)
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	s.router = router
	s.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleProgress(c *gin.Context) {
	progress := s.source.Progress()
	done := len(progress) > 0
	for _, p := range progress {
		if p.State != runtime.StateDone {
			done = false
		}
	}
	c.JSON(http.StatusOK, ProgressResponse{
		RunID:        s.runID,
		Participants: progress,
		Done:         done,
	})
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("status server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves in the background. Errors
// after the listener is up are logged.
func (s *Server) ListenAndServe(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			s.log.Error("status server stopped", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
