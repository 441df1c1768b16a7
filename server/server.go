package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/segment"
)

const (
	shutdownTimeout = 10 * time.Second
	warmupTimeout   = 30 * time.Second
)

type Segmenter interface {
	Process(ctx context.Context, raw []byte) (*segment.Result, error)
}

type Server struct {
	httpServer *http.Server
	seg        Segmenter
	logger     *slog.Logger

	warmer   rembg.Warmer
	schedule string
	cron     *cron.Cron
}

type Option func(*Server)

// WithWarmup 服务运行期间按 cron 表达式（如 "@every 5m"）定时调用 w.Warmup，表达式为空时不启用
func WithWarmup(w rembg.Warmer, schedule string) Option {
	return func(s *Server) {
		s.warmer = w
		s.schedule = schedule
	}
}

func New(addr string, seg Segmenter, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{seg: seg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(logger))

	router.GET("/healthz", s.handleHealth)
	v1 := router.Group("/v1")
	{
		v1.POST("/segment", s.handleSegment)
	}

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Minute,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run 一直服务到 ctx 取消，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	if err := s.startWarmup(); err != nil {
		return err
	}
	defer s.stopWarmup()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server is running", "address", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) startWarmup() error {
	if s.warmer == nil || s.schedule == "" {
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.warmup); err != nil {
		return fmt.Errorf("schedule warmup %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("remover warmup scheduled", "schedule", s.schedule)
	return nil
}

func (s *Server) stopWarmup() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Server) warmup() {
	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()

	start := time.Now()
	if err := s.warmer.Warmup(ctx); err != nil {
		s.logger.Warn("remover warmup failed", "error", err)
		return
	}
	s.logger.Debug("remover warmup done", "elapsed", time.Since(start).String())
}
