// Package server exposes parsing and analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crimson-sun/avrca/internal/config"
	"github.com/crimson-sun/avrca/internal/model"
	"github.com/crimson-sun/avrca/internal/parser"
	"github.com/crimson-sun/avrca/internal/pipeline"
	"github.com/crimson-sun/avrca/internal/report"
)

const defaultMaxBody = 10 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ParseRequest is the body of POST /v1/parse.
type ParseRequest struct {
	Text   string `json:"text" binding:"required"`
	Parser string `json:"parser" binding:"required"`
	Source string `json:"source"`
}

// AnalyzeRequest is the body of POST /v1/analyze. Either Events or Text with
// Parser must be given.
type AnalyzeRequest struct {
	Query  string        `json:"query"`
	Events []model.Event `json:"events"`
	Text   string        `json:"text"`
	Parser string        `json:"parser"`
	Source string        `json:"source"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Parsers []string `json:"parsers"`
}

// Option configures a Server.
type Option func(*Server)

// WithMaxBodyBytes caps request bodies. Default: 10 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// Server serves the HTTP API.
type Server struct {
	pipeline *pipeline.Pipeline
	maxBody  int64
	router   *gin.Engine
}

// New builds the router around p.
func New(p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{pipeline: p, maxBody: defaultMaxBody}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.limitBody, requestLogger)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1 := r.Group("/v1")
	v1.GET("/parsers", s.handleParsers)
	v1.POST("/parse", s.handleParse)
	v1.POST("/analyze", s.handleAnalyze)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) limitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	}
	c.Next()
}

func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	slog.Debug("http request",
		"method", c.Request.Method, "path", c.FullPath(),
		"status", c.Writer.Status(), "duration", time.Since(start))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: config.Version,
		Parsers: parser.Names(),
	})
}

func (s *Server) handleParsers(c *gin.Context) {
	infos := []parser.Info{}
	for _, name := range parser.Names() {
		if p, err := parser.Get(name); err == nil {
			infos = append(infos, p.Info())
		}
	}
	c.JSON(http.StatusOK, gin.H{"parsers": infos})
}

func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	res, err := s.pipeline.IngestText(c.Request.Context(), req.Text, req.Parser, req.Source)
	if err != nil {
		parseFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleAnalyze answers with the analysis as JSON, or rendered when the
// format query parameter names a report format.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	ctx := c.Request.Context()

	events := req.Events
	if req.Text != "" {
		if req.Parser == "" {
			badRequest(c, "parser is required with text", nil)
			return
		}
		res, err := s.pipeline.IngestText(ctx, req.Text, req.Parser, req.Source)
		if err != nil {
			parseFailure(c, err)
			return
		}
		events = append(events, res.Events...)
	}
	if req.Events == nil && req.Text == "" {
		badRequest(c, "events or text is required", nil)
		return
	}

	analysis := s.pipeline.Analyze(ctx, events, req.Query)

	format := strings.ToLower(c.DefaultQuery("format", report.FormatJSON))
	if format == report.FormatJSON {
		c.JSON(http.StatusOK, analysis)
		return
	}
	out, err := report.Render(format, analysis)
	if err != nil {
		badRequest(c, "unsupported format", err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == report.FormatMarkdown || format == "md" {
		contentType = "text/markdown; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(out))
}

func badRequest(c *gin.Context, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, resp)
		return
	}
	c.JSON(http.StatusBadRequest, resp)
}

func parseFailure(c *gin.Context, err error) {
	if errors.Is(err, parser.ErrUnknownParser) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown parser",
			Details: fmt.Sprintf("%v (available: %s)", err, strings.Join(parser.Names(), ", ")),
		})
		return
	}
	slog.Warn("parse request failed", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "parse failed", Details: err.Error()})
}
