package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"learned/internal/backend"
	"learned/internal/ingest"
	"learned/internal/logger"
	"learned/internal/prompts"
	"learned/internal/results"
	"learned/internal/services"
)

const (
	maxMultipartMemory = 8 << 20  // 8 MB
	maxUploadBytes     = 32 << 20 // 32 MB
	previewChars       = 60000
)

type Server struct {
	engine *gin.Engine
	study  *services.StudyService
	log    *logger.Logger
}

func NewServer(study *services.StudyService, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	engine := gin.New()
	engine.MaxMultipartMemory = maxMultipartMemory
	engine.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		engine: engine,
		study:  study,
		log:    log.With("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/api/health", s.handleHealth)

	api := s.engine.Group("/api", sessionMiddleware())
	api.POST("/documents", s.handleUploadDocuments)
	api.POST("/summarize", s.handleSummarize)
	api.POST("/simplify", s.handleSimplify)
	api.POST("/quiz", s.handleQuiz)
	api.POST("/plan", s.handlePlan)
	api.GET("/session", s.handleGetSession)
	api.DELETE("/session", s.handleClearSession)
	api.GET("/session/summary.txt", s.handleDownloadSummary)
	api.GET("/session/explanation.txt", s.handleDownloadExplanation)
	api.GET("/session/flashcards.csv", s.handleDownloadFlashcards)
	api.GET("/generations", s.handleListGenerations)
}

func (s *Server) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrEmptyText),
		errors.Is(err, services.ErrInvalidCount),
		errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, prompts.ErrUnknownStyle),
		errors.Is(err, prompts.ErrUnknownLevel),
		errors.Is(err, results.ErrNoSession):
		return http.StatusBadRequest
	case ingest.IsUnsupported(err):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, results.ErrActionInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrTimeout):
		return http.StatusGatewayTimeout
	case backend.IsBackendError(err):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	writeError(c, status, err.Error())
}

func writeJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
