package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/agent"
	"sysdesign-assistant/backend/internal/state"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

type designer interface {
	Run(ctx context.Context, prompt string) (*state.PipelineResult, error)
}

type chatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userMsg string) (string, error)
}

// api holds the handlers' dependencies
type api struct {
	pipelines  func(mode string) (designer, error)
	chat       chatCompleter
	fetch      func(ctx context.Context, url string) (string, error)
	runTimeout time.Duration
	log        *zap.Logger
}

type pipelineRequest struct {
	Prompt string `json:"prompt"`
	URL    string `json:"url"`
	Mode   string `json:"mode"`
}

type chatRequest struct {
	System  string `json:"system"`
	Message string `json:"message" binding:"required"`
}

func newRouter(a *api) *gin.Engine {
	router := gin.New()
	router.Use(requestID())
	router.Use(ginLogger(a.log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/pipeline/run", a.runPipeline)
		apiGroup.POST("/chat", a.completeChat)
	}
	return router
}

// requestID tags every request with an id, keeping one the client sent
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func (a *api) runPipeline(c *gin.Context) {
	var req pipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.URL = strings.TrimSpace(req.URL)
	if (req.Prompt == "") == (req.URL == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of prompt or url is required"})
		return
	}

	pipeline, err := a.pipelines(strings.ToLower(req.Mode))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}
	log := a.log.With(zap.String("request_id", c.GetString(requestIDKey)))

	prompt := req.Prompt
	if req.URL != "" {
		prompt, err = a.fetch(ctx, req.URL)
		if err != nil {
			log.Warn("Failed to fetch prompt page", zap.String("url", req.URL), zap.Error(err))
			status := http.StatusBadGateway
			if apperrors.IsConfigurationError(err) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": "failed to fetch prompt page: " + err.Error()})
			return
		}
	}

	result, err := pipeline.Run(ctx, prompt)
	if err != nil {
		log.Error("Pipeline run failed", zap.Error(err))
		body := gin.H{"error": err.Error()}
		if result != nil {
			body["result"] = result
		}
		c.JSON(statusFor(err), body)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *api) completeChat(c *gin.Context) {
	if a.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat completion is not configured"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, err := a.chat.Complete(c.Request.Context(), req.System, req.Message)
	if err != nil {
		a.log.Error("Chat completion failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
		c.JSON(statusFor(err), gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": content})
}

// statusFor maps the error taxonomy onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyTurn):
		return http.StatusBadRequest
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case apperrors.IsUnexpectedStatus(err),
		apperrors.IsErrorType(err, apperrors.ErrorTypeRun),
		errors.Is(err, agent.ErrNoOutput):
		return http.StatusUnprocessableEntity
	case apperrors.IsRemoteRequestError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
