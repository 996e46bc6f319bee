package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xcode-ai/ai-gateway/internal/probe"
	"github.com/xcode-ai/ai-gateway/pkg/logger"
)

// StatusChecker produces a provider status report
type StatusChecker interface {
	Check(ctx context.Context) probe.Report
}

// BaseURLResolver returns the live provider base URL
type BaseURLResolver interface {
	BaseURL() string
}

// SystemHandler serves health, status and public configuration
type SystemHandler struct {
	checker  StatusChecker
	resolver BaseURLResolver
	port     int
	service  string
	logger   *zap.Logger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(checker StatusChecker, resolver BaseURLResolver, port int, service string, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		checker:  checker,
		resolver: resolver,
		port:     port,
		service:  service,
		logger:   logger,
	}
}

// Health reports liveness
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": h.service,
	})
}

// Status probes the provider. The diagnosis block is only exposed in dev mode.
func (h *SystemHandler) Status(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())

	resp := gin.H{
		"status":        report.Status,
		"hasApiKey":     report.HasAPIKey,
		"apiConfigured": report.APIConfigured,
	}
	if report.ConnectionStatus != nil {
		resp["connectionStatus"] = *report.ConnectionStatus
	}
	if report.Diagnosis.DevMode {
		resp["diagnosis"] = report.Diagnosis
	}

	logger.FromContext(c.Request.Context(), h.logger).Debug("Status reported",
		zap.Bool("api_configured", report.APIConfigured))
	c.JSON(http.StatusOK, resp)
}

// Config returns the configuration the frontend needs
func (h *SystemHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"serverPort": h.port,
		"apiBaseUrl": h.resolver.BaseURL(),
	})
}
