// Package probe reports whether the AI provider is reachable and, in dev
// mode, what is wrong with the configured credentials.
package probe

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/xcode-ai/ai-gateway/internal/config"
	"github.com/xcode-ai/ai-gateway/internal/llm"
)

// StatusAvailable is the fixed service status of every report
const StatusAvailable = "available"

// ConnectionTester issues a minimal provider request. llm.Client satisfies it.
type ConnectionTester interface {
	TestConnection(ctx context.Context) (status int, ok bool)
}

// Diagnosis describes the live credential configuration
type Diagnosis struct {
	KeySource   string   `json:"keySource"`
	KeyMasked   string   `json:"keyMasked"`
	KeyFormatOK bool     `json:"keyFormatOk"`
	BaseURL     string   `json:"baseUrlDetected"`
	DevMode     bool     `json:"devMode"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Report is the result of a Check
type Report struct {
	Status           string    `json:"status"`
	HasAPIKey        bool      `json:"hasApiKey"`
	APIConfigured    bool      `json:"apiConfigured"`
	ConnectionStatus *int      `json:"connectionStatus,omitempty"`
	Diagnosis        Diagnosis `json:"diagnosis"`
}

// Probe checks provider connectivity
type Probe struct {
	resolver *config.Resolver
	tester   ConnectionTester
	logger   *zap.Logger
}

// New creates a probe
func New(resolver *config.Resolver, tester ConnectionTester, logger *zap.Logger) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{resolver: resolver, tester: tester, logger: logger}
}

// Check re-reads the credential sources and tests the connection. It never
// fails; a missing status means the provider could not be reached.
func (p *Probe) Check(ctx context.Context) Report {
	creds := p.resolver.Refresh()

	report := Report{
		Status:    StatusAvailable,
		HasAPIKey: creds.HasAPIKey(),
		Diagnosis: Diagnosis{
			KeySource:   creds.KeySource,
			KeyMasked:   config.Mask(creds.APIKey),
			KeyFormatOK: strings.HasPrefix(creds.APIKey, llm.KeyPrefix),
			BaseURL:     creds.BaseURL,
			DevMode:     creds.DevMode,
		},
	}

	status, ok := p.test(ctx)
	if ok {
		report.ConnectionStatus = &status
	}
	report.APIConfigured = Healthy(status, ok)

	if ok && status == http.StatusUnauthorized {
		report.Diagnosis.Suggestions = llm.DiagnoseUnauthorized(creds.APIKey, "").Suggestions(creds.DevMode)
	}

	p.logger.Info("Provider connection checked",
		zap.Bool("has_api_key", report.HasAPIKey),
		zap.String("key", report.Diagnosis.KeyMasked),
		zap.Bool("status_present", ok),
		zap.Int("status", status),
	)
	return report
}

func (p *Probe) test(ctx context.Context) (status int, ok bool) {
	if p.tester == nil {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Connection test panicked", zap.Any("panic", r))
			status, ok = 0, false
		}
	}()
	return p.tester.TestConnection(ctx)
}

// Healthy maps a status probe result onto "is the provider usable"
func Healthy(status int, ok bool) bool {
	return ok && status == http.StatusOK
}
