package config

import (
	"strings"

	"go.uber.org/zap"
)

// Property and environment names consulted by the Resolver
const (
	EnvPrimaryAPIKey   = "DASHSCOPE_API_KEY"
	EnvSecondaryAPIKey = "QWEN_API_KEY"
	EnvBaseURL         = "QWEN_API_BASE_URL"
	EnvModelName       = "QWEN_MODEL_NAME"
	EnvDevFlag         = "ENV"
	EnvLocalDevFlag    = "LOCAL_DEV"

	PropAPIKey          = "qwen.api.api-key"
	PropAPIKeyUpperCase = "QWEN_API_KEY"
	PropBaseURL         = "qwen.api.base-url"
	PropDefaultModel    = "qwen.api.default-model"
	PropActiveProfile   = "profiles.active"
)

// Built-in defaults
const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel   = "qwen-max"
)

// KeySourceNone is reported when no API key could be resolved
const KeySourceNone = "none"

// Credentials is an immutable snapshot of the provider configuration
type Credentials struct {
	APIKey       string
	KeySource    string
	BaseURL      string
	DefaultModel string
	DevMode      bool
}

// HasAPIKey reports whether a usable key was resolved
func (c Credentials) HasAPIKey() bool {
	return c.APIKey != ""
}

// Resolver resolves provider configuration from environment variables and
// runtime properties with a fixed precedence. Every call re-reads the live
// sources; nothing is cached.
type Resolver struct {
	env    Env
	props  *Properties
	logger *zap.Logger
}

// NewResolver creates a resolver. A nil env reads the process environment;
// nil props behave as an empty property layer.
func NewResolver(env Env, props *Properties, logger *zap.Logger) *Resolver {
	if env == nil {
		env = OSEnv{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{env: env, props: props, logger: logger}
}

func (r *Resolver) lookupEnv(name string) (string, bool) {
	value, ok := r.env.LookupEnv(name)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// APIKey resolves the provider key and reports where it came from:
// primary env, secondary env, key property, upper-case key property.
func (r *Resolver) APIKey() (key, source string) {
	if v, ok := r.lookupEnv(EnvPrimaryAPIKey); ok {
		return v, "env:" + EnvPrimaryAPIKey
	}
	if v, ok := r.lookupEnv(EnvSecondaryAPIKey); ok {
		return v, "env:" + EnvSecondaryAPIKey
	}
	if v, ok := r.props.Get(PropAPIKey); ok {
		return v, "property:" + PropAPIKey
	}
	if v, ok := r.props.Get(PropAPIKeyUpperCase); ok {
		return v, "property:" + PropAPIKeyUpperCase
	}
	return "", KeySourceNone
}

// BaseURL resolves the provider base URL: property, env, default.
// Values that don't look like scheme://host fall back to the default.
func (r *Resolver) BaseURL() string {
	base, ok := r.props.Get(PropBaseURL)
	if !ok {
		base, ok = r.lookupEnv(EnvBaseURL)
	}
	if !ok {
		return DefaultBaseURL
	}
	if !ValidBaseURL(base) {
		r.logger.Warn("Base URL appears invalid, falling back to default",
			zap.String("received", base),
			zap.String("default", DefaultBaseURL),
		)
		return DefaultBaseURL
	}
	return base
}

// DefaultModel resolves the default model name: property, env, built-in.
func (r *Resolver) DefaultModel() string {
	if v, ok := r.props.Get(PropDefaultModel); ok {
		if m := SanitizeModel(v); m != "" {
			return m
		}
	}
	if v, ok := r.lookupEnv(EnvModelName); ok {
		if m := SanitizeModel(v); m != "" {
			return m
		}
	}
	return DefaultModel
}

// IsDev reports whether verbose diagnostics are enabled
func (r *Resolver) IsDev() bool {
	if v, ok := r.props.Get(PropActiveProfile); ok && strings.EqualFold(v, "dev") {
		return true
	}
	if v, ok := r.lookupEnv(EnvDevFlag); ok && strings.EqualFold(v, "dev") {
		return true
	}
	v, ok := r.lookupEnv(EnvLocalDevFlag)
	return ok && strings.EqualFold(v, "true")
}

// Resolve takes one snapshot of every value
func (r *Resolver) Resolve() Credentials {
	key, source := r.APIKey()
	return Credentials{
		APIKey:       key,
		KeySource:    source,
		BaseURL:      r.BaseURL(),
		DefaultModel: r.DefaultModel(),
		DevMode:      r.IsDev(),
	}
}

// Refresh reloads the property files before resolving, so edits to the
// config file or .env are visible to status reporting without a restart.
// A failed reload keeps the previous properties.
func (r *Resolver) Refresh() Credentials {
	if r.props != nil {
		if err := r.props.Reload(); err != nil {
			r.logger.Warn("Failed to reload properties", zap.Error(err))
		}
	}
	return r.Resolve()
}
