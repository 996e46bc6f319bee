package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, used as metric labels
const (
	KindConfig    = "config"
	KindTransport = "transport"
	KindUpstream  = "upstream"
	KindParse     = "parse"
)

// maxSnippet bounds how much of a provider body is kept on errors
const maxSnippet = 512

// ErrMissingAPIKey is matched by every ConfigError caused by an absent key
var ErrMissingAPIKey = errors.New("API key is not configured")

// ConfigError means the call could not be attempted. No network I/O happens.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Reason != "":
		return "config error: " + e.Reason
	case e.Err != nil:
		return "config error: " + e.Err.Error()
	}
	return "config error"
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UpstreamError is a non-200 provider response
type UpstreamError struct {
	Status int
	Body   string         // truncated response body
	Auth   *AuthDiagnosis // set for 401 only
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider request failed with status %d: %s", e.Status, e.Body)
}

// TransportError means no HTTP response was received
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider call to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the provider answered 200 with a body that does not
// decode as a chat completion
type ParseError struct {
	Status int
	Body   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing provider response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind classifies err into one of the Kind* labels, or "" for foreign errors
func Kind(err error) string {
	var (
		ce *ConfigError
		ue *UpstreamError
		te *TransportError
		pe *ParseError
	)
	switch {
	case errors.As(err, &ce):
		return KindConfig
	case errors.As(err, &ue):
		return KindUpstream
	case errors.As(err, &te):
		return KindTransport
	case errors.As(err, &pe):
		return KindParse
	}
	return ""
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > maxSnippet {
		s = s[:maxSnippet]
	}
	return strings.ToValidUTF8(s, "")
}
