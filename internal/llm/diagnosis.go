package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// KeyPrefix is the prefix every DashScope API key carries
const KeyPrefix = "sk-"

// AuthCause is the most likely reason for a 401
type AuthCause string

const (
	CauseKeyMissing     AuthCause = "key_missing"
	CauseKeyMalformed   AuthCause = "key_malformed"
	CauseKeyRejected    AuthCause = "key_rejected"
	CauseRegionMismatch AuthCause = "region_mismatch"
)

// Suggestion texts, in the order they are reported
const (
	SuggestMissingKey = "No API key detected: set DASHSCOPE_API_KEY or QWEN_API_KEY, or put QWEN_API_KEY in .env for local debugging only."
	SuggestMalformed  = "The detected key looks malformed: DashScope API keys start with 'sk-'. Make sure it is not a key from another vendor or a pasted code snippet."
	SuggestExpired    = "The provider returned 401: check that the API key has not been deleted or expired, and regenerate it in the DashScope console if needed."
	SuggestRegion     = "Make sure the base URL matches the key's region:\n - China (Beijing): https://dashscope.aliyuncs.com/compatible-mode/v1\n - International (Singapore): https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	SuggestOpsec      = "Do not hard-code keys in production code or leave them in process arguments for long, where process listings can expose them."
)

// AuthDiagnosis classifies a 401 response
type AuthDiagnosis struct {
	KeyPresent  bool
	KeyFormatOK bool
	// ProviderCode is the error code from the provider body, if any
	ProviderCode string
	// ProviderRejected is set when the body reports invalid_api_key
	ProviderRejected bool
}

const codeInvalidAPIKey = "invalid_api_key"

// providerCode extracts the error code from either the OpenAI-style
// {"error":{"code"}} body or DashScope's flat {"code"} body
func providerCode(body string) string {
	if !gjson.Valid(body) {
		return ""
	}
	for _, path := range []string{"error.code", "code", "error.type"} {
		if r := gjson.Get(body, path); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}

// DiagnoseUnauthorized inspects the key in use and the provider's 401 body
func DiagnoseUnauthorized(apiKey, body string) *AuthDiagnosis {
	key := strings.TrimSpace(apiKey)
	code := providerCode(body)
	return &AuthDiagnosis{
		KeyPresent:       key != "",
		KeyFormatOK:      strings.HasPrefix(key, KeyPrefix),
		ProviderCode:     code,
		ProviderRejected: code == codeInvalidAPIKey || strings.Contains(body, codeInvalidAPIKey),
	}
}

// Cause returns the primary classification
func (d *AuthDiagnosis) Cause() AuthCause {
	switch {
	case !d.KeyPresent:
		return CauseKeyMissing
	case !d.KeyFormatOK:
		return CauseKeyMalformed
	case d.ProviderRejected:
		return CauseKeyRejected
	default:
		return CauseRegionMismatch
	}
}

// Suggestions returns actionable hints. Outside dev mode it returns nil.
func (d *AuthDiagnosis) Suggestions(dev bool) []string {
	if d == nil || !dev {
		return nil
	}

	var out []string
	if !d.KeyPresent {
		out = append(out, SuggestMissingKey)
	} else {
		if !d.KeyFormatOK {
			out = append(out, SuggestMalformed)
		}
		out = append(out, SuggestExpired)
	}
	return append(out, SuggestRegion, SuggestOpsec)
}
