package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive data in log output.
const RedactedPlaceholder = "[REDACTED]"

// Model hubs and object stores hand out tokens that end up in model URLs,
// env dumps and error strings.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(hf_[a-zA-Z0-9]{30,})`),          // Hugging Face tokens
	regexp.MustCompile(`(?i)(ghp_[a-zA-Z0-9]{36})`),          // GitHub tokens
	regexp.MustCompile(`(?i)(github_pat_[a-zA-Z0-9_]{22,})`), // GitHub fine-grained tokens
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`), // Bearer tokens
	regexp.MustCompile(`(?i)(X-Amz-Signature=[a-f0-9]{64})`), // presigned URLs
	regexp.MustCompile(`(?i)((password|secret|token)\s*[:=]\s*[^\s,;&]{8,})`),
	regexp.MustCompile(`(?i)(api_?key\s*[:=]\s*[^\s,;&]{8,})`),
}

// Field names containing any of these are always redacted.
var sensitiveKeyParts = []string{
	"HF_TOKEN",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"APIKEY",
}

// RedactSensitiveData replaces every detected credential in value.
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	for _, pattern := range sensitivePatterns {
		value = pattern.ReplaceAllString(value, RedactedPlaceholder)
	}
	return value
}

// IsSensitiveField reports whether a field name indicates a credential.
func IsSensitiveField(fieldName string) bool {
	upper := strings.ToUpper(fieldName)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(upper, part) {
			return true
		}
	}
	return false
}
