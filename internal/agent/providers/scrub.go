package providers

import (
	"strings"
	"unicode/utf8"
)

// secretPrefixes are literal prefixes that mark the start of a credential.
// Matching is prefix-based so a scrub pass never needs to know a provider's
// exact token format, only the family of key it issues.
var secretPrefixes = []string{
	"sk-ant-",
	"sk-",
	"xoxb-",
	"xoxp-",
	"xoxs-",
	"xoxa-",
	"ghp_",
	"github_pat_",
	"hf_",
	"glpat-",
	"ya29.",
	"AIza",
	"eyJ", // JWT header
}

// secretMarkers precede an inline credential value within free-form text
// (error bodies, stack traces) rather than being the credential itself.
var secretMarkers = []string{
	"Authorization: Bearer ",
	"authorization: bearer ",
	"api_key=",
	"apikey=",
	"\"access_token\":\"",
	"\"api_key\":\"",
}

const (
	redactedPlaceholder = "[REDACTED]"
	maxScrubbedLen      = 200
)

// ScrubSecrets replaces any recognizable credential in s with a redaction
// placeholder and truncates the result to a safe length for logs and
// user-facing error messages. It is deliberately conservative: once a
// marker or prefix is found, everything up to the next whitespace is
// treated as the secret and dropped.
func ScrubSecrets(s string) string {
	out := s
	for _, marker := range secretMarkers {
		out = redactAfterMarker(out, marker)
	}
	out = redactTokensWithPrefixes(out, secretPrefixes)
	return truncateUTF8(out, maxScrubbedLen)
}

func redactAfterMarker(s, marker string) string {
	var b strings.Builder
	rest := s
	for {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		valueStart := idx + len(marker)
		b.WriteString(rest[:valueStart])
		b.WriteString(redactedPlaceholder)

		end := valueStart
		for end < len(rest) && !isSecretBoundary(rest[end]) {
			end++
		}
		rest = rest[end:]
	}
}

func redactTokensWithPrefixes(s string, prefixes []string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		matched := ""
		for _, p := range prefixes {
			if strings.HasPrefix(s[i:], p) {
				matched = p
				break
			}
		}
		if matched == "" {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := i
		for end < len(s) && !isSecretBoundary(s[end]) {
			end++
		}
		b.WriteString(redactedPlaceholder)
		i = end
	}
	return b.String()
}

func isSecretBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '"', '\'', ',', ')', ']', '}', '>':
		return true
	default:
		return false
	}
}

// truncateUTF8 truncates s to at most n bytes without splitting a multi-byte
// rune, appending an ellipsis marker when truncation occurred.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
