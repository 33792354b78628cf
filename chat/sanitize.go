package chat

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// DefaultIdentity is the user name before SetIdentity is called.
	DefaultIdentity = "Anonymous"

	maxIdentityLen = 24
)

var identityPolicy = bluemonday.StrictPolicy()

// SanitizeIdentity strips markup and control characters from a user name and
// limits its length. It returns "" when nothing usable is left.
func SanitizeIdentity(name string) string {
	if name == "" {
		return ""
	}
	clean := identityPolicy.Sanitize(html.UnescapeString(name))
	clean = html.UnescapeString(clean)
	clean = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, clean)
	clean = strings.TrimSpace(clean)
	if runes := []rune(clean); len(runes) > maxIdentityLen {
		clean = strings.TrimSpace(string(runes[:maxIdentityLen]))
	}
	return clean
}
