package federation

import (
	"fmt"
	"strings"

	"github.com/graylingsocial/grayling/domain"
)

// NormalizeIdentifier parses a raw identifier ("user@domain" or
// "acct:user@domain") into its username and domain parts. The original case
// is preserved for display; comparisons downstream are case-insensitive.
func NormalizeIdentifier(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "acct:")
	trimmed = strings.TrimPrefix(trimmed, "@")

	// Split on the last @ so usernames containing @ (rare, but seen in the
	// wild) keep their full local part.
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return "", "", fmt.Errorf("identifier %q: %w", raw, domain.ErrMalformedIdentifier)
	}

	return trimmed[:at], trimmed[at+1:], nil
}

// CanonicalIdentifier returns the lower-cased user@domain form used as a
// comparison key.
func CanonicalIdentifier(username, domainName string) string {
	return strings.ToLower(username + "@" + domainName)
}

// CanonicalMentions maps mention identifiers to their canonical form so
// stored mentions and lookups compare exactly. Entries that do not parse as
// identifiers are dropped.
func CanonicalMentions(accts []string) []string {
	canonical := make([]string, 0, len(accts))
	for _, acct := range accts {
		username, domainName, err := NormalizeIdentifier(acct)
		if err != nil {
			continue
		}
		canonical = append(canonical, CanonicalIdentifier(username, domainName))
	}
	return canonical
}
