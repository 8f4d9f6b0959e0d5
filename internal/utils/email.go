package utils

import (
	"regexp"
	"strings"
)

// NormalizeEmailAddress lowers the address and strips a display-name
// wrapper like "Jane Doe <jane@acme.com>".
func NormalizeEmailAddress(address string) string {
	address = strings.TrimSpace(address)

	if strings.Contains(address, "<") && strings.Contains(address, ">") {
		startIdx := strings.LastIndex(address, "<") + 1
		endIdx := strings.LastIndex(address, ">")
		if startIdx > 0 && endIdx > startIdx {
			address = address[startIdx:endIdx]
		}
	}

	return strings.ToLower(strings.TrimSpace(address))
}

// ExtractDomainFromEmail returns the lowered domain part, or "" when the
// address is malformed.
func ExtractDomainFromEmail(email string) string {
	email = NormalizeEmailAddress(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// NormalizeSubject removes reply/forward prefixes, case insensitive.
func NormalizeSubject(subject string) string {
	re := regexp.MustCompile(`(?i)^(re|fwd|fw|aw|sv|vs){0,1}(\s*:|\s*\[\d+\]\s*:)*\s*`)
	normalized := re.ReplaceAllString(subject, "")
	return strings.TrimSpace(normalized)
}

// NormalizeMessageID strips the angle brackets of an RFC 5322 Message-ID.
func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// SplitAddressList parses a comma separated header value into clean
// addresses.
func SplitAddressList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
