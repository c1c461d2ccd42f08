package orchestrator

import "strings"

// NormalizePhone canonicalizes a sender phone number: every character except
// digits and a leading "+" is stripped, and a national "0" prefix is
// rewritten to the configured country code. The function is idempotent:
// normalizing an already-normalized number returns it unchanged.
func NormalizePhone(raw, countryCode string) string {
	raw = strings.TrimSpace(raw)

	var sb strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			sb.WriteRune(r)
		}
	}
	normalized := sb.String()

	if strings.HasPrefix(normalized, "0") {
		normalized = countryCode + normalized[1:]
	}
	return normalized
}
