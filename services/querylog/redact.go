package querylog

import (
	"regexp"
	"strings"
)

// Placeholders written in place of redacted values
const (
	redactedEmail = "[EMAIL_REDACTED]"
	redactedPhone = "[PHONE_REDACTED]"
	redactedCard  = "[CC_REDACTED]"
	redactedIP    = "[IP_REDACTED]"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	// 13 to 19 digits, optionally grouped by spaces or dashes
	cardPattern = regexp.MustCompile(`\b(?:[0-9][ \-]?){12,18}[0-9]\b`)

	ipv4Pattern = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)

	// North American numbers only; bare years and counts in research questions must survive
	phonePattern = regexp.MustCompile(`(?:\+?1[\-. ]?)?\(?\b[0-9]{3}\)?[\-. ]?[0-9]{3}[\-. ]?[0-9]{4}\b`)
)

// RedactQuery masks contact and payment details before a query is persisted.
// Card candidates are only masked when they pass the Luhn check.
func RedactQuery(query string) string {
	query = emailPattern.ReplaceAllString(query, redactedEmail)
	query = cardPattern.ReplaceAllStringFunc(query, func(m string) string {
		if luhnValid(m) {
			return redactedCard
		}
		return m
	})
	query = ipv4Pattern.ReplaceAllString(query, redactedIP)
	return phonePattern.ReplaceAllString(query, redactedPhone)
}

func luhnValid(number string) bool {
	number = strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(number) < 13 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
