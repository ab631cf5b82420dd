package domain

import "strings"

// NormalizePhone canonicalizes a phone number to E.164. Ten-digit numbers
// are assumed to be NANP and get a +1 prefix.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	number := digits.String()
	switch {
	case len(number) == 10:
		return "+1" + number, nil
	case len(number) == 11 && strings.HasPrefix(number, "1"):
		return "+" + number, nil
	case len(number) >= 11 && len(number) <= 15:
		return "+" + number, nil
	default:
		return "", ErrInvalidPhone
	}
}
