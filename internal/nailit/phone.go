package nailit

import "strings"

const kuwaitCountryCode = "965"

// NormalizePhone reduces a WhatsApp-style number to the local 8 digit form
// the POS accepts ("+965 5000 1234" and "0096550001234" become "50001234").
// Numbers from other countries are returned as bare digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimPrefix(b.String(), "00")
	if len(digits) == 11 && strings.HasPrefix(digits, kuwaitCountryCode) {
		return digits[len(kuwaitCountryCode):]
	}
	return digits
}
