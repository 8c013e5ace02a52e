package importer

import (
	"errors"
	"strconv"
	"strings"
)

var errNoDigits = errors.New("no digits in phone number")

// NormalizePhone joins a country code and a local number into +<digits>.
// Numbers mangled into scientific notation by spreadsheets are repaired first.
func NormalizePhone(countryCode, number string) (string, error) {
	cc := digits(repairScientific(countryCode))
	n := digits(repairScientific(number))
	if cc == "" {
		return "", errors.New("no digits in country code")
	}
	if n == "" {
		return "", errNoDigits
	}
	return "+" + cc + n, nil
}

// NormalizeCombined formats a phone that already includes its country code.
func NormalizeCombined(phone string) (string, error) {
	d := digits(repairScientific(strings.TrimSpace(phone)))
	if d == "" {
		return "", errNoDigits
	}
	return "+" + d, nil
}

// repairScientific turns values like 9.17007334125E+11 back into 917007334125.
// Anything that does not parse is returned unchanged.
func repairScientific(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	f, err := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', 0, 64)
}

func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
