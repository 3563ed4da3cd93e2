package utils

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhoneNumber normalizes a phone number to E.164 format, e.g.
// "0812-3456-7890" -> "+628123456789". defaultRegion is the ISO 3166-1
// country code assumed when the number carries no country prefix.
func NormalizePhoneNumber(phone, defaultRegion string) (string, error) {
	phone = strings.TrimSpace(phone)

	num, err := phonenumbers.Parse(phone, defaultRegion)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", phonenumbers.ErrNotANumber
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizeName lowercases and trims a guest name for the case-insensitive
// dedup comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
