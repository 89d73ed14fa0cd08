package redact

import (
	"regexp"

	"github.com/nyaruka/phonenumbers"
)

// phoneCandidatePattern loosely matches anything shaped like a phone
// number. Each match is handed to phonenumbers for real validation before
// it's treated as PII, so an unrelated 10-digit value (an order total, a
// sequence-adjacent id) isn't masked just because it has the right digit
// count.
var phoneCandidatePattern = regexp.MustCompile(`[+]?[\d\s\-()]{7,20}`)

// phoneRegions is the fixed region list a candidate is tried against when
// it carries no country code of its own.
var phoneRegions = []string{"IN", "US", "GB", "CA", "AU", "DE", "FR", "JP", "SG"}

func maskPhoneNumbers(value string) string {
	return phoneCandidatePattern.ReplaceAllStringFunc(value, func(candidate string) string {
		if isValidPhoneNumber(candidate) {
			return PhoneRedactedValue
		}
		return candidate
	})
}

func hasPhoneNumber(value string) bool {
	for _, candidate := range phoneCandidatePattern.FindAllString(value, -1) {
		if isValidPhoneNumber(candidate) {
			return true
		}
	}
	return false
}

// isValidPhoneNumber accepts candidate as a phone number only if
// libphonenumber parses it as valid in some region, per the redactor's
// semantic-parsing requirement.
func isValidPhoneNumber(candidate string) bool {
	for _, region := range phoneRegions {
		num, err := phonenumbers.Parse(candidate, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(num) {
			return true
		}
	}
	return false
}
