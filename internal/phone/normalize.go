package phone

import (
	"regexp"
	"strings"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/nyaruka/phonenumbers"
)

// UnknownRegion is reported for numbers phonenumbers can not place
const UnknownRegion = "ZZ"

var canonicalPattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Normalize strips everything except digits and a single leading plus.
// Numbers without a leading plus are rejected since the country code can not be guessed.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if !strings.HasPrefix(cleaned, "+") {
		return "", &domain.FormatError{Input: raw}
	}
	return cleaned, nil
}

// Validate checks a normalized number against the E.164 shape
func Validate(canonical string) error {
	if !canonicalPattern.MatchString(canonical) {
		return &domain.ValidationError{Number: canonical}
	}
	return nil
}

// Canonicalize normalizes and validates raw in one step
func Canonicalize(raw string) (string, error) {
	n, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	if err := Validate(n); err != nil {
		return "", err
	}
	return n, nil
}

// Region returns the ISO region code of a canonical number
func Region(canonical string) string {
	parsed, err := phonenumbers.Parse(canonical, "")
	if err != nil {
		return UnknownRegion
	}
	region := phonenumbers.GetRegionCodeForNumber(parsed)
	if region == "" {
		return UnknownRegion
	}
	return region
}
