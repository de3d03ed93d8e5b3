// Package phone canonicalizes raw phone numbers to E.164 so every
// matching strategy compares the same representation.
package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"

	"github.com/provisia/warden/internal/domain"
)

// Normalizer parses raw input against a default region and formats it
// as E.164. Input that already carries a country code ignores the region.
type Normalizer struct {
	defaultRegion string
}

func NewNormalizer(defaultRegion string) *Normalizer {
	if defaultRegion == "" {
		defaultRegion = "SN"
	}
	return &Normalizer{defaultRegion: defaultRegion}
}

// Normalize returns the canonical E.164 form of raw, or
// domain.ErrInvalidPhone when the input is unparseable or not a valid
// number for any region.
func (n *Normalizer) Normalize(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", domain.ErrInvalidPhone)
	}
	num, err := phonenumbers.Parse(raw, n.defaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
