package phone

import (
	"errors"
	"testing"

	"github.com/provisia/warden/internal/domain"
)

func TestNormalizeNationalNumber(t *testing.T) {
	t.Parallel()
	n := NewNormalizer("SN")

	got, err := n.Normalize("77 123 45 67")
	if err != nil {
		t.Fatal(err)
	}
	if got != "+221771234567" {
		t.Fatalf("Normalize = %q, want +221771234567", got)
	}
}

func TestNormalizeKeepsExplicitCountryCode(t *testing.T) {
	t.Parallel()
	n := NewNormalizer("SN")

	got, err := n.Normalize("+14155552671")
	if err != nil {
		t.Fatal(err)
	}
	if got != "+14155552671" {
		t.Fatalf("Normalize = %q, default region must not rewrite an explicit country code", got)
	}
}

func TestNormalizeInvalidInput(t *testing.T) {
	t.Parallel()
	n := NewNormalizer("SN")

	for _, raw := range []string{"", "12", "not a phone"} {
		if _, err := n.Normalize(raw); !errors.Is(err, domain.ErrInvalidPhone) {
			t.Fatalf("Normalize(%q): err = %v, want ErrInvalidPhone", raw, err)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	n := NewNormalizer("SN")

	once, err := n.Normalize("771234567")
	if err != nil {
		t.Fatal(err)
	}
	twice, err := n.Normalize(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Fatalf("normalizing canonical output changed it: %q -> %q", once, twice)
	}
}
