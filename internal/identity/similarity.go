package identity

import "strings"

// phoneSuffixLen is how many trailing digits two numbers must share to
// be considered the same line across formatting variants.
const phoneSuffixLen = 7

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func lastDigits(s string, n int) string {
	digits := digitsOnly(s)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}

// phonesSimilar reports whether two raw numbers plausibly denote the
// same line: last 7 digits equal, or full digit strings equal when
// either side has fewer than 7 digits.
func phonesSimilar(a, b string) bool {
	da, db := digitsOnly(a), digitsOnly(b)
	if da == "" || db == "" {
		return false
	}
	if len(da) < phoneSuffixLen || len(db) < phoneSuffixLen {
		return da == db
	}
	return da[len(da)-phoneSuffixLen:] == db[len(db)-phoneSuffixLen:]
}

// nameSimilarity scores how well the request's name parts match an
// account's: exact first name 0.5, substring 0.3; exact last name 0.5,
// substring 0.2; capped at 1.0. Empty parts contribute nothing.
func nameSimilarity(reqFirst, reqLast, accFirst, accLast string) float64 {
	score := 0.0
	score += partScore(reqFirst, accFirst, 0.5, 0.3)
	score += partScore(reqLast, accLast, 0.5, 0.2)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func partScore(req, acc string, exact, substring float64) float64 {
	req = strings.ToLower(strings.TrimSpace(req))
	acc = strings.ToLower(strings.TrimSpace(acc))
	if req == "" || acc == "" {
		return 0
	}
	if req == acc {
		return exact
	}
	if strings.Contains(acc, req) || strings.Contains(req, acc) {
		return substring
	}
	return 0
}
