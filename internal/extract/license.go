package extract

import (
	"github.com/sells-group/label-audit/internal/catalog"
)

// scanLicense collects long numbers near license keywords: every number
// within Window characters of a keyword, and every number with a keyword
// within Context characters of it.
func (r Resolver) scanLicense(text string) []string {
	var out []string

	for _, kw := range catalog.LicenseKeyword.FindAllStringIndex(text, -1) {
		start := max(0, kw[0]-r.Window)
		end := min(len(text), kw[1]+r.Window)
		out = append(out, catalog.LongNumber.FindAllString(text[start:end], -1)...)
	}

	for _, num := range catalog.LongNumber.FindAllStringIndex(text, -1) {
		start := max(0, num[0]-r.Context)
		end := min(len(text), num[1]+r.Context)
		if catalog.LicenseKeyword.MatchString(text[start:end]) {
			out = append(out, text[num[0]:num[1]])
		}
	}
	return out
}

// ResolveLicense picks the license from a deduplicated candidate pool: the
// first candidate with at least catalog.LicenseMinDigits digits, otherwise
// the longest candidate, earliest first on ties.
func ResolveLicense(candidates []string) (string, bool) {
	var longest string
	for _, c := range candidates {
		if digits(c) >= catalog.LicenseMinDigits {
			return c, true
		}
		if len(c) > len(longest) {
			longest = c
		}
	}
	return longest, longest != ""
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
