package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/label-audit/internal/catalog"
	"github.com/sells-group/label-audit/internal/model"
)

var (
	nonEssential = regexp.MustCompile(`[^\p{L}\p{N}_\s₹.,:/-]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Resolution is the outcome of resolving fields from a text blob.
type Resolution struct {
	Fields            model.FieldSet
	Normalized        string
	LicenseCandidates []string
}

// Resolver applies the catalog rules to recognized text.
type Resolver struct {
	// Window is how far around a license keyword numbers are collected.
	Window int
	// Context is how far around a long number a license keyword is looked for.
	Context int
}

// DefaultResolver returns a Resolver with the standard scan windows.
func DefaultResolver() Resolver {
	return Resolver{Window: 25, Context: 50}
}

// ExtractText resolves fields from raw text with the default windows.
func ExtractText(raw string) model.FieldSet {
	return DefaultResolver().Resolve(raw).Fields
}

// Normalize returns the alternate matching surface for raw: NFKC folded,
// non-essential punctuation replaced by spaces and whitespace collapsed.
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = nonEssential.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Resolve runs every catalog rule in priority order over raw, then over the
// normalized surface, and resolves the license from its candidate pool.
func (r Resolver) Resolve(raw string) Resolution {
	normalized := Normalize(raw)
	surfaces := []string{raw, normalized}
	values := map[model.Field]any{}
	var candidates []string

	for _, rule := range catalog.Rules() {
		if rule.Mode == catalog.ModeFallback && present(values, rule.Field) {
			continue
		}
		m := firstMatch(rule.Pattern, surfaces)
		if m == nil {
			continue
		}

		switch rule.Mode {
		case catalog.ModeLicense:
			if c := strings.TrimSpace(m[1]); c != "" {
				candidates = append(candidates, c)
			}
		case catalog.ModeLabeledPair:
			values[rule.Field] = model.DateValue{Label: m[1], Date: m[2]}
		case catalog.ModeComposite:
			values[rule.Field] = strings.TrimSpace(m[1]+" "+m[2]) +
				" (" + m[3] + " PACKS X " + strings.TrimSpace(m[4]+" "+m[5]) + ")"
		case catalog.ModeContact:
			values[rule.Field] = appendContact(values[rule.Field], strings.TrimSpace(m[1]))
		default:
			values[rule.Field] = directValue(rule.Field, m)
		}
	}

	candidates = append(candidates, r.scanLicense(raw)...)
	candidates = dedupe(candidates)
	if license, ok := ResolveLicense(candidates); ok {
		values[model.FieldLicense] = license
	}

	return Resolution{
		Fields:            model.NewFieldSet(values),
		Normalized:        normalized,
		LicenseCandidates: candidates,
	}
}

func firstMatch(re *regexp.Regexp, surfaces []string) []string {
	for _, s := range surfaces {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}
	return nil
}

func directValue(f model.Field, m []string) string {
	switch f {
	case model.FieldMRP:
		amount := strings.NewReplacer(",", "", " ", "").Replace(m[1])
		return "₹" + amount
	case model.FieldQuantity:
		if len(m) > 2 {
			return strings.TrimSpace(m[1] + " " + m[2])
		}
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[0])
}

// appendContact joins a contact onto the existing support value unless it is
// already part of it.
func appendContact(cur any, contact string) any {
	existing, _ := cur.(string)
	switch {
	case contact == "":
		return cur
	case existing == "":
		return contact
	case strings.Contains(existing, contact):
		return existing
	}
	return existing + ", " + contact
}

func present(values map[model.Field]any, f model.Field) bool {
	_, ok := model.NormalizeValue(values[f])
	return ok
}
