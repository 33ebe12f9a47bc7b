// Package catalog holds the static pattern tables shared by the image
// relevance scorer and the field extraction engine. Tables are compiled at
// init and are read-only afterwards.
package catalog

import (
	"regexp"

	"github.com/sells-group/label-audit/internal/model"
)

// Mode controls how the extraction engine turns a rule match into a value.
type Mode int

const (
	// ModeDirect stores capture group 1 as the field value.
	ModeDirect Mode = iota
	// ModeLabeledPair stores (group 1, group 2) as a DateValue.
	ModeLabeledPair
	// ModeComposite builds a multi-pack quantity declaration and overrides
	// the simple quantity.
	ModeComposite
	// ModeContact appends to the support field instead of overwriting it.
	ModeContact
	// ModeFallback runs only when the field is still absent.
	ModeFallback
	// ModeLicense contributes to the license candidate pool.
	ModeLicense
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeLabeledPair:
		return "labeled-pair"
	case ModeComposite:
		return "composite"
	case ModeContact:
		return "contact"
	case ModeFallback:
		return "fallback"
	case ModeLicense:
		return "license"
	default:
		return "unknown"
	}
}

// Rule is one named pattern. Field is empty for scorer-only categories.
type Rule struct {
	Name    string
	Field   model.Field
	Mode    Mode
	Pattern *regexp.Regexp
}

// Category is a label-text signal used to rank images.
type Category struct {
	Name    string
	Pattern *regexp.Regexp
}

const unitAlt = `(g|kg|ml|l|L|pcs?|pack|pieces?|grams?)`

var categories = []Category{
	{"Manufacturer", ci(`MARKETED\s*BY|MANUFACTURED\s*BY|Manufacturer|Mfg\s*by|Packed\s*by|Importer|Address|MFD\.?\s*BY|ITC\s*LIMITED`)},
	{"Net Weight", ci(`NET\s*WEIGHT|Net\s*quantity|Net\s*(Wt|Weight).*?\d+\s*(g|kg|ml|l|grams?)`)},
	{"MRP", ci(`M\.?R\.?P|MRP|Rs\.?\s*\d+|MRP\s*Incl\.?\s*of\s*all\s*taxes`)},
	{"ConsumerCare", ci(`FOR\s*FEEDBACK|Consumer\s*Care|Customer\s*Care|Helpline|Email|ITC\s*CARES|1800\s*\d+`)},
	{"Date", ci(`PKD\.?/BATCH|USE\s*BY|(Mfg|Exp|Best\s*Before|Use\s*By).*?\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)},
	{"CountryOfOrigin", ci(`Country\s*of\s*Origin|Made\s*in|COUNTRY\s*OF\s*ORIGIN`)},
	{"FSSAI", ci(`FSSAI|Lic\.?\s*No\.?|License|Lic\s*No|FSSAI\s*Lic|Food\s*Safety|Registration|Reg\s*No`)},
	{"Nutritional", ci(`NUTRITIONAL\s*INFORMATION|Energy|Protein|Carbohydrate|Fat|kcal`)},
	{"Ingredients", ci(`INGREDIENTS|REFINED\s*WHEAT\s*FLOUR|SUGAR|MILK\s*CHOCO`)},
	{"Numbers", ci(`\d{10,}|[0-9]{4,}\s*[0-9]{4,}|Lic\s*[0-9]+|No\s*[0-9]+`)},
}

// rules are evaluated in declaration order; that order is the field priority.
var rules = []Rule{
	{"mrp", model.FieldMRP, ModeDirect, ci(`(?:M\.?R\.?P|MRP|Maximum\s*Retail\s*Price|MRP\s*Incl\.?\s*of\s*all\s*taxes)\s*[:₹Rs\.\s]*([0-9]+(?:\.[0-9]{1,2})?)`)},
	{"quantity", model.FieldQuantity, ModeDirect, ci(`(?:NET\s*WEIGHT|Net\s*Quantity|Net\s*Wt|Net\s*Weight|Quantity|Weight)\s*[:.]*\s*(\d+(?:\.\d+)?)\s*` + unitAlt)},
	{"manufacturer", model.FieldManufacturer, ModeDirect, ci(`(?:MARKETED\s*BY|MANUFACTURED\s*BY|Manufacturer|Mfg\s*by|Packed\s*by|Packer|Importer|MFD\.?\s*BY)\s*:?\s*([^,\n]+(?:LIMITED|LTD|PVT|PRIVATE|CORP|CORPORATION)?[^,\n]*)`)},
	{"origin", model.FieldOrigin, ModeDirect, ci(`(?:Country\s*of\s*Origin|Made\s*in|Origin|COUNTRY\s*OF\s*ORIGIN)\s*:?\s*([^,\n]+)`)},
	{"support", model.FieldSupport, ModeDirect, ci(`(?:FOR\s*FEEDBACK|Consumer\s*Care|Customer\s*Care|Helpline|Email|Phone|Contact|ITC\s*CARES)\s*:?\s*([^,\n@]+@[^,\n]+|[^,\n]*\d{10,}[^,\n]*)`)},
	{"dates", model.FieldDates, ModeLabeledPair, ci(`(PKD\.?/BATCH|USE\s*BY|Mfg|Exp|Best\s*Before|Use\s*By|Manufacturing|Expiry|PACKED|BATCH)\s*:?\s*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|[A-Z0-9]*\d[A-Z0-9]*)`)},
	{"batch", model.FieldBatch, ModeDirect, ci(`(?:PKD\.?/BATCH|Batch|Lot|BATCH)\s*:?\s*([A-Z0-9]+)`)},
	{"license", model.FieldLicense, ModeLicense, ci(`(?:FSSAI|License|Lic\.?|Lic\.?\s*No\.?|Lic\s*No|FSSAI\s*Lic|Food\s*Safety|Registration|Reg\s*No)\s*:?\s*([0-9]+)`)},
	{"barcode", model.FieldBarcode, ModeDirect, ci(`(?:Barcode|EAN|UPC|QR\s*Code)\s*:?\s*([0-9]+)`)},
	{"net_weight_detailed", model.FieldQuantity, ModeComposite, ci(`NET\s*WEIGHT:\s*(\d+(?:\.\d+)?)\s*` + unitAlt + `\s*\((\d+)\s*PACKS?\s*X\s*(\d+(?:\.\d+)?)\s*` + unitAlt + `\)`)},
	{"fssai_license", model.FieldLicense, ModeLicense, ci(`(?:Lic\.?\s*No\.?|Lic\s*No|FSSAI\s*Lic|Food\s*Safety)\s*:?\s*([0-9]+)`)},
	{"contact_email", model.FieldSupport, ModeContact, regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)},
	{"contact_phone", model.FieldSupport, ModeContact, regexp.MustCompile(`(1800\s*\d{3}\s*\d{3}\s*\d{3}|\d{10,})`)},
	{"address", model.FieldManufacturer, ModeFallback, ci(`(?:MARKETED\s*BY|MFD\.?\s*BY)\s*[^:]*:\s*([^,\n]+(?:LIMITED|LTD)[^,\n]*)`)},
	{"fssai_edge_cases", model.FieldLicense, ModeLicense, ci(`(?:FSSAI|Lic|License|Reg|Registration)\s*:?\s*([0-9]{8,})`)},
	{"long_numbers", model.FieldLicense, ModeLicense, regexp.MustCompile(`([0-9]{10,})`)},
	{"license_variants", model.FieldLicense, ModeLicense, ci(`(?:Lic\.?\s*No\.?\s*|Lic\s*No\s*|License\s*No\.?\s*|Reg\.?\s*No\.?\s*)([0-9]+)`)},
	{"near_fssai", model.FieldLicense, ModeLicense, ci(`(?:FSSAI|Food\s*Safety)\s*[^0-9]*([0-9]{8,})`)},
	{"any_quantity", model.FieldQuantity, ModeFallback, ci(`(\d+(?:\.\d+)?)\s*` + unitAlt)},
	{"corporate_suffix", model.FieldManufacturer, ModeFallback, ci(`(ITC\s*LIMITED|LIMITED|LTD|PVT|PRIVATE|CORP)`)},
	{"any_email", model.FieldSupport, ModeFallback, regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)},
	{"tollfree_phone", model.FieldSupport, ModeFallback, regexp.MustCompile(`(1800\s*\d{3}\s*\d{3}\s*\d{3})`)},
}

// LicenseKeyword matches phrases that introduce a license or registration number.
var LicenseKeyword = ci(`FSSAI|Lic|License|Food\s*Safety|Registration`)

// LongNumber matches digit runs long enough to be a license number.
var LongNumber = regexp.MustCompile(`[0-9]{8,}`)

// LicenseMinDigits is the length from which a candidate is treated as a
// plausible license number.
const LicenseMinDigits = 8

// Categories returns the image-scoring categories in declaration order.
func Categories() []Category {
	return categories
}

// Rules returns every field rule in priority order.
func Rules() []Rule {
	return rules
}

// RulesFor returns the rules that target f, in priority order.
func RulesFor(f model.Field) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Field == f {
			out = append(out, r)
		}
	}
	return out
}

// MatchCategories returns the names of categories with at least one match in
// text, in declaration order. Each category counts once however often it matches.
func MatchCategories(text string) []string {
	var matched []string
	for _, c := range categories {
		if c.Pattern.MatchString(text) {
			matched = append(matched, c.Name)
		}
	}
	return matched
}

func ci(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}
