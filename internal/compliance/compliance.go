// Package compliance scores a label FieldSet against the declaration schema.
package compliance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/label-audit/internal/model"
)

// Warning texts emitted by the value checks.
const (
	WarnMRPInvalid   = "MRP format may be invalid"
	WarnMRPNegative  = "MRP should be positive"
	WarnQuantityUnit = "Quantity unit may be missing or invalid"
)

var quantityUnits = []string{"g", "kg", "ml", "l", "pcs", "pack"}

var currencyStripper = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "rs.", "", "rs", "", "INR", "", ",", "", " ", "")

// Score validates fields against schema. Presence drives the required count;
// value checks only add warnings and never flip a present field to absent.
func Score(fields model.FieldSet, schema model.Schema) model.ComplianceVerdict {
	v := model.ComplianceVerdict{
		Compliance:      make(map[model.Field]bool, len(schema.Required)+len(schema.Optional)),
		MissingRequired: []string{},
		Warnings:        []string{},
		RequiredTotal:   len(schema.Required),
		FieldsFound:     fields.Len(),
	}

	for _, sf := range schema.Required {
		present := fields.Has(sf.Field)
		v.Compliance[sf.Field] = present
		if present {
			v.RequiredPresent++
			continue
		}
		v.MissingRequired = append(v.MissingRequired, sf.Label)
	}
	for _, sf := range schema.Optional {
		present := fields.Has(sf.Field)
		v.Compliance[sf.Field] = present
		if !present {
			v.Warnings = append(v.Warnings, "Optional: "+sf.Label)
		}
	}

	if fields.Has(model.FieldMRP) {
		if w := CheckMRP(fields.String(model.FieldMRP)); w != "" {
			v.Warnings = append(v.Warnings, w)
		}
	}
	if fields.Has(model.FieldQuantity) {
		if w := CheckQuantity(fields.String(model.FieldQuantity)); w != "" {
			v.Warnings = append(v.Warnings, w)
		}
	}

	v.Score = fmt.Sprintf("%d/%d", v.RequiredPresent, v.RequiredTotal)
	return v
}

// ParseMRP strips currency markers and thousands separators and parses the
// remaining amount.
func ParseMRP(raw string) (float64, error) {
	s := currencyStripper.Replace(strings.TrimSpace(raw))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

// CheckMRP returns a warning for an unparsable or non-positive price, or "".
func CheckMRP(raw string) string {
	f, err := ParseMRP(raw)
	if err != nil {
		return WarnMRPInvalid
	}
	if f <= 0 {
		return WarnMRPNegative
	}
	return ""
}

// CheckQuantity returns a warning when no unit token appears in raw, or "".
func CheckQuantity(raw string) string {
	q := strings.ToLower(raw)
	for _, u := range quantityUnits {
		if strings.Contains(q, u) {
			return ""
		}
	}
	return WarnQuantityUnit
}
