// Package merge combines FieldSets from independent evidence sources under an
// explicit precedence policy.
package merge

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/label-audit/internal/model"
)

// Policy decides whether an overlay value may replace a base value.
type Policy int

const (
	// OverlayWins replaces base values with every value the overlay carries.
	OverlayWins Policy = iota
	// BaseWins keeps base values on conflict; overlay values fill absent keys.
	BaseWins
	// FillGapsOnly applies overlay values only to declared label fields that
	// are absent from base. Unknown overlay keys are ignored.
	FillGapsOnly
)

func (p Policy) String() string {
	switch p {
	case OverlayWins:
		return "overlay-wins"
	case BaseWins:
		return "base-wins"
	case FillGapsOnly:
		return "fill-gaps-only"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a policy name to its Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "overlay-wins":
		return OverlayWins, nil
	case "base-wins":
		return BaseWins, nil
	case "fill-gaps-only":
		return FillGapsOnly, nil
	}
	return 0, eris.Errorf("merge: unknown policy %q", s)
}

// Merge returns a new FieldSet combining base and overlay under p. Neither
// input is modified.
func Merge(base, overlay model.FieldSet, p Policy) model.FieldSet {
	out, _ := merge(base, overlay, p)
	return out
}

// Outcome is a merge result with per-field provenance.
type Outcome struct {
	Fields  model.FieldSet
	Sources model.Provenance
	// Applied lists overlay fields that changed the result, in key order.
	Applied []model.Field
}

// Layer merges overlay from src onto an existing result, recording which
// source now owns each field.
func Layer(cur Outcome, overlay model.FieldSet, src model.Source, p Policy) Outcome {
	fields, applied := merge(cur.Fields, overlay, p)
	sources := cur.Sources.Clone()
	for _, f := range applied {
		sources[f] = src
	}
	return Outcome{Fields: fields, Sources: sources, Applied: applied}
}

// From starts an Outcome attributing every field of fs to src.
func From(fs model.FieldSet, src model.Source) Outcome {
	sources := make(model.Provenance, fs.Len())
	for _, f := range fs.Keys() {
		sources[f] = src
	}
	return Outcome{Fields: fs, Sources: sources}
}

func merge(base, overlay model.FieldSet, p Policy) (model.FieldSet, []model.Field) {
	out := base
	var applied []model.Field
	for _, f := range overlay.Keys() {
		v, _ := overlay.Get(f)
		cur, present := base.Get(f)
		switch p {
		case OverlayWins:
			if present && cur == v {
				continue
			}
		case BaseWins:
			if present {
				continue
			}
		case FillGapsOnly:
			if present || !f.IsKnown() {
				continue
			}
		}
		out = out.With(f, v)
		applied = append(applied, f)
	}
	return out, applied
}
