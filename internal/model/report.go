package model

import (
	"encoding/json"
	"time"
)

// Stage captures the merged fields and verdict after one pipeline pass.
type Stage struct {
	Name    string            `json:"name"`
	Fields  FieldSet          `json:"fields"`
	Verdict ComplianceVerdict `json:"verdict"`
}

// VisionSummary reports image relevance scoring for a run.
type VisionSummary struct {
	Selected []ImageRef              `json:"selected"`
	Relevant []ImageRef              `json:"relevant"`
	Fallback bool                    `json:"fallback"`
	Scoring  map[ImageRef]ScoreResult `json:"scoring"`
}

// AISummary reports what the text-refinement service contributed.
type AISummary struct {
	Provider          string           `json:"provider"`
	Model             string           `json:"model,omitempty"`
	CleanedText       string           `json:"cleaned_text,omitempty"`
	Recommended       map[Field]string `json:"recommended,omitempty"`
	Applied           []Field          `json:"applied,omitempty"`
	SelfReportAdopted bool             `json:"self_report_adopted"`
	InputTokens       int64            `json:"input_tokens,omitempty"`
	OutputTokens      int64            `json:"output_tokens,omitempty"`
	CostUSD           float64          `json:"cost_usd,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Report is the output artifact of one label audit. It serializes as a flat
// document: every present field is a top-level key next to the run metadata.
type Report struct {
	RunID    string
	URL      string
	Title    string
	Images   []ImageRef
	Fields   FieldSet
	Sources  Provenance
	Verdict  ComplianceVerdict
	Vision   *VisionSummary
	OCRText  string
	AI       *AISummary
	Stages   []Stage
	Partial  bool
	Duration time.Duration
}

// Document returns the flat key-value form of the report.
func (r *Report) Document() map[string]any {
	doc := map[string]any{
		"run_id":      r.RunID,
		"url":         r.URL,
		"title":       r.Title,
		"images":      r.Images,
		"verdict":     r.Verdict,
		"sources":     r.Sources,
		"partial":     r.Partial,
		"duration_ms": r.Duration.Milliseconds(),
	}
	if r.Images == nil {
		doc["images"] = []ImageRef{}
	}
	for _, f := range r.Fields.Keys() {
		v, _ := r.Fields.Get(f)
		doc[string(f)] = v
	}
	if r.Vision != nil {
		doc["vision"] = r.Vision
	}
	if r.OCRText != "" {
		doc["ocr_text"] = r.OCRText
	}
	if r.AI != nil {
		doc["ai"] = r.AI
	}
	if len(r.Stages) > 0 {
		doc["stages"] = r.Stages
	}
	return doc
}

// MarshalJSON encodes the flat document.
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}
