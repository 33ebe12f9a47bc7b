package refine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/label-audit/internal/model"
)

const cleanSystem = `You correct OCR output taken from Indian product packaging. ` +
	`Fix recognition errors and spacing without inventing text. Reply with JSON only.`

const analysisSystem = `You are an expert in the Indian Legal Metrology (Packaged Commodities) Rules, 2011. ` +
	`You cross-verify fields extracted from packaging text and reply with JSON only.`

const cleanTemplate = `This text was extracted from product packaging via OCR:

%q

Return JSON: {"cleaned_text": "<the corrected text>"}`

const analysisTemplate = `RAW OCR TEXT:
%q

OCR EXTRACTED FIELDS:
%s

Compare the fields with the text and return JSON with this structure:
{
  "comparison_analysis": {
    "discrepancies": ["specific discrepancies"],
    "confidence_assessment": "High/Medium/Low",
    "recommended_fields": {
      "mrp": "₹XX.XX or null",
      "quantity": "XX g/kg/ml or null",
      "manufacturer": "company name and address or null",
      "origin": "country or null",
      "support": "consumer care phone (often 1800...) or email, or null",
      "dates": "dates or null",
      "batch": "batch number or null",
      "license": "FSSAI license number or null",
      "barcode": "barcode or null"
    }
  },
  "compliance_assessment": {
    "final_compliance_score": "X/4",
    "compliance_level": "Excellent/Good/Fair/Poor",
    "missing_required": ["labels of missing required fields"],
    "missing_optional": ["labels of missing optional fields"]
  }
}

Required fields are mrp, quantity, manufacturer and origin. Use null for anything not supported by the text.`

type cleanResponse struct {
	CleanedText string `json:"cleaned_text"`
}

type analysisResponse struct {
	Comparison struct {
		Discrepancies []string       `json:"discrepancies"`
		Confidence    string         `json:"confidence_assessment"`
		Recommended   map[string]any `json:"recommended_fields"`
	} `json:"comparison_analysis"`
	Compliance *SelfReport `json:"compliance_assessment"`
}

func cleanPrompt(raw string) string {
	return fmt.Sprintf(cleanTemplate, raw)
}

func analysisPrompt(text string, fields model.FieldSet) (string, error) {
	fj, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "refine: marshal fields")
	}
	return fmt.Sprintf(analysisTemplate, text, fj), nil
}

// decodeJSON parses the first JSON object in reply, tolerating code fences
// and prose around it.
func decodeJSON(reply string, v any) error {
	s := strings.TrimSpace(reply)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return eris.New("refine: no json object in reply")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return eris.Wrap(err, "refine: decode json")
	}
	return nil
}
