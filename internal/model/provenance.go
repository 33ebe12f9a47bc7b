package model

// Source identifies an evidence source that contributed a field value.
type Source string

const (
	SourceDOM Source = "dom"
	SourceOCR Source = "ocr"
	SourceAI  Source = "ai"
)

// Rank orders sources by trust: OCR > DOM > AI.
func (s Source) Rank() int {
	switch s {
	case SourceOCR:
		return 3
	case SourceDOM:
		return 2
	case SourceAI:
		return 1
	default:
		return 0
	}
}

// Provenance records which source supplied each field of a merged set.
type Provenance map[Field]Source

// Clone returns a copy of p.
func (p Provenance) Clone() Provenance {
	out := make(Provenance, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
