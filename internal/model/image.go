package model

// ImageRef identifies a downloaded product image by file path.
type ImageRef string

// ScoreResult describes how likely one image is to carry label text.
// Score is the number of distinct pattern categories matched.
type ScoreResult struct {
	Image       ImageRef `json:"image"`
	Score       int      `json:"score"`
	Matched     []string `json:"matched"`
	TextPreview string   `json:"text_preview"`
	Error       string   `json:"error,omitempty"`
}

// ImageRefs converts plain paths to ImageRefs.
func ImageRefs(paths []string) []ImageRef {
	out := make([]ImageRef, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, ImageRef(p))
		}
	}
	return out
}
