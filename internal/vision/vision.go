// Package vision ranks product images by how likely they are to carry a
// legible regulatory label.
package vision

import (
	"context"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/label-audit/internal/catalog"
	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/ocr"
)

const readablePunct = " .,:₹-/"

// Scorer runs one flat recognition pass per image and counts the pattern
// categories the text matches.
type Scorer struct {
	rec ocr.Recognizer
	cfg config.VisionConfig
}

// NewScorer creates a Scorer. Non-positive tunables take their defaults.
func NewScorer(rec ocr.Recognizer, cfg config.VisionConfig) *Scorer {
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 10
	}
	if cfg.MinReadability <= 0 {
		cfg.MinReadability = 0.5
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Scorer{rec: rec, cfg: cfg}
}

// Score returns one ScoreResult per image in input order, regardless of the
// order in which workers finish.
func (s *Scorer) Score(ctx context.Context, images []model.ImageRef) []model.ScoreResult {
	results := make([]model.ScoreResult, len(images))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, img := range images {
		g.Go(func() error {
			results[i] = s.ScoreImage(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ScoreImage scores a single image. Failures are reported in the result with
// score 0, never returned.
func (s *Scorer) ScoreImage(ctx context.Context, img model.ImageRef) model.ScoreResult {
	res := model.ScoreResult{Image: img, Matched: []string{}}
	log := zap.L().With(zap.String("image", string(img)))

	info, err := os.Stat(string(img))
	if err != nil {
		res.Error = err.Error()
		log.Debug("vision: stat failed", zap.Error(err))
		return res
	}
	if info.Size() < s.cfg.MinImageBytes {
		log.Debug("vision: image below size threshold", zap.Int64("bytes", info.Size()))
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	frags, err := ocr.RecognizeFile(ctx, s.rec, img)
	if err != nil {
		res.Error = err.Error()
		log.Debug("vision: recognition failed", zap.Error(err))
		return res
	}
	text := ocr.Join(frags, " ")
	res.TextPreview = Preview(text, s.cfg.PreviewChars)

	if utf8.RuneCountInString(strings.TrimSpace(text)) < s.cfg.MinTextChars {
		log.Debug("vision: too little text")
		return res
	}
	if r := Readability(text); r < s.cfg.MinReadability {
		log.Debug("vision: text looks garbled", zap.Float64("readability", r))
		return res
	}

	if m := catalog.MatchCategories(text); len(m) > 0 {
		res.Matched = m
	}
	res.Score = len(res.Matched)
	log.Debug("vision: scored", zap.Int("score", res.Score), zap.Strings("matched", res.Matched))
	return res
}

// Select scores images and returns the best ones together with the result
// for every image.
func (s *Scorer) Select(ctx context.Context, images []model.ImageRef, minMatches, maxCount int) ([]model.ImageRef, map[model.ImageRef]model.ScoreResult) {
	results := s.Score(ctx, images)
	return Rank(results, minMatches, maxCount), Debug(results)
}

// Rank orders results by score descending then image ascending, drops those
// below minMatches and keeps at most maxCount.
func Rank(results []model.ScoreResult, minMatches, maxCount int) []model.ImageRef {
	sorted := append([]model.ScoreResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Image < sorted[j].Image
	})

	out := []model.ImageRef{}
	for _, r := range sorted {
		if len(out) >= maxCount {
			break
		}
		if r.Score >= minMatches {
			out = append(out, r.Image)
		}
	}
	return out
}

// Relevant returns images scoring at least minScore, in input order.
func Relevant(results []model.ScoreResult, minScore int) []model.ImageRef {
	var out []model.ImageRef
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r.Image)
		}
	}
	return out
}

// Debug indexes results by image.
func Debug(results []model.ScoreResult) map[model.ImageRef]model.ScoreResult {
	out := make(map[model.ImageRef]model.ScoreResult, len(results))
	for _, r := range results {
		out[r.Image] = r
	}
	return out
}

// Readability is the share of runes that are letters, digits or common label
// punctuation. Empty text scores 0.
func Readability(text string) float64 {
	var total, readable int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(readablePunct, r) {
			readable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// Preview truncates text to n runes, marking the cut with "...".
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}
