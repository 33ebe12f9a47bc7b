// Package extract recognizes text on label images and resolves regulated
// fields from it.
package extract

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/label-audit/internal/compliance"
	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/imageprep"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/ocr"
)

// ErrNoRecognizer is returned by NewEngine when no recognition engine is configured.
var ErrNoRecognizer = eris.New("extract: no recognition engine configured")

const (
	fragmentSep = " \n"

	skipTooSmall = "below size threshold"
	skipDeadline = "deadline exceeded"
)

// ImageStat reports what one image contributed to the text blob.
type ImageStat struct {
	Image     model.ImageRef `json:"image"`
	Fragments int            `json:"fragments"`
	Variants  int            `json:"variants"`
	Skipped   string         `json:"skipped,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
}

// Result is the outcome of one extraction run.
type Result struct {
	RawText           string                  `json:"raw_text"`
	Normalized        string                  `json:"normalized_text"`
	Fields            model.FieldSet          `json:"fields"`
	Verdict           model.ComplianceVerdict `json:"verdict"`
	LicenseCandidates []string                `json:"license_candidates,omitempty"`
	Images            []ImageStat             `json:"images,omitempty"`
	// Partial is set when the context ended before every image was read.
	Partial bool `json:"partial"`
}

// Engine runs recognition over images and their variants and resolves fields
// from the combined text.
type Engine struct {
	rec      ocr.Recognizer
	variants imageprep.Generator
	cfg      config.ExtractConfig
	schema   model.Schema
	resolver Resolver
}

// NewEngine creates an Engine. A nil variants generator disables variants.
// Zero Workers and MinConfidence take the defaults (4 and 0.25).
func NewEngine(rec ocr.Recognizer, variants imageprep.Generator, cfg config.ExtractConfig, schema model.Schema) (*Engine, error) {
	if rec == nil {
		return nil, ErrNoRecognizer
	}
	if variants == nil {
		variants = imageprep.None{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.25
	}
	resolver := DefaultResolver()
	if cfg.LicenseWindow > 0 {
		resolver.Window = cfg.LicenseWindow
	}
	if cfg.LicenseContext > 0 {
		resolver.Context = cfg.LicenseContext
	}
	return &Engine{rec: rec, variants: variants, cfg: cfg, schema: schema, resolver: resolver}, nil
}

// Extract recognizes every image and resolves fields from the combined text.
// Per-image failures are recorded in Result.Images and never returned. When
// ctx ends early, fields are resolved from the text gathered so far.
func (e *Engine) Extract(ctx context.Context, images []model.ImageRef) (*Result, error) {
	texts := make([]string, len(images))
	stats := make([]ImageStat, len(images))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, img := range images {
		g.Go(func() error {
			texts[i], stats[i] = e.extractImage(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	var parts []string
	partial := false
	for i := range images {
		if texts[i] != "" {
			parts = append(parts, texts[i])
		}
		if stats[i].Skipped == skipDeadline {
			partial = true
		}
	}

	res := e.FromText(strings.Join(parts, fragmentSep))
	res.Images = stats
	res.Partial = partial
	zap.L().Debug("extract: done",
		zap.Int("images", len(images)),
		zap.Int("text_len", len(res.RawText)),
		zap.Int("fields", res.Fields.Len()),
		zap.Bool("partial", partial),
	)
	return res, nil
}

// FromText resolves fields from an already recognized blob.
func (e *Engine) FromText(raw string) *Result {
	r := e.resolver.Resolve(raw)
	return &Result{
		RawText:           raw,
		Normalized:        r.Normalized,
		Fields:            r.Fields,
		Verdict:           compliance.Score(r.Fields, e.schema),
		LicenseCandidates: r.LicenseCandidates,
	}
}

func (e *Engine) extractImage(ctx context.Context, img model.ImageRef) (string, ImageStat) {
	stat := ImageStat{Image: img}
	log := zap.L().With(zap.String("image", string(img)))

	if ctx.Err() != nil {
		stat.Skipped = skipDeadline
		return "", stat
	}
	info, err := os.Stat(string(img))
	if err != nil {
		stat.Skipped = err.Error()
		return "", stat
	}
	if info.Size() < e.cfg.MinImageBytes {
		stat.Skipped = skipTooSmall
		log.Debug("extract: skipping small image", zap.Int64("bytes", info.Size()))
		return "", stat
	}
	data, err := os.ReadFile(string(img))
	if err != nil {
		stat.Skipped = err.Error()
		return "", stat
	}

	var kept []ocr.Fragment
	recognize := func(name string, data []byte) {
		frags, err := e.rec.Recognize(ctx, data)
		if err != nil {
			stat.Errors = append(stat.Errors, name+": "+err.Error())
			log.Debug("extract: recognition failed", zap.String("variant", name), zap.Error(err))
			return
		}
		kept = append(kept, ocr.Filter(frags, e.cfg.MinConfidence)...)
	}

	recognize("original", data)
	variants, err := e.variants.Variants(ctx, data)
	if err != nil {
		stat.Errors = append(stat.Errors, "variants: "+err.Error())
		log.Debug("extract: variant generation failed", zap.Error(err))
	}
	for _, v := range variants {
		if ctx.Err() != nil {
			break
		}
		stat.Variants++
		recognize(v.Name, v.Data)
	}
	if ctx.Err() != nil {
		// Text recognized before the cut still counts.
		stat.Skipped = skipDeadline
	}

	stat.Fragments = len(kept)
	return ocr.Join(kept, fragmentSep), stat
}
