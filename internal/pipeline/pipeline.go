// Package pipeline runs one label audit end to end: image scoring, field
// extraction, evidence merge, AI refinement and compliance scoring.
package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/label-audit/internal/compliance"
	"github.com/sells-group/label-audit/internal/extract"
	"github.com/sells-group/label-audit/internal/merge"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/refine"
	"github.com/sells-group/label-audit/internal/scrape"
	"github.com/sells-group/label-audit/internal/store"
	"github.com/sells-group/label-audit/internal/vision"
)

// Stage names recorded in Report.Stages.
const (
	StageOCR    = "ocr"
	StageMerged = "merged"
	StageAI     = "ai"
)

const defaultMaxImages = 5

// Options tune a single run.
type Options struct {
	MinMatches int
	MaxImages  int
	// SkipAI disables the refinement pass.
	SkipAI bool
	// Deadline bounds the whole run. Zero means no deadline.
	Deadline time.Duration
	// SaveRun persists the report when a store is configured.
	SaveRun bool
}

// Pipeline wires the audit stages together.
type Pipeline struct {
	scorer  *vision.Scorer
	engine  *extract.Engine
	refiner refine.Refiner
	store   store.Store
	schema  model.Schema
}

// New creates a Pipeline. refiner may be nil to disable refinement; st may be
// nil to disable run persistence.
func New(scorer *vision.Scorer, engine *extract.Engine, refiner refine.Refiner, st store.Store, schema model.Schema) *Pipeline {
	if refiner == nil {
		refiner = refine.Noop{}
	}
	return &Pipeline{scorer: scorer, engine: engine, refiner: refiner, store: st, schema: schema}
}

// Run audits one scraped page. Recognition and refinement failures degrade
// the report instead of failing it; when the deadline passes, the fields
// resolved so far are scored and the report is marked partial.
func (p *Pipeline) Run(ctx context.Context, page scrape.Page, opts Options) (*model.Report, error) {
	start := time.Now()
	if opts.MaxImages <= 0 {
		opts.MaxImages = defaultMaxImages
	}
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	report := &model.Report{
		RunID:  uuid.NewString(),
		URL:    page.URL,
		Title:  page.Title,
		Images: page.Images,
	}
	log := zap.L().With(zap.String("run_id", report.RunID), zap.String("url", page.URL))
	log.Info("pipeline: starting audit", zap.Int("images", len(page.Images)))

	// Phase 1: rank images by label likelihood.
	phase := time.Now()
	results := p.scorer.Score(ctx, page.Images)
	summary := &model.VisionSummary{
		Selected: vision.Rank(results, opts.MinMatches, opts.MaxImages),
		Relevant: vision.Relevant(results, 1),
		Scoring:  vision.Debug(results),
	}
	if summary.Relevant == nil {
		summary.Relevant = []model.ImageRef{}
	}
	ocrImages := summary.Selected
	if len(ocrImages) == 0 {
		ocrImages = page.Images
		summary.Fallback = true
	}
	report.Vision = summary
	log.Info("pipeline: phase complete",
		zap.String("phase", "vision"),
		zap.Int("selected", len(summary.Selected)),
		zap.Bool("fallback", summary.Fallback),
		zap.Int64("duration_ms", time.Since(phase).Milliseconds()),
	)

	// Phase 2: recognize and resolve fields.
	phase = time.Now()
	res, err := p.engine.Extract(ctx, ocrImages)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract")
	}
	report.OCRText = res.RawText
	report.Stages = append(report.Stages, model.Stage{Name: StageOCR, Fields: res.Fields, Verdict: res.Verdict})
	log.Info("pipeline: phase complete",
		zap.String("phase", "extract"),
		zap.Int("fields", res.Fields.Len()),
		zap.Bool("partial", res.Partial),
		zap.Int64("duration_ms", time.Since(phase).Milliseconds()),
	)

	// Phase 3: OCR evidence overrides page markup.
	out := merge.Layer(merge.From(page.Fields, model.SourceDOM), res.Fields, model.SourceOCR, merge.OverlayWins)
	verdict := compliance.Score(out.Fields, p.schema)
	report.Stages = append(report.Stages, model.Stage{Name: StageMerged, Fields: out.Fields, Verdict: verdict})

	// Phase 4: AI recommendations only fill gaps.
	if !opts.SkipAI && strings.TrimSpace(res.RawText) != "" {
		phase = time.Now()
		out, verdict, report.AI = p.refinePass(ctx, res.RawText, out, verdict)
		report.Stages = append(report.Stages, model.Stage{Name: StageAI, Fields: out.Fields, Verdict: verdict})
		log.Info("pipeline: phase complete",
			zap.String("phase", "refine"),
			zap.Int("applied", len(report.AI.Applied)),
			zap.Int64("duration_ms", time.Since(phase).Milliseconds()),
		)
	}

	report.Fields = out.Fields
	report.Sources = out.Sources
	report.Verdict = verdict
	report.Partial = res.Partial || ctx.Err() != nil
	report.Duration = time.Since(start)

	if opts.SaveRun && p.store != nil {
		// The caller's deadline may be spent; persistence still gets a chance.
		if _, err := p.store.SaveRun(context.WithoutCancel(ctx), report); err != nil {
			log.Warn("pipeline: failed to save run", zap.Error(err))
		}
	}

	log.Info("pipeline: audit complete",
		zap.String("score", verdict.Score),
		zap.Int("fields", out.Fields.Len()),
		zap.Bool("partial", report.Partial),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// refinePass asks the refiner for recommendations and layers them under the
// current result. The refiner's own compliance report replaces the computed
// one only when none of its recommendations were applied.
func (p *Pipeline) refinePass(ctx context.Context, raw string, cur merge.Outcome, verdict model.ComplianceVerdict) (merge.Outcome, model.ComplianceVerdict, *model.AISummary) {
	summary := &model.AISummary{}
	ref, err := p.refiner.Refine(ctx, refine.Request{RawText: raw, Fields: cur.Fields})
	if err != nil {
		summary.Error = err.Error()
		zap.L().Warn("pipeline: refinement failed", zap.Error(err))
		return cur, verdict, summary
	}

	summary.Provider = ref.Provider
	summary.Model = ref.Model
	summary.CleanedText = ref.CleanedText
	summary.InputTokens = ref.Usage.InputTokens
	summary.OutputTokens = ref.Usage.OutputTokens
	summary.CostUSD = ref.CostUSD
	if ref.Recommended.Len() > 0 {
		summary.Recommended = make(map[model.Field]string, ref.Recommended.Len())
		for _, f := range ref.Recommended.Keys() {
			summary.Recommended[f] = ref.Recommended.String(f)
		}
	}

	next := merge.Layer(cur, ref.Recommended, model.SourceAI, merge.FillGapsOnly)
	summary.Applied = next.Applied
	verdict = compliance.Score(next.Fields, p.schema)
	if len(next.Applied) == 0 && !ref.SelfReport.Empty() {
		verdict = AdoptSelfReport(verdict, ref.SelfReport)
		summary.SelfReportAdopted = true
	}
	return next, verdict, summary
}

// AdoptSelfReport overlays the non-empty parts of a refiner's compliance
// report onto v. The reported score is taken only when it reads N/total for
// v's required total with N in range; it then also sets RequiredPresent.
func AdoptSelfReport(v model.ComplianceVerdict, sr *refine.SelfReport) model.ComplianceVerdict {
	if sr == nil {
		return v
	}
	if n, ok := parseScore(sr.Score, v.RequiredTotal); ok {
		v.Score = strconv.Itoa(n) + "/" + strconv.Itoa(v.RequiredTotal)
		v.RequiredPresent = n
	} else if sr.Score != "" {
		zap.L().Debug("pipeline: ignoring self-reported score", zap.String("score", sr.Score))
	}
	if len(sr.MissingRequired) > 0 {
		v.MissingRequired = append([]string(nil), sr.MissingRequired...)
	}
	if len(sr.MissingOptional) > 0 {
		v.Warnings = append([]string(nil), sr.MissingOptional...)
	}
	return v
}

// parseScore reads an "N/total" score whose denominator is total.
func parseScore(s string, total int) (int, bool) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || total <= 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 0 || n > total {
		return 0, false
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil || d != total {
		return 0, false
	}
	return n, true
}
