package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/compliance"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/refine"
	"github.com/sells-group/label-audit/internal/scrape"
	"github.com/sells-group/label-audit/internal/store"
)

const labelText = "MRP Rs. 150.00\nNET WEIGHT 250g\nCountry of Origin India"

func labelPage(t *testing.T) (scrape.Page, labelRecognizer) {
	t.Helper()
	dir := t.TempDir()
	rec := labelRecognizer{
		"label": labelText,
		"photo": "Tasty snack for tea time",
	}
	page := scrape.Page{
		URL:   "https://shop.example/p/42",
		Title: "Masala Chips",
		Images: []model.ImageRef{
			writeImage(t, dir, "photo.jpg", "photo"),
			writeImage(t, dir, "label.jpg", "label"),
		},
		Fields: model.FieldSetFromStrings(map[model.Field]string{
			model.FieldMRP:          "₹999",
			model.FieldManufacturer: "ACME FOODS LTD",
		}),
	}
	return page, rec
}

func TestRun_MergesEvidenceInOrder(t *testing.T) {
	page, rec := labelPage(t)
	ref := &stubRefiner{out: &refine.Refinement{
		Provider: "stub",
		Recommended: model.FieldSetFromStrings(map[model.Field]string{
			model.FieldMRP:   "₹1",
			model.FieldBatch: "B12",
		}),
		SelfReport: &refine.SelfReport{Score: "1/4"},
		Usage:      refine.Usage{InputTokens: 900, OutputTokens: 120},
		CostUSD:    0.0012,
	}}

	report, err := newTestPipeline(t, rec, ref, nil).Run(context.Background(), page, Options{MinMatches: 1, MaxImages: 5})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "Masala Chips", report.Title)
	assert.Equal(t, []model.ImageRef{page.Images[1]}, report.Vision.Selected)
	assert.False(t, report.Vision.Fallback)
	assert.Equal(t, 0, report.Vision.Scoring[page.Images[0]].Score)

	f := report.Fields
	assert.Equal(t, "₹150.00", f.String(model.FieldMRP), "OCR overrides page markup")
	assert.Equal(t, "ACME FOODS LTD", f.String(model.FieldManufacturer))
	assert.Equal(t, "250 g", f.String(model.FieldQuantity))
	assert.Equal(t, "India", f.String(model.FieldOrigin))
	assert.Equal(t, "B12", f.String(model.FieldBatch), "AI fills gaps")

	assert.Equal(t, model.Provenance{
		model.FieldMRP:          model.SourceOCR,
		model.FieldManufacturer: model.SourceDOM,
		model.FieldQuantity:     model.SourceOCR,
		model.FieldOrigin:       model.SourceOCR,
		model.FieldBatch:        model.SourceAI,
	}, report.Sources)

	assert.Equal(t, "4/4", report.Verdict.Score, "self report ignored once recommendations apply")
	require.NotNil(t, report.AI)
	assert.Equal(t, []model.Field{model.FieldBatch}, report.AI.Applied)
	assert.False(t, report.AI.SelfReportAdopted)
	assert.Equal(t, map[model.Field]string{model.FieldMRP: "₹1", model.FieldBatch: "B12"}, report.AI.Recommended)
	assert.Equal(t, int64(900), report.AI.InputTokens)
	assert.Equal(t, int64(120), report.AI.OutputTokens)
	assert.InDelta(t, 0.0012, report.AI.CostUSD, 1e-9)

	require.Len(t, report.Stages, 3)
	assert.Equal(t, StageOCR, report.Stages[0].Name)
	assert.Equal(t, "3/4", report.Stages[0].Verdict.Score)
	assert.Equal(t, StageMerged, report.Stages[1].Name)
	assert.Equal(t, "4/4", report.Stages[1].Verdict.Score)
	assert.Equal(t, StageAI, report.Stages[2].Name)
	assert.Equal(t, 5, report.Stages[2].Fields.Len())

	assert.Equal(t, 1, ref.calls)
	assert.Contains(t, ref.got.RawText, "NET WEIGHT 250g")
	assert.Equal(t, 4, ref.got.Fields.Len(), "refiner sees the merged fields")
	assert.False(t, report.Partial)
}

func TestRun_AdoptsSelfReportWhenNothingApplied(t *testing.T) {
	page, rec := labelPage(t)
	page.Fields = model.FieldSet{}
	ref := &stubRefiner{out: &refine.Refinement{
		Provider:    "stub",
		Recommended: model.FieldSetFromStrings(map[model.Field]string{model.FieldMRP: "₹150.00"}),
		SelfReport: &refine.SelfReport{
			Score:           "2/4",
			MissingRequired: []string{"Manufacturer/Packer Name", "Country of Origin"},
			MissingOptional: []string{"Batch/Lot Number"},
		},
	}}

	report, err := newTestPipeline(t, rec, ref, nil).Run(context.Background(), page, Options{MinMatches: 1})
	require.NoError(t, err)

	assert.Empty(t, report.AI.Applied)
	assert.True(t, report.AI.SelfReportAdopted)
	assert.Equal(t, "2/4", report.Verdict.Score)
	assert.Equal(t, []string{"Manufacturer/Packer Name", "Country of Origin"}, report.Verdict.MissingRequired)
	assert.Equal(t, []string{"Batch/Lot Number"}, report.Verdict.Warnings)
	assert.Equal(t, 2, report.Verdict.RequiredPresent, "present count follows the adopted score")
	assert.Equal(t, 4, report.Verdict.RequiredTotal)
}

func TestRun_RefinerFailureKeepsMergedResult(t *testing.T) {
	page, rec := labelPage(t)
	ref := &stubRefiner{err: errors.New("refine: analysis: service down")}

	report, err := newTestPipeline(t, rec, ref, nil).Run(context.Background(), page, Options{MinMatches: 1})
	require.NoError(t, err)

	require.NotNil(t, report.AI)
	assert.Contains(t, report.AI.Error, "service down")
	assert.Equal(t, report.Stages[1].Fields, report.Fields)
	assert.Equal(t, report.Stages[1].Verdict, report.Verdict)
}

func TestRun_FallsBackToAllImages(t *testing.T) {
	page, rec := labelPage(t)

	report, err := newTestPipeline(t, rec, nil, nil).Run(context.Background(), page, Options{MinMatches: 10})
	require.NoError(t, err)

	assert.True(t, report.Vision.Fallback)
	assert.Empty(t, report.Vision.Selected)
	assert.Equal(t, []model.ImageRef{page.Images[1]}, report.Vision.Relevant)
	assert.Contains(t, report.OCRText, "Tasty snack")
	assert.Contains(t, report.OCRText, "NET WEIGHT")
}

func TestRun_NoTextSkipsRefinement(t *testing.T) {
	dir := t.TempDir()
	rec := labelRecognizer{}
	page := scrape.Page{
		Images: []model.ImageRef{writeImage(t, dir, "blank.jpg", "blank")},
		Fields: model.FieldSetFromStrings(map[model.Field]string{model.FieldOrigin: "India"}),
	}
	ref := &stubRefiner{}

	report, err := newTestPipeline(t, rec, ref, nil).Run(context.Background(), page, Options{MinMatches: 1})
	require.NoError(t, err)

	assert.Equal(t, 0, ref.calls)
	assert.Nil(t, report.AI)
	assert.Len(t, report.Stages, 2)
	assert.Equal(t, "India", report.Fields.String(model.FieldOrigin))
	assert.Equal(t, "1/4", report.Verdict.Score)
}

func TestRun_SkipAI(t *testing.T) {
	page, rec := labelPage(t)
	ref := &stubRefiner{}

	report, err := newTestPipeline(t, rec, ref, nil).Run(context.Background(), page, Options{MinMatches: 1, SkipAI: true})
	require.NoError(t, err)
	assert.Equal(t, 0, ref.calls)
	assert.Nil(t, report.AI)
}

func TestRun_DeadlineYieldsPartialReport(t *testing.T) {
	dir := t.TempDir()
	rec := labelRecognizer{"slow-label": "Made in India"}
	page := scrape.Page{
		Images: []model.ImageRef{writeImage(t, dir, "a.jpg", "slow-label")},
		Fields: model.FieldSetFromStrings(map[model.Field]string{model.FieldMRP: "₹20"}),
	}

	report, err := newTestPipeline(t, rec, nil, nil).Run(context.Background(), page, Options{
		MinMatches: 1,
		Deadline:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, report.Partial)
	assert.Equal(t, "₹20", report.Fields.String(model.FieldMRP))
	assert.Equal(t, "1/4", report.Verdict.Score)
}

func TestRun_SavesRun(t *testing.T) {
	page, rec := labelPage(t)
	st := store.NewMemory()
	p := newTestPipeline(t, rec, nil, st)

	report, err := p.Run(context.Background(), page, Options{MinMatches: 1, SaveRun: true})
	require.NoError(t, err)

	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, page.URL, run.URL)
	assert.Equal(t, report.Verdict.Score, run.Score)

	other, err := p.Run(context.Background(), page, Options{MinMatches: 1})
	require.NoError(t, err)
	_, err = st.GetRun(context.Background(), other.RunID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdoptSelfReport(t *testing.T) {
	base := model.ComplianceVerdict{
		Score:           "2/4",
		MissingRequired: []string{"Country of Origin"},
		Warnings:        []string{"MRP format may be invalid"},
	}

	assert.Equal(t, base, AdoptSelfReport(base, nil))

	got := AdoptSelfReport(base, &refine.SelfReport{MissingOptional: []string{"Product Barcode"}})
	assert.Equal(t, "2/4", got.Score)
	assert.Equal(t, []string{"Country of Origin"}, got.MissingRequired)
	assert.Equal(t, []string{"Product Barcode"}, got.Warnings)
}

func TestAdoptSelfReport_Score(t *testing.T) {
	base := compliance.Score(
		model.FieldSetFromStrings(map[model.Field]string{model.FieldMRP: "₹40"}),
		model.DefaultSchema(),
	)
	require.Equal(t, "1/4", base.Score)

	tests := []struct {
		name        string
		score       string
		wantScore   string
		wantPresent int
	}{
		{"valid", "3/4", "3/4", 3},
		{"spaced", " 0 / 4 ", "0/4", 0},
		{"numerator too large", "5/4", "1/4", 1},
		{"wrong denominator", "9/9", "1/4", 1},
		{"negative", "-1/4", "1/4", 1},
		{"not a score", "Compliant", "1/4", 1},
		{"empty", "", "1/4", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdoptSelfReport(base, &refine.SelfReport{Score: tt.score, MissingRequired: []string{"x"}})
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantPresent, got.RequiredPresent)
			assert.Equal(t, 4, got.RequiredTotal)
			assert.Equal(t, []string{"x"}, got.MissingRequired)
		})
	}
}

func TestRunBatch_KeepsOrder(t *testing.T) {
	first, rec := labelPage(t)
	second := first
	second.URL = "https://shop.example/p/43"
	p := newTestPipeline(t, rec, nil, nil)

	reports := p.RunBatch(context.Background(), []scrape.Page{first, second}, Options{MinMatches: 1}, 2)
	require.Len(t, reports, 2)
	assert.Equal(t, first.URL, reports[0].URL)
	assert.Equal(t, second.URL, reports[1].URL)
	assert.NotEqual(t, reports[0].RunID, reports[1].RunID)
}
