package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/config"
	"github.com/sells-group/label-audit/internal/imageprep"
	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/ocr"
)

type mapRecognizer map[string][]ocr.Fragment

func (m mapRecognizer) Recognize(ctx context.Context, data []byte) ([]ocr.Fragment, error) {
	if strings.HasPrefix(string(data), "slow") {
		time.Sleep(20 * time.Millisecond)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frags, ok := m[string(data)]
	if !ok {
		return nil, errors.New("unreadable")
	}
	return frags, nil
}

type namedVariants []string

func (n namedVariants) Variants(_ context.Context, data []byte) ([]imageprep.Variant, error) {
	out := make([]imageprep.Variant, 0, len(n))
	for _, name := range n {
		out = append(out, imageprep.Variant{Name: name, Data: []byte(name + ":" + string(data))})
	}
	return out, nil
}

func writeImage(t *testing.T, dir, name, content string) model.ImageRef {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return model.ImageRef(path)
}

func testEngine(t *testing.T, rec ocr.Recognizer, variants imageprep.Generator) *Engine {
	t.Helper()
	e, err := NewEngine(rec, variants, config.ExtractConfig{Workers: 2, MinImageBytes: 4}, model.DefaultSchema())
	require.NoError(t, err)
	return e
}

func TestNewEngine_RequiresRecognizer(t *testing.T) {
	_, err := NewEngine(nil, nil, config.ExtractConfig{}, model.DefaultSchema())
	assert.ErrorIs(t, err, ErrNoRecognizer)
}

func TestExtract_CombinesImagesAndVariants(t *testing.T) {
	dir := t.TempDir()
	rec := mapRecognizer{
		"slow-img1": {{Text: "MRP Rs. 150.00", Confidence: 0.9}, {Text: "noise", Confidence: 0.1}},
		"sharpened:slow-img1": {{Text: "NET WEIGHT 250g", Confidence: 0.25}},
		"fast-img2":           {{Text: "Country of Origin India", Confidence: 0.8}},
	}
	images := []model.ImageRef{
		writeImage(t, dir, "1.jpg", "slow-img1"),
		writeImage(t, dir, "2.jpg", "fast-img2"),
		writeImage(t, dir, "3.jpg", "ab"),
	}

	res, err := testEngine(t, rec, namedVariants{"sharpened"}).Extract(context.Background(), images)
	require.NoError(t, err)

	assert.Equal(t, "MRP Rs. 150.00 \nNET WEIGHT 250g \nCountry of Origin India", res.RawText)
	assert.Equal(t, "₹150.00", res.Fields.String(model.FieldMRP))
	assert.Equal(t, "250 g", res.Fields.String(model.FieldQuantity))
	assert.Equal(t, "India", res.Fields.String(model.FieldOrigin))
	assert.Equal(t, "3/4", res.Verdict.Score)
	assert.False(t, res.Partial)

	require.Len(t, res.Images, 3)
	assert.Equal(t, 2, res.Images[0].Fragments)
	assert.Equal(t, 1, res.Images[0].Variants)
	assert.Len(t, res.Images[1].Errors, 1, "variant failure is recorded, not returned")
	assert.Equal(t, skipTooSmall, res.Images[2].Skipped)
}

func TestExtract_Deterministic(t *testing.T) {
	dir := t.TempDir()
	rec := mapRecognizer{
		"slow-a": {{Text: "Made in India", Confidence: 1}},
		"fast-b": {{Text: "MRP 20", Confidence: 1}},
		"slow-c": {{Text: "Batch: B12", Confidence: 1}},
	}
	images := []model.ImageRef{
		writeImage(t, dir, "a.jpg", "slow-a"),
		writeImage(t, dir, "b.jpg", "fast-b"),
		writeImage(t, dir, "c.jpg", "slow-c"),
	}
	e := testEngine(t, rec, nil)

	first, err := e.Extract(context.Background(), images)
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), images)
	require.NoError(t, err)
	assert.Equal(t, "Made in India \nMRP 20 \nBatch: B12", first.RawText)
	assert.Equal(t, first.RawText, second.RawText)
	assert.True(t, first.Fields.Equal(second.Fields))
}

func TestExtract_CanceledContextIsPartial(t *testing.T) {
	dir := t.TempDir()
	rec := mapRecognizer{"fast-a": {{Text: "MRP 20", Confidence: 1}}}
	images := []model.ImageRef{writeImage(t, dir, "a.jpg", "fast-a")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := testEngine(t, rec, nil).Extract(ctx, images)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 0, res.Fields.Len())
	assert.Equal(t, "0/4", res.Verdict.Score)
	assert.Len(t, res.Verdict.MissingRequired, 4)
}

func TestExtract_MissingFileSkipped(t *testing.T) {
	res, err := testEngine(t, mapRecognizer{}, nil).Extract(context.Background(), []model.ImageRef{"/nonexistent/x.jpg"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Images[0].Skipped)
	assert.Empty(t, res.RawText)
}

func TestFromText(t *testing.T) {
	res := testEngine(t, mapRecognizer{}, nil).FromText("MRP Rs. 0 Net Wt 5 kg")
	assert.Equal(t, "₹0", res.Fields.String(model.FieldMRP))
	assert.Contains(t, res.Verdict.Warnings, "MRP should be positive")
}
