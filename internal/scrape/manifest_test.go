package scrape

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/model"
)

func writeManifest(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestManifestScraper_YAML(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "product.yaml", `
url: https://shop.example/p/42
title: Masala Chai 250g
images:
  - img/front.jpg
  - /abs/back.png
  - ""
fields:
  MRP: "₹120"
  quantity: "250 g"
  origin: ""
  dates:
    label: Best Before
    date: 12/2025
  seller_rating: 4.5
`)

	s := NewManifestScraper()
	require.True(t, s.Supports(p))
	r, err := s.Scrape(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "manifest", r.Source)
	assert.Equal(t, "https://shop.example/p/42", r.Page.URL)
	assert.Equal(t, "Masala Chai 250g", r.Page.Title)
	assert.Equal(t, []model.ImageRef{
		model.ImageRef(filepath.Join(dir, "img/front.jpg")),
		"/abs/back.png",
	}, r.Page.Images)

	f := r.Page.Fields
	assert.Equal(t, "₹120", f.String(model.FieldMRP))
	assert.Equal(t, "250 g", f.String(model.FieldQuantity))
	assert.False(t, f.Has(model.FieldOrigin), "empty values are dropped")
	v, ok := f.Get(model.FieldDates)
	require.True(t, ok)
	assert.Equal(t, model.DateValue{Label: "Best Before", Date: "12/2025"}, v)
	assert.Equal(t, "4.5", f.String(model.Field("seller_rating")))
}

func TestManifestScraper_JSON(t *testing.T) {
	dir := t.TempDir()
	p := writeManifest(t, dir, "product.json",
		`{"url": "https://shop.example/p/7", "images": ["x.webp"], "fields": {"manufacturer": "ACME FOODS LTD"}}`)

	r, err := NewManifestScraper().Scrape(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "ACME FOODS LTD", r.Page.Fields.String(model.FieldManufacturer))
	assert.Len(t, r.Page.Images, 1)
}

func TestManifestScraper_Errors(t *testing.T) {
	dir := t.TempDir()
	s := NewManifestScraper()

	_, err := s.Scrape(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = s.Scrape(context.Background(), writeManifest(t, dir, "bad.yaml", "images: [unclosed"))
	assert.Error(t, err)

	_, err = s.Scrape(context.Background(), writeManifest(t, dir, "empty.yaml", "# nothing\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty manifest")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scrape(ctx, writeManifest(t, dir, "ok.yaml", "title: x\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManifestScraper_Supports(t *testing.T) {
	s := NewManifestScraper()
	for _, p := range []string{"a.yaml", "a.YML", "dir/a.json"} {
		assert.True(t, s.Supports(p), p)
	}
	for _, p := range []string{"a.jpg", "https://shop.example/p/1", ""} {
		assert.False(t, s.Supports(p), p)
	}
}
