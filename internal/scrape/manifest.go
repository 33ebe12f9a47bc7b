package scrape

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/label-audit/internal/model"
)

// Manifest is the on-disk description of one scraped product. JSON
// manifests are accepted too since JSON is valid YAML.
type Manifest struct {
	URL    string         `yaml:"url"`
	Title  string         `yaml:"title"`
	Images []string       `yaml:"images"`
	Fields map[string]any `yaml:"fields"`
}

// ManifestScraper reads product manifests written by an external downloader.
// Relative image paths resolve against the manifest's directory.
type ManifestScraper struct{}

// NewManifestScraper creates a ManifestScraper.
func NewManifestScraper() *ManifestScraper { return &ManifestScraper{} }

func (m *ManifestScraper) Name() string { return "manifest" }

// Supports reports whether source looks like a manifest file.
func (m *ManifestScraper) Supports(source string) bool {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// Scrape loads the manifest at path.
func (m *ManifestScraper) Scrape(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "manifest: scrape")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	man, err := ParseManifest(data)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: %s", path)
	}

	dir := filepath.Dir(path)
	images := make([]string, 0, len(man.Images))
	for _, img := range man.Images {
		if img == "" {
			continue
		}
		if !filepath.IsAbs(img) {
			img = filepath.Join(dir, img)
		}
		images = append(images, img)
	}

	page := Page{
		URL:    man.URL,
		Title:  man.Title,
		Images: model.ImageRefs(images),
		Fields: manifestFields(man.Fields),
	}
	zap.L().Debug("manifest: loaded",
		zap.String("path", path),
		zap.Int("images", len(page.Images)),
		zap.Int("fields", page.Fields.Len()),
	)
	return &Result{Page: page, Source: m.Name()}, nil
}

// ParseManifest decodes a YAML or JSON manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var man Manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return nil, eris.Wrap(err, "parse manifest")
	}
	if man.URL == "" && man.Title == "" && len(man.Images) == 0 && len(man.Fields) == 0 {
		return nil, eris.New("empty manifest")
	}
	return &man, nil
}

func manifestFields(raw map[string]any) model.FieldSet {
	values := make(map[model.Field]any, len(raw))
	for k, v := range raw {
		f := model.Field(strings.ToLower(strings.TrimSpace(k)))
		if !f.IsKnown() {
			zap.L().Debug("manifest: keeping undeclared field", zap.String("field", k))
		}
		values[f] = v
	}
	return model.NewFieldSet(values)
}
