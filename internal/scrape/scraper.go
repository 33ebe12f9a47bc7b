package scrape

import (
	"context"

	"github.com/sells-group/label-audit/internal/model"
)

// Page is what a scraper knows about one product listing: where it came
// from, the downloaded image files, and any fields read from the page markup.
type Page struct {
	URL    string
	Title  string
	Images []model.ImageRef
	Fields model.FieldSet
}

// Result holds a scraped page with its source.
type Result struct {
	Page   Page
	Source string // e.g. "manifest", "static"
}

// Scraper resolves a source (manifest path, URL) into a Page.
type Scraper interface {
	Scrape(ctx context.Context, source string) (*Result, error)
	Name() string
	Supports(source string) bool
}
