package scrape

import (
	"context"

	"github.com/sells-group/label-audit/internal/model"
)

// Static returns a fixed page, for images and metadata given on the
// command line.
type Static struct {
	page Page
}

// NewStatic creates a Static scraper for the given page.
func NewStatic(page Page) *Static { return &Static{page: page} }

func (s *Static) Name() string           { return "static" }
func (s *Static) Supports(_ string) bool { return true }

// Scrape returns the fixed page. A non-empty source overrides the page URL.
func (s *Static) Scrape(_ context.Context, source string) (*Result, error) {
	page := s.page
	if source != "" {
		page.URL = source
	}
	if page.Images == nil {
		page.Images = []model.ImageRef{}
	}
	return &Result{Page: page, Source: s.Name()}, nil
}
