// Package scrape turns product sources into pages of images and page-level
// fields for the audit pipeline. Image download happens upstream.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain. Scrapers are tried in order; the first
// successful result is returned.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

func (c *Chain) Name() string { return "chain" }

// Supports reports whether any scraper in the chain supports source.
func (c *Chain) Supports(source string) bool {
	for _, s := range c.scrapers {
		if s.Supports(source) {
			return true
		}
	}
	return false
}

// Scrape tries each scraper in order for a single source.
func (c *Chain) Scrape(ctx context.Context, source string) (*Result, error) {
	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(source) {
			continue
		}
		result, err := s.Scrape(ctx, source)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("source", source),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no suitable scraper for %s", source)
}

// ScrapeAll resolves many sources in parallel. Failed sources are logged and
// skipped; the returned results keep input order.
func (c *Chain) ScrapeAll(ctx context.Context, sources []string, maxConcurrent int) []*Result {
	results := make([]*Result, len(sources))

	g, gCtx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}
	for i, src := range sources {
		g.Go(func() error {
			result, err := c.Scrape(gCtx, src)
			if err != nil {
				zap.L().Warn("scrape: source skipped", zap.String("source", src), zap.Error(err))
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
