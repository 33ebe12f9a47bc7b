package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/scrape"
)

// RunBatch audits pages concurrently, at most workers at a time. Each page
// gets its own deadline from opts. Failed pages are logged and left out;
// reports keep input order.
func (p *Pipeline) RunBatch(ctx context.Context, pages []scrape.Page, opts Options, workers int) []*model.Report {
	reports := make([]*model.Report, len(pages))

	g, gCtx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, page := range pages {
		g.Go(func() error {
			r, err := p.Run(gCtx, page, opts)
			if err != nil {
				zap.L().Error("pipeline: audit failed", zap.String("url", page.URL), zap.Error(err))
				return nil
			}
			reports[i] = r
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*model.Report, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	zap.L().Info("pipeline: batch complete", zap.Int("pages", len(pages)), zap.Int("reports", len(out)))
	return out
}
