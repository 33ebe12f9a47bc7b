package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/pipeline"
	"github.com/sells-group/label-audit/internal/scrape"
)

var (
	analyzeManifests  []string
	analyzeImages     []string
	analyzeURL        string
	analyzeTitle      string
	analyzeFields     map[string]string
	analyzeMinMatches int
	analyzeMaxImages  int
	analyzeFormat     string
	analyzeNoAI       bool
	analyzeNoSave     bool
	analyzeWorkers    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Audit product labels from a manifest or a list of images",
	Example: `  label-audit analyze --manifest product.yaml
  label-audit analyze --image front.jpg --image back.jpg --url https://shop.example/p/1 --field mrp=₹40`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pages, err := analyzePages(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, !analyzeNoAI)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := analyzeOptions()
		var reports []*model.Report
		if len(pages) == 1 {
			r, err := env.Pipeline.Run(ctx, pages[0], opts)
			if err != nil {
				return eris.Wrap(err, "pipeline run")
			}
			reports = append(reports, r)
		} else {
			reports = env.Pipeline.RunBatch(ctx, pages, opts, analyzeWorkers)
		}

		for _, r := range reports {
			zap.L().Info("audit complete",
				zap.String("run_id", r.RunID),
				zap.String("url", r.URL),
				zap.String("score", r.Verdict.Score),
				zap.Bool("partial", r.Partial),
			)
		}
		if len(reports) == 1 {
			return writeOutput(os.Stdout, analyzeFormat, reports[0])
		}
		return writeOutput(os.Stdout, analyzeFormat, reports)
	},
}

// analyzePages resolves the command's flags into pages to audit.
func analyzePages(cmd *cobra.Command) ([]scrape.Page, error) {
	if len(analyzeManifests) > 0 && len(analyzeImages) > 0 {
		return nil, eris.New("analyze: use either --manifest or --image, not both")
	}

	if len(analyzeManifests) > 0 {
		chain := scrape.NewChain(scrape.NewManifestScraper())
		results := chain.ScrapeAll(cmd.Context(), analyzeManifests, analyzeWorkers)
		if len(results) == 0 {
			return nil, eris.New("analyze: no manifest could be loaded")
		}
		pages := make([]scrape.Page, len(results))
		for i, r := range results {
			pages[i] = r.Page
		}
		return pages, nil
	}

	if len(analyzeImages) == 0 {
		return nil, eris.New("analyze: provide --manifest or at least one --image")
	}
	raw := make(map[model.Field]string, len(analyzeFields))
	for k, v := range analyzeFields {
		raw[model.Field(k)] = v
	}
	static := scrape.NewStatic(scrape.Page{
		Title:  analyzeTitle,
		Images: model.ImageRefs(analyzeImages),
		Fields: model.FieldSetFromStrings(raw),
	})
	r, err := static.Scrape(cmd.Context(), analyzeURL)
	if err != nil {
		return nil, err
	}
	return []scrape.Page{r.Page}, nil
}

// analyzeOptions merges flags over configuration.
func analyzeOptions() pipeline.Options {
	opts := pipeline.Options{
		MinMatches: cfg.Vision.MinMatches,
		MaxImages:  cfg.Vision.MaxImages,
		SkipAI:     analyzeNoAI,
		Deadline:   time.Duration(cfg.Pipeline.DeadlineSecs) * time.Second,
		SaveRun:    cfg.Pipeline.SaveRuns && !analyzeNoSave,
	}
	if analyzeMinMatches > 0 {
		opts.MinMatches = analyzeMinMatches
	}
	if analyzeMaxImages > 0 {
		opts.MaxImages = analyzeMaxImages
	}
	return opts
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeManifests, "manifest", nil, "product manifest (YAML or JSON); repeatable")
	analyzeCmd.Flags().StringSliceVar(&analyzeImages, "image", nil, "downloaded product image; repeatable")
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "product page URL")
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "", "product title")
	analyzeCmd.Flags().StringToStringVar(&analyzeFields, "field", nil, "field read from the page, e.g. mrp=₹40")
	analyzeCmd.Flags().IntVar(&analyzeMinMatches, "min-matches", 0, "minimum category matches to select an image (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeMaxImages, "max-images", 0, "maximum images to run extraction on (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json or yaml")
	analyzeCmd.Flags().BoolVar(&analyzeNoAI, "no-ai", false, "skip AI text refinement")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "do not store the run")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 2, "manifests audited concurrently")
	rootCmd.AddCommand(analyzeCmd)
}
