package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/label-audit/internal/model"
	"github.com/sells-group/label-audit/internal/vision"
)

var (
	scoreMinMatches int
	scoreMaxImages  int
	scoreFormat     string
)

var scoreCmd = &cobra.Command{
	Use:   "score-images <image>...",
	Short: "Rank images by how likely they carry label text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		minMatches, maxImages := cfg.Vision.MinMatches, cfg.Vision.MaxImages
		if scoreMinMatches > 0 {
			minMatches = scoreMinMatches
		}
		if scoreMaxImages > 0 {
			maxImages = scoreMaxImages
		}

		results := env.Scorer.Score(ctx, model.ImageRefs(args))
		selected := vision.Rank(results, minMatches, maxImages)

		if scoreFormat == "table" {
			formatScores(os.Stdout, results, selected)
			return nil
		}
		return writeOutput(os.Stdout, scoreFormat, map[string]any{
			"selected": selected,
			"results":  results,
		})
	},
}

// formatScores writes one row per image, marking the selected ones.
func formatScores(out io.Writer, results []model.ScoreResult, selected []model.ImageRef) {
	picked := make(map[model.ImageRef]bool, len(selected))
	for _, img := range selected {
		picked[img] = true
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "IMAGE\tSCORE\tSELECTED\tMATCHED\tERROR")
	for _, r := range results {
		sel := ""
		if picked[r.Image] {
			sel = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.Image, r.Score, sel, strings.Join(r.Matched, ","), r.Error)
	}
	_ = w.Flush()
}

func init() {
	scoreCmd.Flags().IntVar(&scoreMinMatches, "min-matches", 0, "minimum category matches to select an image (default from config)")
	scoreCmd.Flags().IntVar(&scoreMaxImages, "max-images", 0, "maximum images to select (default from config)")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(scoreCmd)
}
