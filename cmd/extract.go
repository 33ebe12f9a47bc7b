package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/label-audit/internal/compliance"
	"github.com/sells-group/label-audit/internal/extract"
	"github.com/sells-group/label-audit/internal/model"
)

var (
	extractText   string
	extractFormat string
)

var extractCmd = &cobra.Command{
	Use:   "extract [image]...",
	Short: "Extract label fields from images or from text",
	Long:  "Runs the field extraction engine on its own: OCR over the given images and their variants, or field resolution over --text.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractText == "" && len(args) == 0 {
			return eris.New("extract: provide images or --text")
		}
		if extractText != "" {
			return writeOutput(os.Stdout, extractFormat, extractFromText(extractText))
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.Extract(ctx, model.ImageRefs(args))
		if err != nil {
			return eris.Wrap(err, "extract")
		}
		return writeOutput(os.Stdout, extractFormat, res)
	},
}

// extractFromText resolves fields from text without any OCR engine.
func extractFromText(text string) *extract.Result {
	r := extract.Resolver{Window: cfg.Extract.LicenseWindow, Context: cfg.Extract.LicenseContext}.Resolve(text)
	return &extract.Result{
		RawText:           text,
		Normalized:        r.Normalized,
		Fields:            r.Fields,
		Verdict:           compliance.Score(r.Fields, model.DefaultSchema()),
		LicenseCandidates: r.LicenseCandidates,
	}
}

func init() {
	extractCmd.Flags().StringVar(&extractText, "text", "", "resolve fields from this text instead of images")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(extractCmd)
}
