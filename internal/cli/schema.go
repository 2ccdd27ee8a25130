package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/phishlens/internal/report"
	"github.com/ppiankov/phishlens/internal/score"
)

var schemaJSON bool

// schemaCmd prints the feature schema of the configured structured scorer
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the feature schema the structured scorer expects",
	Long: `Schema prints the ordered feature names the configured structured
scorer was trained on. Extracted features are aligned to this order; names
missing from the extractors are filled with zero.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		scorer, err := score.NewStructuredScorer(cfg.Structured)
		if err != nil {
			return fmt.Errorf("structured scorer: %w", err)
		}
		schema := scorer.Schema()

		out := cmd.OutOrStdout()
		if schemaJSON {
			return report.NewRenderer(false, out).WriteJSON(out, schema)
		}

		fmt.Fprintf(out, "Scorer:  %s\n", scorer.Name())
		fmt.Fprintf(out, "Version: %s\n", schema.Version)
		fmt.Fprintf(out, "Width:   %d\n\n", schema.Len())
		for i, name := range schema.Features {
			fmt.Fprintf(out, "  %2d  %s\n", i, name)
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "print the schema as JSON")
	rootCmd.AddCommand(schemaCmd)
}
