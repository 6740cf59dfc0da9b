package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/realtime-news-scraper/internal/pipeline"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>...",
		Short: "Fetch the given URLs and print their text and title as JSON records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			engine, err := buildEngine(e.cfg, nil, e.logger, false, true)
			if err != nil {
				return err
			}
			results, err := engine.ScrapeAndExtract(cmd.Context(), args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), pipeline.RecordsFromMap(results))
		},
	}
}
