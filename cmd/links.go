package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/realtime-news-scraper/internal/pipeline"
)

func newLinksCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Run link discovery only and print each site's links",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			sites, err := pipeline.SitesFromConfig(e.cfg.Sites)
			if err != nil {
				return err
			}
			engine, err := buildEngine(e.cfg, e.cfg.SiteURLs(), e.logger, true, false)
			if err != nil {
				return err
			}
			if err := engine.FetchAllLinks(cmd.Context()); err != nil {
				return err
			}
			if !raw {
				for _, site := range sites {
					engine.FilterLinks(site.URL, site.Filter)
				}
			}
			return writeJSON(cmd.OutOrStdout(), engine.CollectedLinks())
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print links as discovered, without site filters")
	return cmd
}
