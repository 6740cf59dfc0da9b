package pipeline

import (
	"fmt"

	"github.com/JakeFAU/realtime-news-scraper/internal/config"
	"github.com/JakeFAU/realtime-news-scraper/internal/filter"
)

// SitesFromConfig builds the run's sites, compiling each site's filter rules.
func SitesFromConfig(sites []config.SiteConfig) ([]Site, error) {
	out := make([]Site, 0, len(sites))
	for _, sc := range sites {
		f, err := filter.New(sc.Filter)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", sc.Name, err)
		}
		out = append(out, Site{Name: sc.Name, URL: sc.URL, Filter: f.Apply})
	}
	return out, nil
}
