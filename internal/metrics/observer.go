package metrics

import (
	"time"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

// Observer reports engine task outcomes to Prometheus. It implements
// scraper.Observer.
type Observer struct{}

var _ scraper.Observer = Observer{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() Observer {
	Init()
	return Observer{}
}

// ObserveDiscovery records one site's link discovery.
func (Observer) ObserveDiscovery(site string, links int, err error) {
	host := SanitizeSite(site)
	discoveryTotal.WithLabelValues(host, statusLabel(err)).Inc()
	if err == nil {
		linksDiscoveredTotal.WithLabelValues(host).Add(float64(links))
	}
}

// ObserveFetch records one document fetch.
func (Observer) ObserveFetch(result scraper.Result, bytes int, elapsed time.Duration) {
	host := SanitizeSite(result.URL)
	outcome := "ok"
	if result.Err != nil {
		outcome = string(result.Err.Kind)
	}
	documentsTotal.WithLabelValues(host, outcome).Inc()
	if bytes > 0 {
		bytesTotal.WithLabelValues(host).Add(float64(bytes))
	}
	fetchDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
