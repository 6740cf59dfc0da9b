package pipeline

import "time"

// SiteSummary reports one site's outcome.
type SiteSummary struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Discovered bool     `json:"discovered"`
	Links      int      `json:"links"`
	Records    int      `json:"records"`
	Failures   int      `json:"failures"`
	BlobURI    string   `json:"blob_uri,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// OK reports whether the site was discovered and persisted without errors.
func (s SiteSummary) OK() bool {
	return s.Discovered && len(s.Errors) == 0
}

// Summary reports a whole run.
type Summary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Sites      []SiteSummary `json:"sites"`
}

// Status is StatusSuccess when every site succeeded, StatusFailed when none
// did, and StatusPartial otherwise.
func (s Summary) Status() string {
	ok := 0
	for _, site := range s.Sites {
		if site.OK() {
			ok++
		}
	}
	switch {
	case len(s.Sites) > 0 && ok == len(s.Sites):
		return StatusSuccess
	case ok == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
