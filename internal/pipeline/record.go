package pipeline

import (
	"sort"
	"time"

	"github.com/JakeFAU/realtime-news-scraper/internal/scraper"
)

// Record is the persisted form of one fetched article.
type Record struct {
	Text      string `json:"text"`
	Title     string `json:"title"`
	SourceURL string `json:"sourceUrl"`
	OK        bool   `json:"ok"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Batch is one site's records for a single run.
type Batch struct {
	RunID      string
	Site       string
	FinishedAt time.Time
	Records    []Record
}

// Failures counts the records that carry a failure.
func (b Batch) Failures() int {
	n := 0
	for _, r := range b.Records {
		if !r.OK {
			n++
		}
	}
	return n
}

// NewRecords converts engine results into records sorted by source URL.
func NewRecords(results []scraper.Result) []Record {
	records := make([]Record, 0, len(results))
	for _, res := range results {
		rec := Record{
			Text:      res.Text,
			Title:     res.Title,
			SourceURL: res.URL,
			OK:        res.OK(),
		}
		if res.Err != nil {
			rec.ErrorKind = string(res.Err.Kind)
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SourceURL < records[j].SourceURL
	})
	return records
}

// RecordsFromMap converts the engine's per-URL results into sorted records.
func RecordsFromMap(results map[string]scraper.Result) []Record {
	return NewRecords(resultValues(results))
}
