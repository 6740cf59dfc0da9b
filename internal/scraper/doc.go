// Package scraper implements the acquisition-and-extraction engine used by the
// news scraper.
//
// An Engine runs in two phases per invocation:
//   - Link discovery: every target site is rendered by a LinkRenderer on its own
//     goroutine and the anchor targets it reports are stored in the engine's
//     link map. Failures are logged and leave the site without an entry.
//   - Fetch-and-extract: a batch of URLs is fetched concurrently through a single
//     DocumentFetcher, each request bounded by its own timeout, and every document
//     is reduced to plain text plus a title.
//
// The link map is the only state shared between tasks and is guarded by a single
// mutex. Per-URL failures never abort a batch: callers always get one Result per
// unique URL, with failures tagged by a *FetchError.
package scraper
