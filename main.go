// The main package for the news scraper executable.
package main

import (
	"github.com/JakeFAU/realtime-news-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
