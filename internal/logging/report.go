package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileSummary is one processed file's contribution to a run report.
type FileSummary struct {
	Name       string
	Rate       float64
	DurationS  float64
	QuietSpans int
	Clicks     int
}

// RunReportData holds everything GenerateReport needs to write a run's
// plain-text analysis report.
type RunReportData struct {
	BaseDir     string
	StartTime   time.Time
	EndTime     time.Time
	Files       []FileSummary
	Encounters  int
	TotalClicks int
	FastQuit    bool
}

// GenerateReport writes a plain-text summary of one run to path, in the
// teacher's section-by-section report shape: a header, a processing
// summary, then a per-file metric table and an encounter count.
func GenerateReport(path string, data RunReportData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("logging: create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("logging: create report %s: %w", path, err)
	}
	defer f.Close()

	writeReportHeader(f, data)
	writeProcessingSummary(f, data)
	writeFileTable(f, data.Files)

	writeSection(f, "Encounters")
	fmt.Fprintf(f, "Total encounters: %d\n", data.Encounters)
	fmt.Fprintf(f, "Total clicks:     %d\n", data.TotalClicks)
	if data.FastQuit {
		fmt.Fprintln(f, "\nRun ended early: host handshake requested a fast quit.")
	}
	return nil
}

func writeSection(f io.Writer, title string) {
	fmt.Fprintln(f, title)
	fmt.Fprintln(f, strings.Repeat("-", len(title)))
}

func writeReportHeader(f io.Writer, data RunReportData) {
	fmt.Fprintln(f, "erma run report")
	fmt.Fprintln(f, "===============")
	fmt.Fprintf(f, "Base directory: %s\n", data.BaseDir)
	fmt.Fprintf(f, "Completed: %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(f, "")
}

func writeProcessingSummary(f io.Writer, data RunReportData) {
	writeSection(f, "Processing Summary")
	fmt.Fprintf(f, "Files processed: %d\n", len(data.Files))
	fmt.Fprintf(f, "Total:           %s\n", formatDuration(data.EndTime.Sub(data.StartTime)))
	fmt.Fprintln(f, "")
}

// writeFileTable outputs a one-row-per-file metric table covering each
// file's sample rate, duration, quiet-span count, and click count.
func writeFileTable(f io.Writer, files []FileSummary) {
	writeSection(f, "Files")
	if len(files) == 0 {
		fmt.Fprintln(f, "(none)")
		fmt.Fprintln(f, "")
		return
	}

	table := NewMetricTable("Rate", "Duration", "Quiet spans", "Clicks")
	for _, fl := range files {
		table.AddRow(fl.Name, []string{
			formatMetric(fl.Rate, 0),
			formatMetric(fl.DurationS, 1),
			formatMetricInt(fl.QuietSpans),
			formatMetricInt(fl.Clicks),
		}, "", "")
	}
	fmt.Fprint(f, table.String())
	fmt.Fprintln(f, "")
}

// formatDuration formats a duration nicely: milliseconds for sub-second
// durations, seconds (one decimal) otherwise.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
