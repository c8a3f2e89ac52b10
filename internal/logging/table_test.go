package logging

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"zero", 0.0, 2, "0.00"},
		{"positive", 3.14159, 2, "3.14"},
		{"negative", -16.5, 1, "-16.5"},
		{"large", 12345.6789, 2, "12345.68"},
		{"small_normal", 0.001, 3, "0.001"},
		{"very_small_scientific", 0.00001, 2, "1.00e-05"},
		{"very_small_negative", -0.00001, 2, "-1.00e-05"},
		{"nan", math.NaN(), 2, MissingValue},
		{"positive_inf", math.Inf(1), 2, MissingValue},
		{"negative_inf", math.Inf(-1), 2, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetric(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetric(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricInt(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  string
	}{
		{"zero", 0, "0"},
		{"positive", 42, "42"},
		{"negative_sentinel", -1, MissingValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMetricInt(tt.value); got != tt.want {
				t.Errorf("formatMetricInt(%d) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestMetricTableString(t *testing.T) {
	t.Run("basic_columns", func(t *testing.T) {
		table := NewMetricTable("Rate", "Clicks")
		table.AddRow("file1.wav", []string{"60000", "12"}, "", "")
		table.AddRow("file2.wav", []string{"48000", "3"}, "", "")

		output := table.String()
		for _, want := range []string{"Rate", "Clicks", "file1.wav", "60000", "12", "file2.wav"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("empty_table", func(t *testing.T) {
		table := NewMetricTable("A", "B")
		if got := table.String(); got != "" {
			t.Errorf("String() on empty table = %q, want empty", got)
		}
	})

	t.Run("with_unit_and_interpretation", func(t *testing.T) {
		table := NewMetricTable("Value")
		table.AddRow("Duration", []string{"60"}, "s", "about a minute")
		output := table.String()
		if !strings.Contains(output, "s") || !strings.Contains(output, "about a minute") {
			t.Errorf("expected unit and interpretation in output, got:\n%s", output)
		}
	})
}

func TestMetricTableAlignment(t *testing.T) {
	table := NewMetricTable("Clicks")
	table.AddRow("short", []string{"1"}, "", "")
	table.AddRow("a much longer label", []string{"100"}, "", "")

	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	if len(lines) != 3 { // header + 2 rows
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	// Values are right-aligned within their column, so every data row's
	// value should end at the same offset.
	endShort := strings.Index(lines[1], "1") + len("1")
	endLong := strings.Index(lines[2], "100") + len("100")
	if endShort != endLong {
		t.Errorf("value columns misaligned: %d vs %d", endShort, endLong)
	}
}

func TestGenerateReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "run.log")

	start := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	data := RunReportData{
		BaseDir:   dir,
		StartTime: start,
		EndTime:   end,
		Files: []FileSummary{
			{Name: "230101-120000.wav", Rate: 60000, DurationS: 60, QuietSpans: 2, Clicks: 5},
		},
		Encounters:  1,
		TotalClicks: 5,
	}
	if err := GenerateReport(path, data); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	for _, want := range []string{"erma run report", "230101-120000.wav", "Total encounters: 1", "Total clicks:     5"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateReportFastQuitNote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")

	data := RunReportData{
		BaseDir:   dir,
		StartTime: time.Now().Add(-time.Second),
		EndTime:   time.Now(),
		FastQuit:  true,
	}
	if err := GenerateReport(path, data); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "fast quit") {
		t.Error("expected fast-quit note in report")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "90.0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
