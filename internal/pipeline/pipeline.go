// Package pipeline implements the ERMA driver (C9): discover unprocessed
// sound files, run each through the quiet-time finder and ERMA detector,
// checkpoint per-file detections incrementally, and aggregate the whole
// run's clicks into encounters at the end. Grounded in
// original_source/ErmaMain.c and original_source/processFile.c.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cimerspi/erma/internal/config"
	"github.com/cimerspi/erma/internal/detector"
	"github.com/cimerspi/erma/internal/encounter"
	"github.com/cimerspi/erma/internal/gpio"
	"github.com/cimerspi/erma/internal/quiettime"
	"github.com/cimerspi/erma/internal/report"
	"github.com/cimerspi/erma/internal/timeutil"
	"github.com/cimerspi/erma/internal/watchdog"

	"github.com/cimerspi/erma/internal/audio"
)

// wisprPrefix is stripped from a file's base name before it is used to
// stamp an output file's timestamp, matching original_source/ErmaMain.c.
const wisprPrefix = "WISPR_"

// FileResult is one processed file's contribution to a run, for the CLI's
// per-file report table.
type FileResult struct {
	Name       string
	Rate       float64
	DurationS  float64
	QuietSpans int
	Clicks     int
}

// Summary reports what a run accomplished, for the CLI to print and for
// tests to assert on.
type Summary struct {
	FilesProcessed int
	FilesSkipped   int
	TotalClicks    int
	Encounters     int
	FastQuit       bool
	Files          []FileResult
}

// Pipeline drives one run over baseDir. It owns the detector's warm IIR
// state and the quiet-time finder's adaptive-threshold history, both of
// which must carry across files within the run. (The detector's decay
// normaliser is rebuilt for every segment inside Detect.)
type Pipeline struct {
	baseDir string
	p       *config.Params
	log     *log.Logger

	det  *detector.Detector
	hist *quiettime.History
}

// New constructs a Pipeline rooted at baseDir.
func New(baseDir string, p *config.Params, logger *log.Logger) (*Pipeline, error) {
	det, err := detector.New(p)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		baseDir: baseDir,
		p:       p,
		log:     logger,
		det:     det,
		hist:    quiettime.NewHistory(baseDir, p),
	}, nil
}

// Run performs the handshake, processes every unprocessed file it finds,
// and, unless the host requests a fast quit mid-run, aggregates encounters
// and writes the per-run report.
func (pl *Pipeline) Run(ctx context.Context, hs gpio.Handshake, wd watchdog.Watchdog) (Summary, error) {
	wallStart := time.Now()

	if err := hs.SetSelfActive(true); err != nil {
		pl.log.Warn("gpio: could not raise self-active line", "err", err)
	}
	defer func() {
		if err := hs.SetSelfActive(false); err != nil {
			pl.log.Warn("gpio: could not lower self-active line", "err", err)
		}
	}()

	if err := hs.WaitForHost(ctx); err != nil {
		return Summary{}, fmt.Errorf("pipeline: waiting for host: %w", err)
	}

	processedPath := filepath.Join(pl.baseDir, pl.p.FilesProcessed)
	processed, err := loadLines(processedPath)
	if err != nil {
		pl.log.Warn("pipeline: could not read files-processed list, treating as empty", "err", err)
		processed = map[string]bool{}
	}

	files, err := discoverFiles(pl.baseDir, pl.p.InfilePattern)
	if err != nil {
		return Summary{}, fmt.Errorf("pipeline: discovering input files: %w", err)
	}
	var pending []string
	for _, f := range files {
		if !processed[filepath.Base(f)] {
			pending = append(pending, f)
		}
	}
	if len(pending) == 0 {
		return Summary{}, nil
	}

	firstFileTimeE, _ := timeutil.StartTimeFromFilename(strippedBase(pending[0]))
	allDetsPath := report.AllDetsOutputPath(pl.p, pl.baseDir, firstFileTimeE)
	encPath := report.EncounterOutputPath(pl.p, pl.baseDir, firstFileTimeE)

	var sum Summary
	var allClicksD []float64
	runStartE := float64(-1)
	runEndE := float64(-1)

	for _, path := range pending {
		active, err := hs.HostActive()
		if err != nil {
			pl.log.Warn("gpio: could not read host-active line, continuing as active", "err", err)
			active = true
		}
		if !active || wd.ShouldStop() {
			sum.FastQuit = true
			break
		}

		if err := appendLine(processedPath, filepath.Base(path)); err != nil {
			pl.log.Warn("pipeline: could not update files-processed list", "file", path, "err", err)
		}

		clicksD, fr, err := pl.processFile(path, allDetsPath)
		if err != nil {
			pl.log.Warn("pipeline: skipping file", "file", path, "err", err)
			sum.FilesSkipped++
			continue
		}
		allClicksD = append(allClicksD, clicksD...)
		sum.FilesProcessed++
		sum.TotalClicks += fr.Clicks
		sum.Files = append(sum.Files, fr)

		if fileE, ok := timeutil.StartTimeFromFilename(strippedBase(path)); ok {
			if runStartE < 0 || fileE < runStartE {
				runStartE = fileE
			}
			if fileE > runEndE {
				runEndE = fileE
			}
		}
		pl.log.Info("processed file", "file", filepath.Base(path), "clicks", fr.Clicks)
	}

	if sum.FastQuit {
		pl.log.Info("fast-quit requested, skipping encounter aggregation for this run")
		return sum, nil
	}
	if len(allClicksD) == 0 {
		return sum, nil
	}

	encounter.SortTimes(allClicksD)
	spans := encounter.Find(allClicksD, pl.p)
	sum.Encounters = len(spans)
	if len(spans) == 0 {
		return sum, nil
	}

	reports := report.SelectClicks(spans, allClicksD, pl.p.ClicksToSave)
	wallSeconds := time.Since(wallStart).Seconds()
	if err := report.WriteEncounterFile(encPath, runStartE, runEndE, reports, wallSeconds); err != nil {
		return sum, fmt.Errorf("pipeline: writing encounter report: %w", err)
	}
	uploadListPath := filepath.Join(pl.baseDir, pl.p.EncFileList)
	if err := report.AppendUploadList(uploadListPath, encPath); err != nil {
		pl.log.Warn("pipeline: could not update upload list", "err", err)
	}
	pl.log.Info("run complete", "files", sum.FilesProcessed, "clicks", sum.TotalClicks, "encounters", sum.Encounters)
	return sum, nil
}

// processFile runs one file through C1 (open/read), C4 (quiet-time), and
// C6 (detector), appending its detections to allDetsPath and returning its
// click times in D-time plus a FileResult summarising the file for the
// run report.
func (pl *Pipeline) processFile(path, allDetsPath string) ([]float64, FileResult, error) {
	fr := FileResult{Name: filepath.Base(path)}

	hdr, err := audio.Open(path)
	if err != nil {
		return nil, fr, err
	}
	samples, err := audio.ReadAll(hdr)
	if err != nil {
		return nil, fr, err
	}
	snd := make([]float64, len(samples))
	for i, v := range samples {
		snd[i] = float64(v)
	}
	fr.Rate = hdr.Rate
	fr.DurationS = float64(len(snd)) / hdr.Rate

	spans, err := quiettime.Find(snd, hdr.Rate, pl.p, pl.hist)
	if err != nil {
		return nil, fr, err
	}
	fr.QuietSpans = len(spans)

	var clickTimesS []float64
	for _, span := range spans {
		seg := snd[span.Sam0:span.Sam1]
		clicks, err := pl.det.Detect(seg, span.T0, hdr.Rate)
		if err != nil {
			return nil, fr, err
		}
		for _, c := range clicks {
			clickTimesS = append(clickTimesS, c.TimeS)
		}
	}
	fr.Clicks = len(clickTimesS)

	fileTimeE := hdr.StartE
	if err := report.AppendFileDetections(allDetsPath, path, fileTimeE, clickTimesS); err != nil {
		pl.log.Warn("pipeline: could not append to all-detections log", "file", path, "err", err)
	}

	clicksD := make([]float64, len(clickTimesS))
	for i, s := range clickTimesS {
		clicksD[i] = timeutil.EToD(timeutil.SToE(s, fileTimeE))
	}
	return clicksD, fr, nil
}

// discoverFiles expands infilePattern (a directory-component-with-wildcards
// followed by a filename-component-with-wildcards) in two stages, rooted at
// baseDir, instead of a single combined glob — this bounds the expansion at
// each stage the way original_source/ErmaMain.c's getNewFiles does. Results
// are sorted so files are processed in (lexical, and for WISPR-style names
// therefore chronological) order.
func discoverFiles(baseDir, infilePattern string) ([]string, error) {
	dirPattern, filePattern := filepath.Split(infilePattern)
	dirPattern = strings.TrimSuffix(dirPattern, string(filepath.Separator))

	var dirs []string
	if dirPattern == "" {
		dirs = []string{baseDir}
	} else {
		matches, err := filepath.Glob(filepath.Join(baseDir, dirPattern))
		if err != nil {
			return nil, err
		}
		dirs = matches
	}

	var files []string
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, filePattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func strippedBase(path string) string {
	return strings.TrimPrefix(filepath.Base(path), wisprPrefix)
}

func loadLines(path string) (map[string]bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	set := map[string]bool{}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = true
		}
	}
	return set, nil
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, line)
	return err
}
