// Package config loads and represents ERMA's run parameters (ErmaParams in
// the spec). It is grounded in original_source/ermaConfig.c and the default
// literal in original_source/ErmaMain.c: a flat struct of tunables with
// hard-coded defaults, optionally overridden by a config file of
//
//	varname = value
//
// lines. This mirrors the teacher's own config-as-struct-of-tunables
// pattern (internal/processor/filters.go's FilterChainConfig and
// DefaultFilterConfig in the teacher repository) even though the on-disk
// grammar itself is dictated by the spec's external interface, not
// re-invented here.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Params is the flat record of algorithm parameters threaded through every
// ERMA component. Per §3 of the spec it is treated as read-only once
// constructed by Load.
type Params struct {
	// File names and paths.
	FilesProcessed  string
	InfilePattern   string
	OutDir          string
	AllDetsFiles    string
	EncFileList     string
	WisprEncFileDir string
	AllDetsPrefix   string
	EncDetsPrefix   string
	PctFileName     string

	// GPIO pins.
	GPIOWisprActive int
	GPIORPiActive   int

	// Downsampling filter override (C3). Nil/zero means "use the built-in
	// preset selected by input sample rate."
	DsfA, DsfB []float32
	DsfN       int
	Decim      int

	// ERMA band filter overrides (C6). Nil/zero means "use the built-in
	// 50kHz/60kHz preset selected by output sample rate."
	NumerA, NumerB []float32
	NumerN         int
	DenomA, DenomB []float32
	DenomN         int

	// ERMA algorithm (C5, C6).
	DecayTime    float64
	PowerThresh  float64
	RefractoryT  float64
	PeakNbdT     float64
	PeakDurLims  float64
	AvgT         float64
	RatioThresh  float64
	IgnoreThresh float64
	IgnoreLimT   float64
	SpecLenS     float64

	// Reserved: parsed for config-file compatibility but not consumed by
	// the core detector (per §6, "reserved, not used by core").
	MinRate       float64
	ICIRange      [2]float64
	MinIciFraction float64
	AvgTimeS      float64

	// Encounter aggregator (C7).
	BlockLenS      float64
	ClicksPerBlock float64
	ConsecBlocks   float64
	HitsPerEnc     float64
	ClicksToSave   int

	// Quiet-time finder (C4).
	NsTBlockS    float64
	NsTConsecS   float64
	NsPctile     float64
	NsNRecent    int
	NsMedianMult float64
	NsPadSec     float64
	NsMinQuietS  float64
}

// Default returns the built-in parameter set, grounded in the static ep
// initializer in original_source/ErmaMain.c.
func Default() *Params {
	return &Params{
		FilesProcessed:  "files_processed.txt",
		InfilePattern:   "[0-9][0-9][0-9][0-9][0-9][0-9]/*.wav",
		OutDir:          "output",
		AllDetsFiles:    "det_reports_file.txt",
		EncFileList:     "wispr_dtx_list.txt",
		WisprEncFileDir: "",
		AllDetsPrefix:   "all_dets",
		EncDetsPrefix:   "encounter_dets",
		PctFileName:     "saved_percentiles",

		GPIOWisprActive: 6,
		GPIORPiActive:   12,

		Decim: 3,

		DecayTime:    0.25,
		PowerThresh:  100,
		RefractoryT:  0.01,
		PeakNbdT:     0.005,
		PeakDurLims:  0.005,
		AvgT:         0.005,
		RatioThresh:  4,
		IgnoreThresh: 1e7,
		IgnoreLimT:   0.1,

		MinRate:        40,
		ICIRange:       [2]float64{0.3, 1.5},
		MinIciFraction: 0.33,
		AvgTimeS:       0.25,

		BlockLenS:      60,
		ClicksPerBlock: 10,
		ConsecBlocks:   5,
		HitsPerEnc:     3,
		ClicksToSave:   2000,

		NsTBlockS:    0.01,
		NsTConsecS:   0.3,
		NsPctile:     0.10,
		NsNRecent:    12,
		NsMedianMult: 4.0,
		NsPadSec:     0.1,
		NsMinQuietS:  0.1,
	}
}

// rawConfig holds the string-typed varname/value pairs read from a config
// file. It is a map, so file order is not kept and a repeated key keeps its
// last value, whereas original_source/ermaConfig.c's linear ermaFindVar scan
// returns the first match; the two agree for config files that don't repeat
// a key.
type rawConfig map[string]string

// Load reads dir/filename if present and returns Params with any recognised
// keys overridden. A missing file is not an error: the defaults are
// returned unchanged, matching ermaReadConfigFile's "okay for it to be
// missing" contract.
func Load(dir, filename string) (*Params, error) {
	p := Default()

	raw, err := readConfigFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return p, nil
	}
	applyRaw(raw, p)
	return p, nil
}

// readConfigFile parses "varname = value" lines. Trailing CR/LF and
// whitespace are stripped; lines starting with '%' are comments; malformed
// lines are skipped. Returns nil, nil if the file does not exist.
func readConfigFile(path string) (rawConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	raw := make(rawConfig)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n \t")
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		varname, value, ok := splitAssignment(line)
		if !ok {
			continue
		}
		raw[varname] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return raw, nil
}

// splitAssignment parses "varname = value", trimming semicolons and
// surrounding whitespace from both sides.
func splitAssignment(line string) (varname, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	varname = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	value = strings.TrimSuffix(value, ";")
	value = strings.TrimSpace(value)
	if varname == "" || value == "" {
		return "", "", false
	}
	return varname, value, true
}

// applyRaw overlays raw's string values onto p, converting types as needed.
// Unknown keys are silently ignored (per §7). Filter-length keys (*N) are
// consulted before their corresponding coefficient arrays, since
// allocFilterCoeffs in the original depends on that ordering; in Go there
// is no allocation step to sequence, but N is still read first so that it
// caps how many values are taken from its array. An array shorter than N,
// or one given without N, is used as parsed; no length check is made.
func applyRaw(raw rawConfig, p *Params) {
	getString(raw, "infilePattern", &p.InfilePattern)
	getString(raw, "filesProcessed", &p.FilesProcessed)
	getString(raw, "outDir", &p.OutDir)
	getString(raw, "allDetsFiles", &p.AllDetsFiles)
	getString(raw, "encFileList", &p.EncFileList)
	getString(raw, "wisprEncFileDir", &p.WisprEncFileDir)
	getString(raw, "allDetsPrefix", &p.AllDetsPrefix)
	getString(raw, "encDetsPrefix", &p.EncDetsPrefix)
	getString(raw, "pctFileName", &p.PctFileName)

	getInt(raw, "gpioWisprActive", &p.GPIOWisprActive)
	getInt(raw, "gpioRPiActive", &p.GPIORPiActive)

	getInt(raw, "dsfN", &p.DsfN)
	getInt(raw, "numerN", &p.NumerN)
	getInt(raw, "denomN", &p.DenomN)
	getFloatArray(raw, "dsfA", &p.DsfA, p.DsfN)
	getFloatArray(raw, "dsfB", &p.DsfB, p.DsfN)
	getFloatArray(raw, "numerA", &p.NumerA, p.NumerN)
	getFloatArray(raw, "numerB", &p.NumerB, p.NumerN)
	getFloatArray(raw, "denomA", &p.DenomA, p.DenomN)
	getFloatArray(raw, "denomB", &p.DenomB, p.DenomN)
	getInt(raw, "decim", &p.Decim)

	getFloat(raw, "decayTime", &p.DecayTime)
	getFloat(raw, "powerThresh", &p.PowerThresh)
	getFloat(raw, "refractoryT", &p.RefractoryT)
	getFloat(raw, "peakNbdT", &p.PeakNbdT)
	getFloat(raw, "peakDurLims", &p.PeakDurLims)
	getFloat(raw, "avgT", &p.AvgT)
	getFloat(raw, "ratioThresh", &p.RatioThresh)
	getFloat(raw, "ignoreThresh", &p.IgnoreThresh)
	getFloat(raw, "ignoreLimT", &p.IgnoreLimT)
	getFloat(raw, "specLenS", &p.SpecLenS)

	getFloat(raw, "minRate", &p.MinRate)
	getFloat(raw, "minIciFraction", &p.MinIciFraction)
	getFloat(raw, "avgTimeS", &p.AvgTimeS)
	if arr, ok := parseFloatArray(raw["iciRange"], 2); ok {
		p.ICIRange[0], p.ICIRange[1] = float64(arr[0]), float64(arr[1])
	}

	getFloat(raw, "blockLenS", &p.BlockLenS)
	getFloat(raw, "clicksPerBlock", &p.ClicksPerBlock)
	getFloat(raw, "consecBlocks", &p.ConsecBlocks)
	getFloat(raw, "hitsPerEnc", &p.HitsPerEnc)
	getInt(raw, "clicksToSave", &p.ClicksToSave)

	getFloat(raw, "ns_tBlockS", &p.NsTBlockS)
	getFloat(raw, "ns_tConsecS", &p.NsTConsecS)
	getFloat(raw, "ns_pctile", &p.NsPctile)
	getInt(raw, "ns_nRecent", &p.NsNRecent)
	getFloat(raw, "ns_medianMult", &p.NsMedianMult)
	getFloat(raw, "ns_padSec", &p.NsPadSec)
	getFloat(raw, "ns_minQuietS", &p.NsMinQuietS)
}

func getString(raw rawConfig, key string, dst *string) {
	if v, ok := raw[key]; ok {
		*dst = v
	}
}

func getInt(raw rawConfig, key string, dst *int) {
	v, ok := raw[key]
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil {
		*dst = n
	}
}

func getFloat(raw rawConfig, key string, dst *float64) {
	v, ok := raw[key]
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err == nil {
		*dst = f
	}
}

// getFloatArray parses a comma-separated list of up to n floats into dst.
// If n <= 0 (no length declared for this filter), the full list found is used.
func getFloatArray(raw rawConfig, key string, dst *[]float32, n int) {
	v, ok := raw[key]
	if !ok {
		return
	}
	limit := n
	if limit <= 0 {
		limit = -1
	}
	arr, ok := parseFloatArray(v, limit)
	if ok {
		*dst = arr
	}
}

// parseFloatArray splits value on commas and parses each field as a
// float32, stopping after limit fields (or all fields, if limit < 0).
func parseFloatArray(value string, limit int) ([]float32, bool) {
	if value == "" {
		return nil, false
	}
	fields := strings.Split(value, ",")
	if limit >= 0 && len(fields) > limit {
		fields = fields[:limit]
	}
	out := make([]float32, 0, len(fields))
	for _, f := range fields {
		fv, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, false
		}
		out = append(out, float32(fv))
	}
	return out, true
}
