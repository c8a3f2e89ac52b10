// Package timeutil holds the three time representations ERMA threads through
// its pipeline and the conversions between them:
//
//   - S-time: seconds since the start of the current file.
//   - E-time: seconds since the Unix epoch (1970-01-01T00:00:00Z).
//   - D-time: days since the Unix epoch, used for all cross-file
//     aggregation because millisecond resolution must survive multi-day
//     spans without the precision loss a plain float64 of seconds would
//     accumulate over weeks of recordings.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

const secondsPerDay = 86400.0

// EToD converts an E-time (seconds since epoch) to a D-time (days since epoch).
func EToD(e float64) float64 { return e / secondsPerDay }

// DToE converts a D-time (days since epoch) to an E-time (seconds since epoch).
func DToE(d float64) float64 { return d * secondsPerDay }

// SToE converts an S-time within a file to an E-time, given the file's start E-time.
func SToE(s float64, fileStartE float64) float64 { return fileStartE + float64(s) }

// filenamePattern matches a WISPR-style embedded timestamp:
// YYMMDD then one of "-_Tt" then hhmmss, optionally followed by .fractional
// seconds. This mirrors getTimeFromName in the original C source, which
// tries several middle separators in turn.
var filenamePattern = regexp.MustCompile(
	`(\d{2})(\d{2})(\d{2})[-_Tt](\d{2})(\d{2})(\d{2})(?:\.(\d+))?`)

// StartTimeFromFilename scans name for an embedded YYMMDD-hhmmss[.fff] UTC
// timestamp and returns it as an E-time. If no match is found, it returns
// the sentinel -1 and ok=false: the file is still processed (per §4.1) but
// downstream encounter-time outputs become nominally invalid.
func StartTimeFromFilename(name string) (e float64, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return -1, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	min, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 60 {
		return -1, false
	}

	t := time.Date(2000+year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	frac := 0.0
	if m[7] != "" {
		msec, _ := strconv.ParseFloat("0."+m[7], 64)
		frac = msec
	}
	return float64(t.Unix()) + frac, true
}

// ermaTimestampLayout is the strftime pattern used throughout ERMA's report
// filenames and log lines for human-readable UTC timestamps, e.g.
// "260730-143000". Grounded in original_source/ErmaMain.c's file-timestamp
// convention and original_source/encounters.c's $analyzed/$enc line format.
const ermaTimestampLayout = "%y%m%d-%H%M%S"

var ermaStrftime = strftime.MustNew(ermaTimestampLayout)

// FormatE renders an E-time as a UTC "YYMMDD-hhmmss" string.
func FormatE(e float64) string {
	t := time.Unix(int64(e), 0).UTC()
	var sb strings.Builder
	if err := ermaStrftime.Format(&sb, t); err != nil {
		// strftime only fails on a malformed layout, which is a compile-time
		// invariant of ermaTimestampLayout above, not a runtime condition.
		return fmt.Sprintf("%02d%02d%02d-%02d%02d%02d",
			t.Year()%100, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return sb.String()
}
