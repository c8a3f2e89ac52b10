// Package audio implements ERMA's sample source (C1): opening a WAVE or
// WISPR sound file, validating and parsing its header, and yielding the
// sample stream as float32. Grounded in original_source/wavFile.c and
// original_source/wisprFile.c.
//
// Both formats are little-endian on disk; 24-bit WISPR samples are
// sign-extended to 32 bits before conversion to float. The original C
// source branches on host byte order at runtime to decide whether to swap;
// encoding/binary.LittleEndian makes that branch unnecessary here; decoding
// is always little-endian regardless of the host architecture.
package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cimerspi/erma/internal/timeutil"
)

// Sentinel skip reasons. None of these are fatal (§7): the driver logs and
// moves on to the next file.
var (
	ErrOpenFailed         = errors.New("audio: could not open file")
	ErrBadHeader          = errors.New("audio: malformed or unrecognised header")
	ErrUnsupportedSamples = errors.New("audio: unsupported sample width")
	ErrHeaderInvariant    = errors.New("audio: header fails validation invariants")
)

const (
	wisprHeaderSize = 512
	wisprBlockSize  = 512
	// minValidStartE is 2000-01-01T00:00:00Z, the minimum accepted UTC
	// start time per §3's SampleHeader invariant.
	minValidStartE = 946684800.0
)

// Header is ERMA's SampleHeader: per-file sampling rate, sample count,
// sample width, and UTC start time, plus enough bookkeeping to read the
// sample region with ReadAll.
type Header struct {
	Path        string
	Rate        float64
	NumSamples  int
	SampleWidth int // bytes per sample: 2 or 3
	StartE      float64
	IsWave      bool

	dataOffset int64
}

// Open opens path, parses its header, and validates it against §3's
// invariants (rate ≥ 50 Hz, samples > 1000, start ≥ 2000-01-01). A
// recognised-but-invalid or unreadable file returns a wrapped sentinel
// error; the caller should skip the file and continue, not abort the run.
func Open(path string) (*Header, error) {
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		return openWave(path)
	}
	return openWispr(path)
}

func validate(h *Header) error {
	if h.Rate < 50 {
		return fmt.Errorf("%w: rate %v Hz < 50", ErrHeaderInvariant, h.Rate)
	}
	if h.NumSamples <= 1000 {
		return fmt.Errorf("%w: only %d samples", ErrHeaderInvariant, h.NumSamples)
	}
	if h.SampleWidth != 2 && h.SampleWidth != 3 {
		return fmt.Errorf("%w: sample width %d bytes", ErrUnsupportedSamples, h.SampleWidth)
	}
	if h.StartE >= 0 && h.StartE < minValidStartE {
		return fmt.Errorf("%w: start time %v predates 2000-01-01", ErrHeaderInvariant, h.StartE)
	}
	return nil
}

// openWave parses a RIFF/WAVE header: PCM format tag, 16- or 24-bit signed
// samples, single or multi channel (only channel 0's worth of width
// matters here since ERMA treats the stream as mono). The UTC start time
// has no header field in WAVE and is instead scraped from the filename.
func openWave(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	defer f.Close()

	var riffHdr [12]byte
	if _, err := io.ReadFull(f, riffHdr[:]); err != nil {
		return nil, fmt.Errorf("%w: short RIFF header", ErrBadHeader)
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrBadHeader)
	}

	fmtChunk, _, err := findChunk(f, "fmt", 12)
	if err != nil {
		return nil, fmt.Errorf("%w: no fmt chunk: %v", ErrBadHeader, err)
	}
	var sampleFmt, nChans, bitsPerSample uint16
	var sampleRate uint32
	r := bufio.NewReader(io.LimitReader(f, int64(fmtChunk)))
	if err := binary.Read(r, binary.LittleEndian, &sampleFmt); err != nil {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrBadHeader)
	}
	if err := binary.Read(r, binary.LittleEndian, &nChans); err != nil {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrBadHeader)
	}
	if err := binary.Read(r, binary.LittleEndian, &sampleRate); err != nil {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrBadHeader)
	}
	var skip [6]byte // byteRate(4) + blockAlign(2)
	if _, err := io.ReadFull(r, skip[:]); err != nil {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrBadHeader)
	}
	if err := binary.Read(r, binary.LittleEndian, &bitsPerSample); err != nil {
		return nil, fmt.Errorf("%w: short fmt chunk", ErrBadHeader)
	}
	const waveFormatPCM = 1
	if sampleFmt != waveFormatPCM {
		return nil, fmt.Errorf("%w: not PCM format", ErrBadHeader)
	}
	if bitsPerSample != 16 && bitsPerSample != 24 {
		return nil, fmt.Errorf("%w: %d-bit samples unsupported", ErrUnsupportedSamples, bitsPerSample)
	}

	dataChunkSize, dataOffset, err := findChunk(f, "data", 12+8+int64(fmtChunk))
	if err != nil {
		return nil, fmt.Errorf("%w: no data chunk: %v", ErrBadHeader, err)
	}

	sampleWidth := int(bitsPerSample / 8)
	numSamples := int(dataChunkSize) / sampleWidth

	startE := -1.0
	if t, ok := timeutil.StartTimeFromFilename(path); ok {
		startE = t
	}

	h := &Header{
		Path:        path,
		Rate:        float64(sampleRate),
		NumSamples:  numSamples,
		SampleWidth: sampleWidth,
		StartE:      startE,
		IsWave:      true,
		dataOffset:  dataOffset,
	}
	if err := validate(h); err != nil {
		return nil, err
	}
	return h, nil
}

// findChunk walks RIFF chunks from startOffset looking for a chunk whose
// 4-byte ID matches name (case-insensitive, allowing a 3-letter name
// followed by a space or NUL, as the original's strncasecmp-with-length
// check does). Returns the chunk's declared size and the file offset of
// its first data byte.
func findChunk(f *os.File, name string, startOffset int64) (size uint32, dataOffset int64, err error) {
	if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
		return 0, 0, err
	}
	var idBuf [4]byte
	for {
		if _, err := io.ReadFull(f, idBuf[:]); err != nil {
			return 0, 0, fmt.Errorf("chunk %q not found", name)
		}
		var chunkSize uint32
		if err := binary.Read(f, binary.LittleEndian, &chunkSize); err != nil {
			return 0, 0, fmt.Errorf("chunk %q not found", name)
		}
		pos, _ := f.Seek(0, io.SeekCurrent)
		if chunkNameMatches(idBuf[:], name) {
			return chunkSize, pos, nil
		}
		if _, err := f.Seek(pos+int64(chunkSize), io.SeekStart); err != nil {
			return 0, 0, err
		}
	}
}

func chunkNameMatches(id []byte, name string) bool {
	idStr := strings.ToLower(string(id))
	name = strings.ToLower(name)
	if len(name) == 4 {
		return idStr == name
	}
	return strings.HasPrefix(idStr, name) && (id[len(name)] == ' ' || id[len(name)] == 0)
}

// openWispr parses a 512-byte ASCII header of "key = value;" lines
// terminated by a NUL byte, followed by packed little-endian samples.
func openWispr(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	defer f.Close()

	headerBuf := make([]byte, wisprHeaderSize)
	n, err := io.ReadFull(f, headerBuf)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	headerBuf = headerBuf[:n]
	if nul := indexByte(headerBuf, 0); nul >= 0 {
		headerBuf = headerBuf[:nul]
	}

	sampleWidth := 2 // default, per wisprReadHeader
	rate := 0.0
	startE := 0.0
	fileSizeBlocks := int64(-1)

	for _, line := range strings.Split(string(headerBuf), "\n") {
		line = strings.TrimRight(line, "\r \t;")
		if line == "" {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		switch key {
		case "sampling_rate":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				rate = v
			}
		case "sample_size":
			if v, err := strconv.Atoi(value); err == nil {
				sampleWidth = v
			}
		case "time":
			if t, ok := parseWisprTime(value); ok {
				startE = t
			}
		case "file_size":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				fileSizeBlocks = v
			}
		}
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	bytesFromLen := fi.Size() - wisprHeaderSize
	if bytesFromLen < 0 {
		bytesFromLen = 0
	}
	nBytes := bytesFromLen
	if fileSizeBlocks > 0 {
		bytesFromHeader := fileSizeBlocks * wisprBlockSize
		if bytesFromHeader < nBytes {
			nBytes = bytesFromHeader
		}
	}
	numSamples := 0
	if sampleWidth > 0 {
		numSamples = int(nBytes) / sampleWidth
	}

	h := &Header{
		Path:        path,
		Rate:        rate,
		NumSamples:  numSamples,
		SampleWidth: sampleWidth,
		StartE:      startE,
		IsWave:      false,
		dataOffset:  wisprHeaderSize,
	}
	if err := validate(h); err != nil {
		return nil, err
	}
	return h, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseWisprTime parses the WISPR "time" field, format 'MM:DD:YY:hh:mm:ss
// (a leading literal apostrophe, 2-digit year based at 2000), as UTC.
func parseWisprTime(value string) (float64, bool) {
	value = strings.TrimPrefix(value, "'")
	fields := strings.Split(value, ":")
	if len(fields) != 6 {
		return 0, false
	}
	nums := make([]int, 6)
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return 0, false
		}
		nums[i] = v
	}
	month, day, year, hour, minute, sec := nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]
	t := time.Date(2000+year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	return float64(t.Unix()), true
}

// ReadAll reads the full declared sample region of h and returns it as
// float32 samples. A short read (fewer bytes on disk than declared)
// truncates to what was actually read rather than failing (§4.1).
func ReadAll(h *Header) ([]float32, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	defer f.Close()

	if _, err := f.Seek(h.dataOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("audio: seek to sample data: %w", err)
	}

	raw := make([]byte, h.NumSamples*h.SampleWidth)
	n, _ := io.ReadFull(f, raw)
	raw = raw[:n]
	nSamples := n / h.SampleWidth

	out := make([]float32, nSamples)
	switch h.SampleWidth {
	case 2:
		for i := 0; i < nSamples; i++ {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			out[i] = float32(v)
		}
	case 3:
		for i := 0; i < nSamples; i++ {
			b0, b1, b2 := raw[i*3], raw[i*3+1], raw[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if b2&0x80 != 0 {
				v |= ^int32(0xffffff) // sign-extend bit 23 up through bit 31
			}
			out[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrUnsupportedSamples, h.SampleWidth)
	}
	return out, nil
}
