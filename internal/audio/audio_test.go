package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// writeTestWave builds a minimal 16-bit PCM mono WAV file with nSamples
// samples at the given rate, named so StartTimeFromFilename can parse it.
func writeTestWave(t *testing.T, dir, name string, rate uint32, samples []int16) string {
	t.Helper()
	path := filepath.Join(dir, name)

	dataSize := uint32(len(samples) * 2)
	fmtSize := uint32(16)
	riffSize := 4 + (8 + fmtSize) + (8 + dataSize)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	write := func(v any) {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	f.WriteString("RIFF")
	write(riffSize)
	f.WriteString("WAVE")

	f.WriteString("fmt ")
	write(fmtSize)
	write(uint16(1))     // PCM
	write(uint16(1))     // mono
	write(rate)          // sample rate
	write(rate * 2)      // byte rate
	write(uint16(2))     // block align
	write(uint16(16))    // bits per sample

	f.WriteString("data")
	write(dataSize)
	for _, s := range samples {
		write(s)
	}
	return path
}

func writeTestWispr(t *testing.T, dir, name string, rate float64, sampleSize int, samples []int16) string {
	t.Helper()
	path := filepath.Join(dir, name)

	header := make([]byte, wisprHeaderSize)
	hdrText := "% WISPR 1.0\n" +
		"sampling_rate = " + strconv.FormatFloat(rate, 'f', -1, 64) + ";\n" +
		"sample_size = " + strconv.Itoa(sampleSize) + ";\n" +
		"time = '02:20:23:17:03:45;\n"
	copy(header, hdrText)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.Write(header); err != nil {
		t.Fatal(err)
	}
	for _, s := range samples {
		if err := binary.Write(f, binary.LittleEndian, s); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func makeSamples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i % 1000)
	}
	return out
}

func TestOpenWave(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWave(t, dir, "WISPR_230220-170345.wav", 50000, makeSamples(2000))

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.Rate != 50000 {
		t.Errorf("Rate = %v, want 50000", h.Rate)
	}
	if h.NumSamples != 2000 {
		t.Errorf("NumSamples = %v, want 2000", h.NumSamples)
	}
	if h.SampleWidth != 2 {
		t.Errorf("SampleWidth = %v, want 2", h.SampleWidth)
	}
	if h.StartE <= 0 {
		t.Errorf("StartE should be parsed from filename, got %v", h.StartE)
	}

	samples, err := ReadAll(h)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(samples) != 2000 {
		t.Errorf("len(samples) = %v, want 2000", len(samples))
	}
	if samples[1] != 1 {
		t.Errorf("samples[1] = %v, want 1", samples[1])
	}
}

func TestOpenWaveNoFilenameTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWave(t, dir, "plain.wav", 48000, makeSamples(1500))

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.StartE != -1 {
		t.Errorf("StartE = %v, want -1 sentinel", h.StartE)
	}
}

func TestOpenWaveRejectsShortRecording(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWave(t, dir, "short.wav", 48000, makeSamples(100))

	if _, err := Open(path); err == nil {
		t.Error("expected validation error for a file with too few samples")
	}
}

func TestOpenWispr(t *testing.T) {
	dir := t.TempDir()
	path := writeTestWispr(t, dir, "230220170345.dat", 50000, 2, makeSamples(5000))

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.Rate != 50000 {
		t.Errorf("Rate = %v, want 50000", h.Rate)
	}
	if h.SampleWidth != 2 {
		t.Errorf("SampleWidth = %v, want 2", h.SampleWidth)
	}
	if h.NumSamples != 5000 {
		t.Errorf("NumSamples = %v, want 5000", h.NumSamples)
	}
	if h.StartE < minValidStartE {
		t.Errorf("StartE = %v, should be >= 2000-01-01", h.StartE)
	}

	samples, err := ReadAll(h)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(samples) != 5000 {
		t.Errorf("len(samples) = %v, want 5000", len(samples))
	}
}

func TestOpenWisprRejectsMissingTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notime.dat")

	// No "time" key: startE defaults to 0, which fails the post-2000 floor.
	header := make([]byte, wisprHeaderSize)
	hdrText := "sampling_rate = 50000;\nsample_size = 2;\n"
	copy(header, hdrText)
	if err := os.WriteFile(path, append(header, make([]byte, 4000)...), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected validation error for missing start time")
	}
}

func TestOpen24BitWisprSignExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "24bit.dat")

	header := make([]byte, wisprHeaderSize)
	hdrText := "sampling_rate = 50000;\nsample_size = 3;\ntime = '02:20:23:17:03:45;\n"
	copy(header, hdrText)

	// One negative sample (-1, i.e. 0xFFFFFF) and one positive sample (1).
	samples := []byte{0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x00}
	// Pad past the 1000-sample validity floor.
	padding := make([]byte, 1200*3)
	full := append(header, samples...)
	full = append(full, padding...)

	if err := os.WriteFile(path, full, 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.SampleWidth != 3 {
		t.Fatalf("SampleWidth = %v, want 3", h.SampleWidth)
	}

	got, err := ReadAll(h)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got[0] != -1 {
		t.Errorf("first 24-bit sample = %v, want -1 (sign-extended)", got[0])
	}
	if got[1] != 1 {
		t.Errorf("second 24-bit sample = %v, want 1", got[1])
	}
}

func TestOpenRejectsBadSampleWidth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weird.dat")

	header := make([]byte, wisprHeaderSize)
	hdrText := "sampling_rate = 50000;\nsample_size = 5;\ntime = '02:20:23:17:03:45;\n"
	copy(header, hdrText)
	if err := os.WriteFile(path, append(header, make([]byte, 6000)...), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected unsupported-sample-width error")
	}
}
