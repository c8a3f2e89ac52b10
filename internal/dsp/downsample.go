package dsp

// Downsample lowpass-filters x for anti-aliasing and decimates it by decim,
// if inRate suggests the signal is a ~180 kHz recording destined for 60 kHz.
// Signals already near 50/60 kHz are passed through unchanged. Mirrors
// ermaDownsample in the original source, including its >100 kHz heuristic
// for deciding whether decimation is needed at all.
func Downsample(filt *Filter, x []float64, decim int, inRate float64) (y []float64, outRate float64) {
	if inRate > 100000 {
		filtered := filt.Process(x)
		y = make([]float64, 0, len(filtered)/decim+1)
		for i := 0; i < len(filtered); i += decim {
			y = append(y, filtered[i])
		}
		return y, inRate / float64(decim)
	}
	y = append([]float64(nil), x...)
	return y, inRate
}

// BandSelector picks the numerator/denominator band filters to use for the
// ERMA ratio calculation (C6), based on the first output sample rate it
// sees, then sticks with that choice for the rest of the run — mirroring
// the original's one-shot "if numerFilter.B == NULL" selection, which
// exists because the rate is only known once downsampling has happened for
// the first file, but the filters (and their warm state) must persist
// across every subsequent file in the run.
type BandSelector struct {
	numer, denom *Filter
	picked       bool
}

// Select chooses the 50 kHz or 60 kHz preset pair for outRate < 55 kHz or
// >= 55 kHz respectively, unless overrideNumer/overrideDenom are non-nil (a
// config file specified explicit coefficients), in which case those are
// used instead. Subsequent calls are no-ops once a choice has been made.
func (s *BandSelector) Select(outRate float64, overrideNumer, overrideDenom *Filter) error {
	if s.picked {
		return nil
	}
	if overrideNumer != nil {
		s.numer = overrideNumer
	} else {
		var err error
		if outRate < 55000 {
			s.numer, err = NewNumerFilter50kHz()
		} else {
			s.numer, err = NewNumerFilter60kHz()
		}
		if err != nil {
			return err
		}
	}
	if overrideDenom != nil {
		s.denom = overrideDenom
	} else {
		var err error
		if outRate < 55000 {
			s.denom, err = NewDenomFilter50kHz()
		} else {
			s.denom, err = NewDenomFilter60kHz()
		}
		if err != nil {
			return err
		}
	}
	s.picked = true
	return nil
}

// Numer and Denom return the selected band filters. They are nil until
// Select has been called at least once.
func (s *BandSelector) Numer() *Filter { return s.numer }
func (s *BandSelector) Denom() *Filter { return s.denom }

// Filter runs both band filters over x, producing the numerator and
// denominator signals for the ERMA ratio calculation (C6).
func (s *BandSelector) Filter(x []float64) (numer, denom []float64) {
	return s.numer.Process(x), s.denom.Process(x)
}
