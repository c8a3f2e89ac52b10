package dsp

// Built-in filter coefficients, transcribed from original_source/ermaFilt.c.
// They were designed in MATLAB with ellip() and are reused across every run
// unless overridden in the config file's dsfA/dsfB/numerA/... arrays.
var (
	// dsfB/dsfA: anti-alias filter for downsampling 180 kHz to 60 kHz,
	// leaving everything below 23.5 kHz as close to untouched as possible.
	// [b,a] = ellip(4, 2, 60, [3 24]/90).
	dsfB = []float64{
		0.006963836673885, -0.019053637420856, 0.020023609965423,
		-0.019909423243391, 0.023951274248473, -0.019909423243392,
		0.020023609965423, -0.019053637420856, 0.006963836673885,
	}
	dsfA = []float64{
		1.000000000000000, -6.663681662931410, 20.033505429094703,
		-35.584638535052193, 40.908195659872050, -31.183646057073140,
		15.390352164262620, -4.494155069695583, 0.594114270117529,
	}

	// numerB/A: the ERMA numerator (signal) band filter, [4,8] kHz.
	// 60 kHz variant: [b,a] = ellip(3, 2, 60, [4 8]/30).
	numerB60kHz = []float64{
		0.004949674561963, -0.007591117532359, 0.000607613894629,
		0.000000000000000, -0.000607613894629, 0.007591117532359,
		-0.004949674561963,
	}
	numerA60kHz = []float64{
		1.000000000000000, -4.607661069228133, 9.732733677096491,
		-11.856007135368305, 8.779320675676932, -3.749344788838549,
		0.735251386501633,
	}
	// 50 kHz variant: [b,a] = ellip(3, 2, 60, [4 8]/25).
	numerB50kHz = []float64{
		0.007119415752776, -0.007972105997869, -0.004765768694883,
		0.000000000000000, 0.004765768694883, 0.007972105997869,
		-0.007119415752776,
	}
	numerA50kHz = []float64{
		1.000000000000000, -4.108868851635148, 8.183671546337083,
		-9.695682976738993, 7.232676605709873, -3.207474776547401,
		0.691636087128368,
	}

	// denomB/A: the ERMA denominator ("guard band") filter, [22,23.5] kHz.
	// 60 kHz variant: [b,a] = ellip(3, 2, 60, [22 23.5]/30).
	denomB60kHz = []float64{
		0.001115247785115, 0.002801466558323, 0.002542844341920,
		-0.000000000000000, -0.002542844341920, -0.002801466558323,
		-0.001115247785115,
	}
	denomA60kHz = []float64{
		1.000000000000000, 4.268476814187771, 8.950132499671438,
		11.080651372260499, 8.611736489648441, 3.951719189802946,
		0.890860742005225,
	}
	// 50 kHz variant: [b,a] = ellip(3, 2, 60, [22 23.5]/25).
	denomB50kHz = []float64{
		0.001401496233272, 0.004400335669003, 0.004601907723615,
		0.000000000000000, -0.004601907723615, -0.004400335669003,
		-0.001401496233272,
	}
	denomA50kHz = []float64{
		1.000000000000000, 5.628779051638011, 13.422689768912146,
		17.348255305470765, 12.815388984643835, 5.131239693594241,
		0.870524913784521,
	}
)

// NewDownsampleFilter builds the default anti-alias filter used ahead of
// 3:1 decimation from ~180 kHz to ~60 kHz.
func NewDownsampleFilter() (*Filter, error) {
	return NewFilter([2]float64{0, 25e3}, dsfB, dsfA)
}

// NewNumerFilter60kHz and its siblings build the preset numerator/
// denominator band filters for a 60 kHz or 50 kHz output sample rate.
func NewNumerFilter60kHz() (*Filter, error) {
	return NewFilter([2]float64{4e3, 8e3}, numerB60kHz, numerA60kHz)
}

func NewNumerFilter50kHz() (*Filter, error) {
	return NewFilter([2]float64{4e3, 8e3}, numerB50kHz, numerA50kHz)
}

func NewDenomFilter60kHz() (*Filter, error) {
	return NewFilter([2]float64{22e3, 23.5e3}, denomB60kHz, denomA60kHz)
}

func NewDenomFilter50kHz() (*Filter, error) {
	return NewFilter([2]float64{22e3, 23.5e3}, denomB50kHz, denomA50kHz)
}
