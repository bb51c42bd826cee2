package core

// ThirdOctaveBands are the centre frequencies (Hz) evaluated by default.
var ThirdOctaveBands = []int{
	100, 125, 160, 200, 250, 315, 400, 500, 630,
	800, 1000, 1250, 1600, 2000, 2500, 3150, 4000, 5000,
}

// atmosphericAlpha holds ISO 9613-1 attenuation coefficients (dB/km) at
// 15 °C and 70 % relative humidity, keyed by third-octave centre frequency.
var atmosphericAlpha = map[int]float64{
	100:  0.25,
	125:  0.38,
	160:  0.57,
	200:  0.82,
	250:  1.13,
	315:  1.51,
	400:  1.92,
	500:  2.36,
	630:  2.84,
	800:  3.38,
	1000: 4.08,
	1250: 5.05,
	1600: 6.51,
	2000: 8.75,
	2500: 12.2,
	3150: 17.7,
	4000: 26.4,
	5000: 39.9,
}

// AtmosphericAlpha returns the attenuation coefficient in dB/km for a
// third-octave centre frequency, or 0 for frequencies outside the table.
func AtmosphericAlpha(freqHz int) float64 {
	return atmosphericAlpha[freqHz]
}

// AtmosphericAlphaTable returns the coefficients for every band, in order.
func AtmosphericAlphaTable(bands []int) []float64 {
	out := make([]float64, len(bands))
	for i, f := range bands {
		out[i] = AtmosphericAlpha(f)
	}
	return out
}
