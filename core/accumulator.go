package core

import "math"

// FloorEnergy is the linear equivalent of 0 dB, the lowest level reported.
const FloorEnergy = 1.0

// EnergeticAccumulator sums linear energy contributions per band for one
// receiver. It is owned by a single goroutine.
type EnergeticAccumulator struct {
	bands []float64
}

// NewEnergeticAccumulator returns a zeroed accumulator for n bands.
func NewEnergeticAccumulator(n int) *EnergeticAccumulator {
	return &EnergeticAccumulator{bands: make([]float64, n)}
}

// Add accumulates a contribution into band. Negative and NaN contributions
// are dropped so the sums never go negative.
func (a *EnergeticAccumulator) Add(band int, energy float64) {
	if !(energy > 0) || math.IsInf(energy, 1) {
		return
	}
	a.bands[band] += energy
}

// Bands returns a copy of the per-band sums.
func (a *EnergeticAccumulator) Bands() []float64 {
	return append([]float64(nil), a.bands...)
}

// Total returns the broadband sum floored at FloorEnergy.
func (a *EnergeticAccumulator) Total() float64 {
	total := 0.0
	for _, e := range a.bands {
		total += e
	}
	if total < FloorEnergy {
		return FloorEnergy
	}
	return total
}

// Levels returns the per-band sums in dB, each floored at 0 dB.
func (a *EnergeticAccumulator) Levels() []float64 {
	out := make([]float64, len(a.bands))
	for i, e := range a.bands {
		out[i] = WToDb(math.Max(e, FloorEnergy))
	}
	return out
}
