package core

import (
	"fmt"
	"math"
)

// EmissionProvider supplies the sound power of each source per frequency
// band, in linear energy units. It is consulted once per source while the
// scene is built and never during evaluation.
type EmissionProvider interface {
	SoundPower(sourceID string, band int) (float64, error)
}

// DbToW converts a level in dB to linear energy.
func DbToW(db float64) float64 { return math.Pow(10, db/10) }

// WToDb converts linear energy to dB. Zero energy maps to -Inf.
func WToDb(w float64) float64 { return 10 * math.Log10(w) }

// StaticEmission serves per-band emission levels (dB) from an in-memory
// table keyed by source id.
type StaticEmission struct {
	levels map[string][]float64
}

// NewStaticEmission builds a provider from dB levels per source.
func NewStaticEmission(levels map[string][]float64) *StaticEmission {
	copied := make(map[string][]float64, len(levels))
	for id, l := range levels {
		copied[id] = append([]float64(nil), l...)
	}
	return &StaticEmission{levels: copied}
}

// SoundPower returns the linear power of source for the band at the given
// position in the band set.
func (s *StaticEmission) SoundPower(sourceID string, band int) (float64, error) {
	levels, ok := s.levels[sourceID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSource, sourceID)
	}
	if band < 0 || band >= len(levels) {
		return 0, fmt.Errorf("%w: source %q has %d levels, band %d requested", ErrBandMismatch, sourceID, len(levels), band)
	}
	return DbToW(levels[band]), nil
}

// Bands returns the number of bands known for a source, or -1.
func (s *StaticEmission) Bands(sourceID string) int {
	levels, ok := s.levels[sourceID]
	if !ok {
		return -1
	}
	return len(levels)
}
