package core

import "errors"

var (
	// ErrInvalidGeometry reports malformed input geometry (empty coordinate
	// arrays, mixed dimensionality, non-finite coordinates, bad references).
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrBandMismatch reports per-band arrays whose length differs from the
	// configured band count.
	ErrBandMismatch = errors.New("frequency band count mismatch")
	// ErrInvalidParameter reports an out-of-range evaluation parameter.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnknownSource is returned by emission providers asked about a
	// source they know nothing about.
	ErrUnknownSource = errors.New("unknown source")
)
