package core

import (
	"context"
	"fmt"
	"math"
)

// PropagationConfig holds the evaluation parameters. It is immutable once
// handed to NewPropagationEngine.
type PropagationConfig struct {
	// Bands are the band centre frequencies in Hz, in power-vector order.
	Bands []int
	// AlphaAtmosphere is the attenuation in dB/km per band. When nil it is
	// derived from Bands with AtmosphericAlphaTable.
	AlphaAtmosphere []float64
	// ReflectionOrder is the maximum number of wall reflections; 0 disables
	// the reflection search.
	ReflectionOrder int
	// MaxDistance bounds source, wall and image distances to a receiver.
	MaxDistance float64
	// WallAbsorption is the absorption of walls without their own value.
	WallAbsorption float64
	// MinReceiverDistance floors the distance used to pick the line-source
	// sampling step.
	MinReceiverDistance float64
	// PointSourceWeighting applies the line-source length weight to point
	// sources as well, instead of a unit weight.
	PointSourceWeighting bool
}

// DefaultPropagationConfig returns third-octave bands, first-order
// reflections and a 500 m search radius.
func DefaultPropagationConfig() PropagationConfig {
	return PropagationConfig{
		Bands:               append([]int(nil), ThirdOctaveBands...),
		ReflectionOrder:     1,
		MaxDistance:         500,
		WallAbsorption:      0.2,
		MinReceiverDistance: 1,
	}
}

// validated checks parameter ranges and returns a copy with derived tables
// filled in.
func (c PropagationConfig) validated() (PropagationConfig, error) {
	if len(c.Bands) == 0 {
		return c, fmt.Errorf("%w: at least one frequency band is required", ErrInvalidParameter)
	}
	if c.AlphaAtmosphere == nil {
		c.AlphaAtmosphere = AtmosphericAlphaTable(c.Bands)
	}
	if len(c.AlphaAtmosphere) != len(c.Bands) {
		return c, fmt.Errorf("%w: %d atmospheric coefficients for %d bands", ErrBandMismatch, len(c.AlphaAtmosphere), len(c.Bands))
	}
	switch {
	case c.ReflectionOrder < 0:
		return c, fmt.Errorf("%w: reflection order %d is negative", ErrInvalidParameter, c.ReflectionOrder)
	case !(c.MaxDistance > 0) || math.IsInf(c.MaxDistance, 0):
		return c, fmt.Errorf("%w: max distance %v must be positive and finite", ErrInvalidParameter, c.MaxDistance)
	case c.WallAbsorption < 0 || c.WallAbsorption >= 1:
		return c, fmt.Errorf("%w: wall absorption %v outside [0,1)", ErrInvalidParameter, c.WallAbsorption)
	case !(c.MinReceiverDistance > 0):
		return c, fmt.Errorf("%w: min receiver distance %v must be positive", ErrInvalidParameter, c.MinReceiverDistance)
	}
	for i, a := range c.AlphaAtmosphere {
		if a < 0 || math.IsNaN(a) {
			return c, fmt.Errorf("%w: atmospheric coefficient %v for band %d", ErrInvalidParameter, a, c.Bands[i])
		}
	}
	c.Bands = append([]int(nil), c.Bands...)
	c.AlphaAtmosphere = append([]float64(nil), c.AlphaAtmosphere...)
	return c, nil
}

// ReceiverStats counts the work done for one receiver.
type ReceiverStats struct {
	SourcesInRange       int `json:"sources_in_range"`
	SourceSamples        int `json:"source_samples"`
	FreeFieldTests       int `json:"free_field_tests"`
	MemoizedTests        int `json:"memoized_tests"`
	MirrorImages         int `json:"mirror_images"`
	ReflectionCandidates int `json:"reflection_candidates"`
	ReflectionPaths      int `json:"reflection_paths"`
}

// Add accumulates other into s.
func (s *ReceiverStats) Add(other ReceiverStats) {
	s.SourcesInRange += other.SourcesInRange
	s.SourceSamples += other.SourceSamples
	s.FreeFieldTests += other.FreeFieldTests
	s.MemoizedTests += other.MemoizedTests
	s.MirrorImages += other.MirrorImages
	s.ReflectionCandidates += other.ReflectionCandidates
	s.ReflectionPaths += other.ReflectionPaths
}

// ReceiverResult is the outcome of one receiver evaluation.
type ReceiverResult struct {
	ReceiverID string `json:"receiver_id"`
	Index      int    `json:"index"`
	// Evaluated is false for receivers skipped by a cancelled run.
	Evaluated bool `json:"evaluated"`
	// Bands are the linear per-band energy sums.
	Bands []float64 `json:"bands,omitempty"`
	// BandLevels are the per-band levels in dB, floored at 0 dB.
	BandLevels []float64 `json:"band_levels,omitempty"`
	// Total is the broadband linear energy floored at FloorEnergy.
	Total float64 `json:"total"`
	// Level is Total in dB.
	Level float64       `json:"level"`
	Stats ReceiverStats `json:"stats"`
	// Err holds the oracle failure that aborted this receiver, if any.
	Err string `json:"error,omitempty"`
}

// PropagationEngine computes receiver levels over a Scene. It holds no
// mutable state and may be shared by concurrent evaluations.
type PropagationEngine struct {
	scene  *Scene
	cfg    PropagationConfig
	oracle VisibilityOracle
}

// NewPropagationEngine checks cfg against the scene. A nil oracle selects the
// scene's wall-based free-field finder.
func NewPropagationEngine(scene *Scene, cfg PropagationConfig, oracle VisibilityOracle) (*PropagationEngine, error) {
	if scene == nil {
		return nil, fmt.Errorf("%w: scene is nil", ErrInvalidParameter)
	}
	cfg, err := cfg.validated()
	if err != nil {
		return nil, err
	}
	if len(cfg.Bands) != scene.Bands() {
		return nil, fmt.Errorf("%w: configuration has %d bands, scene power vectors have %d", ErrBandMismatch, len(cfg.Bands), scene.Bands())
	}
	if oracle == nil {
		oracle = scene.FreeField()
	}
	return &PropagationEngine{scene: scene, cfg: cfg, oracle: oracle}, nil
}

// Scene returns the scene the engine evaluates.
func (e *PropagationEngine) Scene() *Scene { return e.scene }

// Config returns the validated configuration.
func (e *PropagationEngine) Config() PropagationConfig { return e.cfg }

// countingOracle counts the free-field tests of one receiver.
type countingOracle struct {
	inner VisibilityOracle
	tests int
}

func (c *countingOracle) IsFreeField(a, b Point) (bool, error) {
	c.tests++
	return c.inner.IsFreeField(a, b)
}

// attenuate applies spherical spreading (distance floored at 1), atmospheric
// absorption over the unfloored distance and the sample weight to a source
// power.
func attenuate(power, distance, alphaDbPerKm, weight float64) float64 {
	d := math.Max(distance, 1)
	spread := power / (4 * math.Pi * d * d)
	return DbToW(WToDb(spread) - alphaDbPerKm*distance/1000 + 10*math.Log10(weight))
}

// ComputeReceiver evaluates the receiver at index idx of the scene.
// Oracle errors abort this receiver only.
func (e *PropagationEngine) ComputeReceiver(ctx context.Context, idx int) (ReceiverResult, error) {
	receivers := e.scene.Receivers()
	if idx < 0 || idx >= len(receivers) {
		return ReceiverResult{}, fmt.Errorf("%w: receiver index %d out of range", ErrInvalidParameter, idx)
	}
	rec := receivers[idx]
	cfg := e.cfg
	oracle := &countingOracle{inner: e.oracle}
	acc := NewEnergeticAccumulator(len(cfg.Bands))
	var stats ReceiverStats

	var walls []Wall
	var images []MirrorImage
	if cfg.ReflectionOrder > 0 {
		walls = e.scene.FreeField().WallsInRange(rec.Position, cfg.MaxDistance)
		images = GenerateMirrorImages(rec.Position, walls, cfg.ReflectionOrder, cfg.MaxDistance)
		stats.MirrorImages = len(images)
	}

	sources := e.scene.Sources()
	it := e.scene.SourceIndex().Query(EnvelopeAround(rec.Position, cfg.MaxDistance))
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return ReceiverResult{}, err
		}
		src := sources[id]
		stats.SourcesInRange++

		var samples []Point
		weight := 1.0
		if src.IsPoint() {
			samples = []Point{src.Geometry[0]}
			if cfg.PointSourceWeighting {
				weight = PointSourceWeight(src.Geometry[0], rec.Position, cfg.MinReceiverDistance)
			}
		} else {
			samples, weight = SplitLineSource(src.Geometry, rec.Position, cfg.MinReceiverDistance)
		}

		var last Point
		hasLast, lastVisible := false, false
		for _, sample := range samples {
			distance := sample.DistanceTo(rec.Position)
			if distance >= cfg.MaxDistance {
				continue
			}
			stats.SourceSamples++

			var visible bool
			if hasLast && last.Equals2D(sample) {
				// Only the immediately preceding sample is remembered.
				visible = lastVisible
				stats.MemoizedTests++
			} else {
				var err error
				visible, err = oracle.IsFreeField(rec.Position, sample)
				if err != nil {
					return ReceiverResult{}, fmt.Errorf("receiver %q: free field test: %w", rec.ID, err)
				}
			}
			last, hasLast, lastVisible = sample, true, visible

			if visible {
				for b := range cfg.Bands {
					acc.Add(b, attenuate(src.Power[b], distance, cfg.AlphaAtmosphere[b], weight))
				}
			}

			for leaf := range images {
				imageDistance := images[leaf].Position.DistanceTo(sample)
				if imageDistance >= cfg.MaxDistance {
					continue
				}
				stats.ReflectionCandidates++
				path, valid, err := ValidateReflectionPath(sample, rec.Position, images, leaf, walls, oracle)
				if err != nil {
					return ReceiverResult{}, fmt.Errorf("receiver %q: reflection test: %w", rec.ID, err)
				}
				if !valid {
					continue
				}
				stats.ReflectionPaths++
				factor := e.wallFactor(walls, path.Walls)
				for b := range cfg.Bands {
					acc.Add(b, attenuate(src.Power[b]*factor, path.Length, cfg.AlphaAtmosphere[b], weight))
				}
			}
		}
	}
	stats.FreeFieldTests = oracle.tests

	total := acc.Total()
	return ReceiverResult{
		ReceiverID: rec.ID,
		Index:      idx,
		Evaluated:  true,
		Bands:      acc.Bands(),
		BandLevels: acc.Levels(),
		Total:      total,
		Level:      WToDb(total),
		Stats:      stats,
	}, nil
}

// wallFactor is the energy left after reflecting on every wall of a path.
// With a single absorption value it equals ReflectionFactor(alpha, order).
func (e *PropagationEngine) wallFactor(walls []Wall, path []int) float64 {
	f := 1.0
	for _, w := range path {
		alpha := e.cfg.WallAbsorption
		if walls[w].HasAlpha {
			alpha = walls[w].Alpha
		}
		f *= 1 - alpha
	}
	return f
}
