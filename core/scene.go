package core

import (
	"fmt"
	"math"
)

// Source is a point source (one vertex) or a line source (polyline) with its
// sound power per band in linear energy units.
type Source struct {
	ID       string
	Geometry LineString
	Power    []float64
}

// IsPoint reports whether the source is a point emitter.
func (s Source) IsPoint() bool { return len(s.Geometry) == 1 }

// Receiver is a point where the total level is evaluated.
type Receiver struct {
	ID       string
	Position Point
}

// Triangle references three receivers forming a mesh face.
type Triangle struct {
	ID      int
	A, B, C int
}

// SceneInput gathers the already materialised collections a Scene is built
// from.
type SceneInput struct {
	// Bands is the number of frequency bands every power vector must have.
	Bands int
	// Sources with a nil Power get it from Emission.
	Sources   []Source
	Emission  EmissionProvider
	Walls     []Wall
	Receivers []Receiver
	Triangles []Triangle
	// GridCols and GridRows subdivide the source and wall indexes.
	// Non-positive values select a default from the item count.
	GridCols, GridRows int
	// CellID tags triangle results when the scene is one cell of a larger
	// study area.
	CellID int
}

// Scene is the immutable input of an evaluation: validated geometry, source
// power and the spatial indexes built over them. It is written once by
// NewScene and only read afterwards, so it is safe to share between
// evaluation goroutines.
type Scene struct {
	bands     int
	sources   []Source
	walls     []Wall
	receivers []Receiver
	triangles []Triangle
	cellID    int

	env         Envelope
	sourceIndex *GridIndex
	freeField   *WallFreeFieldFinder
}

// NewScene validates the input and builds the spatial indexes. Any malformed
// element aborts the build with an error naming it.
func NewScene(in SceneInput) (*Scene, error) {
	if in.Bands <= 0 {
		return nil, fmt.Errorf("%w: band count must be positive, got %d", ErrInvalidParameter, in.Bands)
	}
	if len(in.Receivers) == 0 {
		return nil, fmt.Errorf("%w: at least one receiver is required", ErrInvalidParameter)
	}

	env := EmptyEnvelope()
	sources := make([]Source, len(in.Sources))
	for i, src := range in.Sources {
		if len(src.Geometry) == 0 {
			return nil, fmt.Errorf("%w: source %q has no coordinates", ErrInvalidGeometry, src.ID)
		}
		for _, p := range src.Geometry {
			if !finitePoint(p) {
				return nil, fmt.Errorf("%w: source %q has a non-finite coordinate", ErrInvalidGeometry, src.ID)
			}
			env = env.ExpandToInclude(p)
		}
		power, err := resolvePower(src, in.Emission, in.Bands)
		if err != nil {
			return nil, err
		}
		sources[i] = Source{ID: src.ID, Geometry: append(LineString(nil), src.Geometry...), Power: power}
	}

	walls := make([]Wall, len(in.Walls))
	for i, w := range in.Walls {
		if !finitePoint(w.P0) || !finitePoint(w.P1) {
			return nil, fmt.Errorf("%w: wall %d of %q has a non-finite coordinate", ErrInvalidGeometry, i, w.OwnerID)
		}
		if w.P0.Equals2D(w.P1) {
			return nil, fmt.Errorf("%w: wall %d of %q has zero length", ErrInvalidGeometry, i, w.OwnerID)
		}
		if w.HasAlpha && (w.Alpha < 0 || w.Alpha >= 1) {
			return nil, fmt.Errorf("%w: wall %d of %q absorption %v outside [0,1)", ErrInvalidParameter, i, w.OwnerID, w.Alpha)
		}
		env = env.ExpandToInclude(w.P0).ExpandToInclude(w.P1)
		walls[i] = w
	}

	receivers := append([]Receiver(nil), in.Receivers...)
	seen := make(map[string]struct{}, len(receivers))
	for _, r := range receivers {
		if !finitePoint(r.Position) {
			return nil, fmt.Errorf("%w: receiver %q has a non-finite coordinate", ErrInvalidGeometry, r.ID)
		}
		if _, dup := seen[r.ID]; dup && r.ID != "" {
			return nil, fmt.Errorf("%w: duplicate receiver id %q", ErrInvalidParameter, r.ID)
		}
		seen[r.ID] = struct{}{}
		env = env.ExpandToInclude(r.Position)
	}

	for _, t := range in.Triangles {
		for _, v := range [3]int{t.A, t.B, t.C} {
			if v < 0 || v >= len(receivers) {
				return nil, fmt.Errorf("%w: triangle %d references receiver %d of %d", ErrInvalidGeometry, t.ID, v, len(receivers))
			}
		}
	}

	// A margin keeps boundary geometry inside the grid and gives single
	// point scenes a positive area.
	env = env.ExpandBy(1)

	cols, rows := in.GridCols, in.GridRows
	if cols <= 0 || rows <= 0 {
		n := defaultGridSubdivisions(len(sources))
		cols, rows = n, n
	}
	sourceIndex, err := NewGridIndex(env, cols, rows)
	if err != nil {
		return nil, fmt.Errorf("source index: %w", err)
	}
	for id, src := range sources {
		sourceIndex.AppendGeometry(src.Geometry, id)
	}

	freeField, err := NewWallFreeFieldFinder(walls, env, in.GridCols, in.GridRows)
	if err != nil {
		return nil, err
	}

	return &Scene{
		bands:       in.Bands,
		sources:     sources,
		walls:       walls,
		receivers:   receivers,
		triangles:   append([]Triangle(nil), in.Triangles...),
		cellID:      in.CellID,
		env:         env,
		sourceIndex: sourceIndex,
		freeField:   freeField,
	}, nil
}

func resolvePower(src Source, emission EmissionProvider, bands int) ([]float64, error) {
	power := src.Power
	if power == nil {
		if emission == nil {
			return nil, fmt.Errorf("%w: source %q has no power and no emission provider is set", ErrInvalidParameter, src.ID)
		}
		power = make([]float64, bands)
		for b := 0; b < bands; b++ {
			w, err := emission.SoundPower(src.ID, b)
			if err != nil {
				return nil, fmt.Errorf("emission for source %q: %w", src.ID, err)
			}
			power[b] = w
		}
	}
	if len(power) != bands {
		return nil, fmt.Errorf("%w: source %q has %d power values for %d bands", ErrBandMismatch, src.ID, len(power), bands)
	}
	out := make([]float64, bands)
	for b, w := range power {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("%w: source %q band %d power %v", ErrInvalidParameter, src.ID, b, w)
		}
		out[b] = w
	}
	return out, nil
}

func finitePoint(p Point) bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Bands returns the band count of every power vector.
func (s *Scene) Bands() int { return s.bands }

// Sources returns the validated sources. Callers must not modify them.
func (s *Scene) Sources() []Source { return s.sources }

// Walls returns every wall of the scene. Callers must not modify them.
func (s *Scene) Walls() []Wall { return s.walls }

// Receivers returns the receivers in evaluation order.
func (s *Scene) Receivers() []Receiver { return s.receivers }

// Triangles returns the receiver mesh faces, if any.
func (s *Scene) Triangles() []Triangle { return s.triangles }

// CellID returns the study-area cell this scene belongs to.
func (s *Scene) CellID() int { return s.cellID }

// Envelope returns the region covered by the indexes.
func (s *Scene) Envelope() Envelope { return s.env }

// SourceIndex returns the grid index over source geometries.
func (s *Scene) SourceIndex() *GridIndex { return s.sourceIndex }

// FreeField returns the wall-based visibility oracle of the scene.
func (s *Scene) FreeField() *WallFreeFieldFinder { return s.freeField }
