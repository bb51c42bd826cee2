package core

import "fmt"

// VisibilityOracle answers line-of-sight questions between two points.
type VisibilityOracle interface {
	// IsFreeField reports whether nothing blocks the straight segment a-b.
	IsFreeField(a, b Point) (bool, error)
}

// FreeFieldFunc adapts a plain function to VisibilityOracle.
type FreeFieldFunc func(a, b Point) (bool, error)

func (f FreeFieldFunc) IsFreeField(a, b Point) (bool, error) { return f(a, b) }

// WallFreeFieldFinder is the shipped VisibilityOracle: it hit-tests the
// direct segment against every wall registered in its grid index. It is
// read-only once built and safe for concurrent use.
type WallFreeFieldFinder struct {
	walls []Wall
	index *GridIndex
}

// NewWallFreeFieldFinder indexes walls over env using a cols x rows grid.
// Non-positive subdivisions select a default based on the wall count.
func NewWallFreeFieldFinder(walls []Wall, env Envelope, cols, rows int) (*WallFreeFieldFinder, error) {
	if cols <= 0 || rows <= 0 {
		n := defaultGridSubdivisions(len(walls))
		cols, rows = n, n
	}
	index, err := NewGridIndex(env, cols, rows)
	if err != nil {
		return nil, fmt.Errorf("wall index: %w", err)
	}
	for id, w := range walls {
		index.AppendGeometry(w.Segment, id)
	}
	return &WallFreeFieldFinder{walls: walls, index: index}, nil
}

// Walls returns the indexed walls. Callers must not modify the slice.
func (f *WallFreeFieldFinder) Walls() []Wall { return f.walls }

// IsFreeField reports whether segment a-b touches no wall.
func (f *WallFreeFieldFinder) IsFreeField(a, b Point) (bool, error) {
	env := NewEnvelope(a, b)
	if env.IsPoint() {
		// Grid queries ignore point envelopes; fall back to an epsilon box.
		env = env.ExpandBy(geomEpsilon)
	}
	it := f.index.Query(env)
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		w := f.walls[id]
		if segmentsTouch(a, b, w.P0, w.P1) {
			return false, nil
		}
	}
	return true, nil
}

// WallsInRange returns the walls lying closer than dist to p, in index order.
func (f *WallFreeFieldFinder) WallsInRange(p Point, dist float64) []Wall {
	it := f.index.Query(EnvelopeAround(p, dist))
	var out []Wall
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		if f.walls[id].Distance(p) < dist {
			out = append(out, f.walls[id])
		}
	}
	return out
}
