package core

import (
	"fmt"
	"math"
)

// GridIndex speeds up range queries over a geometry collection while keeping
// the per-cell membership compact.
//
// The indexed region is split into rows x cols uniform cells. An item is
// registered in a cell only when its exact geometry touches the cell
// rectangle, not merely its envelope. Cell membership is a RowsUnion, so
// densely and monotonically assigned ids cost one interval per run.
//
// A GridIndex is built by a single writer and is safe for concurrent
// queries once building is finished.
type GridIndex struct {
	env        Envelope
	rows, cols int
	cellWidth  float64
	cellHeight float64
	cells      map[int]*RowsUnion
}

// NewGridIndex creates an empty index covering env with the given
// subdivision counts.
func NewGridIndex(env Envelope, cols, rows int) (*GridIndex, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: grid subdivisions must be positive (cols=%d rows=%d)", ErrInvalidParameter, cols, rows)
	}
	if env.IsEmpty() || env.Width() <= 0 || env.Height() <= 0 {
		return nil, fmt.Errorf("%w: grid envelope must have a positive area", ErrInvalidParameter)
	}
	return &GridIndex{
		env:        env,
		rows:       rows,
		cols:       cols,
		cellWidth:  env.Width() / float64(cols),
		cellHeight: env.Height() / float64(rows),
		cells:      make(map[int]*RowsUnion),
	}, nil
}

// Envelope returns the indexed region.
func (g *GridIndex) Envelope() Envelope { return g.env }

func (g *GridIndex) flatIndex(row, col int) int { return col + row*g.cols }

func (g *GridIndex) cellEnvelope(row, col int) Envelope {
	minX := g.env.MinX + g.cellWidth*float64(col)
	minY := g.env.MinY + g.cellHeight*float64(row)
	return Envelope{MinX: minX, MinY: minY, MaxX: minX + g.cellWidth, MaxY: minY + g.cellHeight}
}

func clampIndex(v float64, n int) int {
	if v < 0 {
		return 0
	}
	if v >= float64(n) {
		return n - 1
	}
	return int(v)
}

// cellRange returns the inclusive row/column span covered by env. ok is false
// when env does not touch the indexed region.
func (g *GridIndex) cellRange(env Envelope) (minRow, maxRow, minCol, maxCol int, ok bool) {
	if !g.env.Intersects(env) {
		return 0, 0, 0, 0, false
	}
	minCol = clampIndex(math.Floor((env.MinX-g.env.MinX)/g.cellWidth), g.cols)
	maxCol = clampIndex(math.Floor((env.MaxX-g.env.MinX)/g.cellWidth), g.cols)
	minRow = clampIndex(math.Floor((env.MinY-g.env.MinY)/g.cellHeight), g.rows)
	maxRow = clampIndex(math.Floor((env.MaxY-g.env.MinY)/g.cellHeight), g.rows)
	return minRow, maxRow, minCol, maxCol, true
}

// AppendGeometry registers id in every cell touched by geom. Geometry lying
// entirely outside the indexed region is not registered anywhere.
func (g *GridIndex) AppendGeometry(geom Geometry, id int) {
	minRow, maxRow, minCol, maxCol, ok := g.cellRange(geom.Envelope())
	if !ok {
		return
	}
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			if !geom.IntersectsEnvelope(g.cellEnvelope(row, col)) {
				continue
			}
			flat := g.flatIndex(row, col)
			if cell, exists := g.cells[flat]; exists {
				cell.Add(id)
			} else {
				g.cells[flat] = NewRowsUnion(id, id)
			}
		}
	}
}

// Query returns the ids registered in every cell touched by env, each id
// once, in ascending order. Candidates are exact at cell resolution; callers
// apply their own distance filter. A point envelope or an envelope outside
// the indexed region yields an empty iterator.
func (g *GridIndex) Query(env Envelope) *RowIterator {
	if env.IsEmpty() || env.IsPoint() {
		return newRowIterator(nil)
	}
	minRow, maxRow, minCol, maxCol, ok := g.cellRange(env)
	if !ok {
		return newRowIterator(nil)
	}
	var lists [][]Interval
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			if cell, exists := g.cells[g.flatIndex(row, col)]; exists {
				lists = append(lists, cell.Intervals())
			}
		}
	}
	return newRowIterator(mergeIntervals(lists))
}

// Size returns the number of (cell, id) registrations held by the index.
func (g *GridIndex) Size() int {
	n := 0
	for _, cell := range g.cells {
		n += cell.Len()
	}
	return n
}

// defaultGridSubdivisions picks a square subdivision giving roughly
// itemsPerCell items per cell, bounded to keep the cell map small.
func defaultGridSubdivisions(items int) int {
	const itemsPerCell = 8
	n := int(math.Ceil(math.Sqrt(float64(items) / itemsPerCell)))
	if n < 1 {
		return 1
	}
	if n > 512 {
		return 512
	}
	return n
}
