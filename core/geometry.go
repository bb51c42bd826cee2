package core

import "math"

// geomEpsilon is the tolerance used for orientation and parallelism tests.
const geomEpsilon = 1e-12

// Point is a coordinate in a planar projected reference frame. Z is the
// height above a local datum; every algorithm in this package works in 2D
// and ignores it.
type Point struct {
	X, Y, Z float64
}

// DistanceTo returns the planar distance between two points.
func (p Point) DistanceTo(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Sub returns p - other (planar).
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Add returns p + other (planar).
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Scale returns p * k (planar).
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Dot returns the planar dot product.
func (p Point) Dot(other Point) float64 {
	return p.X*other.X + p.Y*other.Y
}

// Cross returns the z component of the planar cross product.
func (p Point) Cross(other Point) float64 {
	return p.X*other.Y - p.Y*other.X
}

// Norm returns the planar length of p seen as a vector.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Equals2D reports whether both points share the same planar coordinates.
func (p Point) Equals2D(other Point) bool {
	return p.X == other.X && p.Y == other.Y
}

// Envelope is an axis-aligned bounding rectangle. The zero value is a
// degenerate envelope at the origin; use EmptyEnvelope for "no extent".
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyEnvelope returns an envelope that contains nothing and grows with
// ExpandToInclude.
func EmptyEnvelope() Envelope {
	return Envelope{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// NewEnvelope returns the envelope spanned by two corner points.
func NewEnvelope(a, b Point) Envelope {
	return Envelope{
		MinX: math.Min(a.X, b.X), MinY: math.Min(a.Y, b.Y),
		MaxX: math.Max(a.X, b.X), MaxY: math.Max(a.Y, b.Y),
	}
}

// EnvelopeAround returns the square of half-side radius centred on p.
func EnvelopeAround(p Point, radius float64) Envelope {
	return Envelope{MinX: p.X - radius, MinY: p.Y - radius, MaxX: p.X + radius, MaxY: p.Y + radius}
}

// IsEmpty reports whether the envelope has no extent at all.
func (e Envelope) IsEmpty() bool { return e.MinX > e.MaxX || e.MinY > e.MaxY }

// IsPoint reports whether the envelope has collapsed onto a single point.
func (e Envelope) IsPoint() bool { return e.MinX == e.MaxX && e.MinY == e.MaxY }

func (e Envelope) Width() float64  { return e.MaxX - e.MinX }
func (e Envelope) Height() float64 { return e.MaxY - e.MinY }

// ExpandToInclude grows the envelope so that it covers p.
func (e Envelope) ExpandToInclude(p Point) Envelope {
	e.MinX = math.Min(e.MinX, p.X)
	e.MinY = math.Min(e.MinY, p.Y)
	e.MaxX = math.Max(e.MaxX, p.X)
	e.MaxY = math.Max(e.MaxY, p.Y)
	return e
}

// ExpandBy grows the envelope by d on every side.
func (e Envelope) ExpandBy(d float64) Envelope {
	return Envelope{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

// Intersects reports whether two closed envelopes share at least one point.
func (e Envelope) Intersects(other Envelope) bool {
	if e.IsEmpty() || other.IsEmpty() {
		return false
	}
	return !(other.MinX > e.MaxX || other.MaxX < e.MinX || other.MinY > e.MaxY || other.MaxY < e.MinY)
}

// Contains reports whether p lies inside or on the border of e.
func (e Envelope) Contains(p Point) bool {
	return p.X >= e.MinX && p.X <= e.MaxX && p.Y >= e.MinY && p.Y <= e.MaxY
}

func (e Envelope) corners() [4]Point {
	return [4]Point{
		{X: e.MinX, Y: e.MinY},
		{X: e.MaxX, Y: e.MinY},
		{X: e.MaxX, Y: e.MaxY},
		{X: e.MinX, Y: e.MaxY},
	}
}

// Geometry is anything the grid index can register: it must report its
// bounding envelope and whether its exact shape touches a cell rectangle.
type Geometry interface {
	Envelope() Envelope
	IntersectsEnvelope(env Envelope) bool
}

func (p Point) Envelope() Envelope { return Envelope{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y} }

func (p Point) IntersectsEnvelope(env Envelope) bool { return env.Contains(p) }

// Segment is an ordered pair of points.
type Segment struct {
	P0, P1 Point
}

// Length returns the planar length of the segment.
func (s Segment) Length() float64 { return s.P0.DistanceTo(s.P1) }

func (s Segment) Envelope() Envelope { return NewEnvelope(s.P0, s.P1) }

// projectionFactor returns the parameter t of the orthogonal projection of p
// on the segment's infinite line (0 at P0, 1 at P1).
func (s Segment) projectionFactor(p Point) float64 {
	d := s.P1.Sub(s.P0)
	l2 := d.Dot(d)
	if l2 == 0 {
		return 0
	}
	return p.Sub(s.P0).Dot(d) / l2
}

// Project returns the foot of the perpendicular from p onto the segment's
// infinite line.
func (s Segment) Project(p Point) Point {
	t := s.projectionFactor(p)
	return s.P0.Add(s.P1.Sub(s.P0).Scale(t))
}

// ClosestPoint returns the point of the segment nearest to p.
func (s Segment) ClosestPoint(p Point) Point {
	t := s.projectionFactor(p)
	if t <= 0 {
		return s.P0
	}
	if t >= 1 {
		return s.P1
	}
	return s.P0.Add(s.P1.Sub(s.P0).Scale(t))
}

// Distance returns the distance from p to the closest point of the segment.
func (s Segment) Distance(p Point) float64 {
	return p.DistanceTo(s.ClosestPoint(p))
}

// IntersectsEnvelope reports whether the segment touches the closed rectangle.
func (s Segment) IntersectsEnvelope(env Envelope) bool {
	if !env.Intersects(s.Envelope()) {
		return false
	}
	if env.Contains(s.P0) || env.Contains(s.P1) {
		return true
	}
	c := env.corners()
	for i := 0; i < 4; i++ {
		if segmentsTouch(s.P0, s.P1, c[i], c[(i+1)%4]) {
			return true
		}
	}
	return false
}

// Intersection computes the single intersection point of segments a and b.
// Parallel and collinear segments report no intersection: a reflection
// point on a wall seen edge-on is degenerate.
func Intersection(a, b Segment) (Point, bool) {
	r := a.P1.Sub(a.P0)
	s := b.P1.Sub(b.P0)
	den := r.Cross(s)
	if math.Abs(den) < geomEpsilon {
		return Point{}, false
	}
	qp := b.P0.Sub(a.P0)
	t := qp.Cross(s) / den
	u := qp.Cross(r) / den
	if t < -geomEpsilon || t > 1+geomEpsilon || u < -geomEpsilon || u > 1+geomEpsilon {
		return Point{}, false
	}
	return a.P0.Add(r.Scale(t)), true
}

func orientation(a, b, c Point) int {
	v := b.Sub(a).Cross(c.Sub(a))
	switch {
	case math.Abs(v) < geomEpsilon:
		return 0
	case v > 0:
		return 1
	default:
		return -1
	}
}

// onSegmentBox reports whether c, known collinear with a-b, lies within the
// bounding box of a-b.
func onSegmentBox(a, b, c Point) bool {
	return c.X >= math.Min(a.X, b.X)-geomEpsilon && c.X <= math.Max(a.X, b.X)+geomEpsilon &&
		c.Y >= math.Min(a.Y, b.Y)-geomEpsilon && c.Y <= math.Max(a.Y, b.Y)+geomEpsilon
}

// segmentsTouch reports whether p1-p2 and q1-q2 share at least one point,
// including endpoint contact and collinear overlap.
func segmentsTouch(p1, p2, q1, q2 Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)
	if o1 != o2 && o3 != o4 {
		return true
	}
	switch {
	case o1 == 0 && onSegmentBox(p1, p2, q1):
		return true
	case o2 == 0 && onSegmentBox(p1, p2, q2):
		return true
	case o3 == 0 && onSegmentBox(q1, q2, p1):
		return true
	case o4 == 0 && onSegmentBox(q1, q2, p2):
		return true
	}
	return false
}

// LineString is an open polyline.
type LineString []Point

func (ls LineString) Envelope() Envelope {
	env := EmptyEnvelope()
	for _, p := range ls {
		env = env.ExpandToInclude(p)
	}
	return env
}

// IntersectsEnvelope reports whether any part of the polyline touches env.
func (ls LineString) IntersectsEnvelope(env Envelope) bool {
	if len(ls) == 1 {
		return env.Contains(ls[0])
	}
	for i := 1; i < len(ls); i++ {
		if (Segment{P0: ls[i-1], P1: ls[i]}).IntersectsEnvelope(env) {
			return true
		}
	}
	return false
}

// Length returns the total planar length of the polyline.
func (ls LineString) Length() float64 {
	total := 0.0
	for i := 1; i < len(ls); i++ {
		total += ls[i-1].DistanceTo(ls[i])
	}
	return total
}

// ClosestPoint returns the polyline point nearest to p and its distance.
// ok is false for polylines with fewer than two vertices.
func (ls LineString) ClosestPoint(p Point) (closest Point, dist float64, ok bool) {
	dist = math.MaxFloat64
	for i := 1; i < len(ls); i++ {
		c := (Segment{P0: ls[i-1], P1: ls[i]}).ClosestPoint(p)
		if d := c.DistanceTo(p); d < dist {
			closest, dist, ok = c, d, true
		}
	}
	return closest, dist, ok
}
