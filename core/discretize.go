package core

import "math"

// MaxSampleStep is the coarsest spacing used when splitting a line source.
const MaxSampleStep = 20.0

// SplitLineSource discretises a polyline into point samples for a receiver.
// The polyline point closest to the receiver always comes first, followed by
// points spaced regularly along the line from its first vertex. The step is
// half the receiver distance (floored at minReceiverDist), capped at
// MaxSampleStep, so sampling is dense near the receiver and coarse far away.
// The returned step is also the line length each sample stands for.
func SplitLineSource(line LineString, receiver Point, minReceiverDist float64) ([]Point, float64) {
	closest, dist, ok := line.ClosestPoint(receiver)
	if !ok {
		return nil, 1
	}
	if dist < minReceiverDist {
		dist = minReceiverDist
	}
	step := math.Min(MaxSampleStep, dist/2)
	if step <= 0 {
		return []Point{closest}, 1
	}
	samples := make([]Point, 0, 2+int(line.Length()/step))
	samples = append(samples, closest)
	return appendRegularPoints(samples, line, step), step
}

// appendRegularPoints appends the points found every step along line,
// starting at its first vertex and including the last vertex when it falls
// on the step grid.
func appendRegularPoints(dst []Point, line LineString, step float64) []Point {
	dst = append(dst, line[0])
	// Distance still to travel before the next sample.
	remaining := step
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		segLen := a.DistanceTo(b)
		if segLen == 0 {
			continue
		}
		offset := 0.0
		for segLen-offset >= remaining {
			offset += remaining
			t := offset / segLen
			dst = append(dst, Point{
				X: a.X + (b.X-a.X)*t,
				Y: a.Y + (b.Y-a.Y)*t,
				Z: a.Z + (b.Z-a.Z)*t,
			})
			remaining = step
		}
		remaining -= segLen - offset
	}
	return dst
}

// PointSourceWeight is the sample weight applied to point sources when
// point-source weighting is enabled: half the receiver distance (floored at
// minReceiverDist), capped at MaxSampleStep.
func PointSourceWeight(source, receiver Point, minReceiverDist float64) float64 {
	return math.Min(math.Max(source.DistanceTo(receiver), minReceiverDist)/2, MaxSampleStep)
}
