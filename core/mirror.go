package core

// Wall is an obstacle edge that can occlude and reflect sound.
type Wall struct {
	Segment
	// OwnerID identifies the building or free-standing wall the edge belongs to.
	OwnerID string
	// Alpha is the fraction of energy absorbed per reflection, in [0, 1).
	// It is only used when HasAlpha is set; otherwise the evaluation-wide
	// wall absorption applies.
	Alpha    float64
	HasAlpha bool
}

// NoParent marks a first-order mirror image.
const NoParent = -1

// MirrorImage is a receiver position reflected across a wall. Images live in
// a per-receiver arena and refer to each other by index, forming a forest
// whose roots are first-order images.
type MirrorImage struct {
	Position Point
	// Wall indexes the wall list the images were generated from.
	Wall int
	// Parent is the arena index of the image this one was mirrored from, or
	// NoParent.
	Parent int
	// ExceptWall is the wall that may not be used to mirror this image
	// again: the wall of its parent, or -1 for roots.
	ExceptWall int
	// Order is the reflection depth, 1-based.
	Order int
}

// GenerateMirrorImages builds every mirror image of receiver up to the given
// reflection order. A wall is skipped when the current point lies at maxDist
// or farther from it, and never reflects the image it just produced. The
// generator does no occlusion test. The forest has at most
// W + W(W-1) + ... entries for W walls.
func GenerateMirrorImages(receiver Point, walls []Wall, order int, maxDist float64) []MirrorImage {
	if order <= 0 || len(walls) == 0 {
		return nil
	}
	var images []MirrorImage
	var feed func(current Point, parent, exceptWall, depth int)
	feed = func(current Point, parent, exceptWall, depth int) {
		for wallID, wall := range walls {
			if wallID == exceptWall {
				continue
			}
			if wall.Distance(current) >= maxDist {
				continue
			}
			foot := wall.Project(current)
			mirrored := Point{X: 2*foot.X - current.X, Y: 2*foot.Y - current.Y, Z: current.Z}
			images = append(images, MirrorImage{
				Position:   mirrored,
				Wall:       wallID,
				Parent:     parent,
				ExceptWall: exceptWall,
				Order:      depth + 1,
			})
			if depth < order-1 {
				feed(mirrored, len(images)-1, wallID, depth+1)
			}
		}
	}
	feed(receiver, NoParent, -1, 0)
	return images
}

// ReflectionFactor returns the fraction of energy left after order
// reflections on walls absorbing alpha each.
func ReflectionFactor(alpha float64, order int) float64 {
	f := 1.0
	for i := 0; i < order; i++ {
		f *= 1 - alpha
	}
	return f
}
