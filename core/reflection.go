package core

import "fmt"

// ReflectionEpsilon is the distance a reflection point is moved off its wall
// before occlusion tests, so the wall itself does not block the path.
const ReflectionEpsilon = 0.01

// ReflectionPath describes a validated specular path from a source to the
// receiver.
type ReflectionPath struct {
	// Leaf is the arena index of the image the path was validated for.
	Leaf int
	// Order is the number of reflections traversed.
	Order int
	// Length is the distance from the source to the leaf image, equal to
	// the unfolded length of the path.
	Length float64
	// Walls lists the reflecting wall indices, source side first.
	Walls []int
	// Points lists the (nudged) reflection points, source side first.
	Points []Point
}

// ValidateReflectionPath walks the image chain from leaf back to its root
// and checks that every reflection point lies on its wall and sees the next
// point of the path. It short-circuits on the first failed test. Oracle
// errors are returned as is.
func ValidateReflectionPath(source, receiver Point, images []MirrorImage, leaf int, walls []Wall, oracle VisibilityOracle) (ReflectionPath, bool, error) {
	if leaf < 0 || leaf >= len(images) {
		return ReflectionPath{}, false, fmt.Errorf("%w: mirror image %d out of range", ErrInvalidParameter, leaf)
	}
	path := ReflectionPath{
		Leaf:   leaf,
		Length: images[leaf].Position.DistanceTo(source),
	}
	destination := source
	cursor := leaf
	for {
		img := images[cursor]
		wall := walls[img.Wall]
		hit, ok := Intersection(wall.Segment, Segment{P0: img.Position, P1: destination})
		if !ok {
			return ReflectionPath{}, false, nil
		}
		dir := hit.Sub(destination)
		length := dir.Norm()
		if length == 0 {
			// The destination sits on the wall: no specular point exists.
			return ReflectionPath{}, false, nil
		}
		reflection := hit.Sub(dir.Scale(ReflectionEpsilon / length))
		path.Order++
		path.Walls = append(path.Walls, img.Wall)
		path.Points = append(path.Points, reflection)

		free, err := oracle.IsFreeField(reflection, destination)
		if err != nil {
			return ReflectionPath{}, false, err
		}
		if !free {
			return ReflectionPath{}, false, nil
		}
		if img.Parent == NoParent {
			free, err = oracle.IsFreeField(reflection, receiver)
			if err != nil {
				return ReflectionPath{}, false, err
			}
			if !free {
				return ReflectionPath{}, false, nil
			}
			return path, true, nil
		}
		destination = reflection
		cursor = img.Parent
	}
}
