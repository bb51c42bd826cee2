package core

import (
	"testing"
)

// hexagonWalls is the U-shaped courtyard A(1,1) B(1,8) C(8,8) D(8,5) E(5,5)
// F(5,1) with the free-standing wall GH at x=13 as index 6.
func hexagonWalls() []Wall {
	v := []Point{{X: 1, Y: 1}, {X: 1, Y: 8}, {X: 8, Y: 8}, {X: 8, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 1}}
	walls := make([]Wall, 0, 7)
	for i := range v {
		walls = append(walls, Wall{Segment: Segment{P0: v[i], P1: v[(i+1)%len(v)]}, OwnerID: "hexagon"})
	}
	return append(walls, Wall{Segment: Segment{P0: Point{X: 13, Y: 1}, P1: Point{X: 13, Y: 8}}, OwnerID: "GH"})
}

var (
	hexagonReceiver = Point{X: 6, Y: 3}
	hexagonSource   = Point{X: 10, Y: 7}
)

func TestGenerateMirrorImagesForestSize(t *testing.T) {
	walls := hexagonWalls()
	cases := []struct {
		order int
		want  int
	}{
		{0, 0},
		{1, 7},
		{2, 7 + 7*6},
		{3, 7 + 7*6 + 7*6*6},
	}
	for _, tc := range cases {
		images := GenerateMirrorImages(hexagonReceiver, walls, tc.order, 1000)
		if len(images) != tc.want {
			t.Fatalf("order %d: %d images, want %d", tc.order, len(images), tc.want)
		}
	}
}

func TestGenerateMirrorImagesTreeLinks(t *testing.T) {
	images := GenerateMirrorImages(hexagonReceiver, hexagonWalls(), 3, 1000)
	for i, img := range images {
		if img.Wall == img.ExceptWall {
			t.Fatalf("image %d mirrors on its own exception wall %d", i, img.Wall)
		}
		if img.Parent == NoParent {
			if img.Order != 1 || img.ExceptWall != -1 {
				t.Fatalf("root image %d: order %d except %d", i, img.Order, img.ExceptWall)
			}
			continue
		}
		if img.Parent >= i {
			t.Fatalf("image %d has parent %d stored after it", i, img.Parent)
		}
		parent := images[img.Parent]
		if img.ExceptWall != parent.Wall {
			t.Fatalf("image %d: except wall %d, parent wall %d", i, img.ExceptWall, parent.Wall)
		}
		if img.Order != parent.Order+1 {
			t.Fatalf("image %d: order %d, parent order %d", i, img.Order, parent.Order)
		}
	}
}

func TestGenerateMirrorImagesSingleWall(t *testing.T) {
	wall := Wall{Segment: Segment{P0: Point{X: -10, Y: 0}, P1: Point{X: 10, Y: 0}}}
	receiver := Point{X: 3, Y: 4, Z: 1.5}

	images := GenerateMirrorImages(receiver, []Wall{wall}, 3, 100)
	// A lone wall cannot reflect its own image again.
	if len(images) != 1 {
		t.Fatalf("got %d images, want 1", len(images))
	}
	img := images[0]
	if !almostEqual(img.Position.X, 3, 1e-12) || !almostEqual(img.Position.Y, -4, 1e-12) || img.Position.Z != 1.5 {
		t.Fatalf("image at %+v, want (3,-4,1.5)", img.Position)
	}
	if img.Wall != 0 || img.Parent != NoParent {
		t.Fatalf("unexpected image links %+v", img)
	}
}

func TestGenerateMirrorImagesMirrorsOnWallLine(t *testing.T) {
	// The receiver projects beyond the wall's end: the image still uses the
	// infinite supporting line.
	wall := Wall{Segment: Segment{P0: Point{X: 0, Y: 0}, P1: Point{X: 0, Y: 2}}}
	images := GenerateMirrorImages(Point{X: 3, Y: 5}, []Wall{wall}, 1, 100)
	if len(images) != 1 || !images[0].Position.Equals2D(Point{X: -3, Y: 5}) {
		t.Fatalf("images = %+v, want one at (-3,5)", images)
	}
}

func TestGenerateMirrorImagesDistanceIsStrict(t *testing.T) {
	wall := Wall{Segment: Segment{P0: Point{X: 5, Y: -1}, P1: Point{X: 5, Y: 1}}}
	if n := len(GenerateMirrorImages(Point{}, []Wall{wall}, 1, 5)); n != 0 {
		t.Fatalf("wall at exactly maxDist produced %d images, want 0", n)
	}
	if n := len(GenerateMirrorImages(Point{}, []Wall{wall}, 1, 5.0001)); n != 1 {
		t.Fatalf("wall inside maxDist produced %d images, want 1", n)
	}
}

func TestGenerateMirrorImagesReceiverOnWall(t *testing.T) {
	wall := Wall{Segment: Segment{P0: Point{X: 0, Y: 0}, P1: Point{X: 4, Y: 0}}}
	images := GenerateMirrorImages(Point{X: 2, Y: 0}, []Wall{wall}, 1, 10)
	if len(images) != 1 {
		t.Fatalf("got %d images, want 1", len(images))
	}
	if !images[0].Position.Equals2D(Point{X: 2, Y: 0}) {
		t.Fatalf("image of a point on the wall should coincide with it, got %+v", images[0].Position)
	}
}

func TestReflectionFactorDecreasesWithOrder(t *testing.T) {
	if got := ReflectionFactor(0.2, 0); got != 1 {
		t.Fatalf("ReflectionFactor(0.2, 0) = %v, want 1", got)
	}
	if got := ReflectionFactor(0.2, 2); !almostEqual(got, 0.64, 1e-12) {
		t.Fatalf("ReflectionFactor(0.2, 2) = %v, want 0.64", got)
	}
	for _, alpha := range []float64{0.05, 0.3, 0.9} {
		prev := ReflectionFactor(alpha, 0)
		for k := 1; k <= 5; k++ {
			f := ReflectionFactor(alpha, k)
			if !(f < prev) {
				t.Fatalf("alpha %v: factor at order %d (%v) not below order %d (%v)", alpha, k, f, k-1, prev)
			}
			prev = f
		}
	}
}
