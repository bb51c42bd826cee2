package core

import "testing"

func TestTriangleLevels(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     1,
		Receivers: []Receiver{{ID: "a"}, {ID: "b", Position: Point{X: 1}}, {ID: "c", Position: Point{Y: 1}}, {ID: "d", Position: Point{X: 1, Y: 1}}},
		Triangles: []Triangle{{ID: 0, A: 0, B: 1, C: 2}, {ID: 1, A: 1, B: 3, C: 2}},
		CellID:    42,
	})
	results := []ReceiverResult{
		{Evaluated: true, Level: 50},
		{Evaluated: true, Level: 55},
		{Evaluated: true, Level: 60},
		{Evaluated: false},
	}
	tris := TriangleLevels(scene, results)
	if len(tris) != 1 {
		t.Fatalf("got %d triangles, want 1", len(tris))
	}
	want := TriangleResult{ID: 0, CellID: 42, Vertices: [3]int{0, 1, 2}, Levels: [3]float64{50, 55, 60}}
	if tris[0] != want {
		t.Fatalf("triangle = %+v, want %+v", tris[0], want)
	}
}

func TestTriangleLevelsWithoutMesh(t *testing.T) {
	scene := mustScene(t, SceneInput{Bands: 1, Receivers: []Receiver{{ID: "a"}}})
	if tris := TriangleLevels(scene, []ReceiverResult{{Evaluated: true}}); tris != nil {
		t.Fatalf("TriangleLevels = %+v, want nil", tris)
	}
}
