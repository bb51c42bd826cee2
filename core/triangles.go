package core

// TriangleResult carries the levels at the three vertices of a receiver
// mesh face, ready for contouring by an exporter.
type TriangleResult struct {
	ID       int        `json:"id"`
	CellID   int        `json:"cell_id"`
	Vertices [3]int     `json:"vertices"`
	Levels   [3]float64 `json:"levels"`
}

// TriangleLevels maps receiver results onto the scene triangles. Triangles
// with a vertex that was not evaluated are left out.
func TriangleLevels(scene *Scene, results []ReceiverResult) []TriangleResult {
	triangles := scene.Triangles()
	if len(triangles) == 0 {
		return nil
	}
	out := make([]TriangleResult, 0, len(triangles))
	for _, t := range triangles {
		verts := [3]int{t.A, t.B, t.C}
		tr := TriangleResult{ID: t.ID, CellID: scene.CellID(), Vertices: verts}
		complete := true
		for k, v := range verts {
			if v >= len(results) || !results[v].Evaluated {
				complete = false
				break
			}
			tr.Levels[k] = results[v].Level
		}
		if complete {
			out = append(out, tr)
		}
	}
	return out
}
