package core

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func mustScene(t *testing.T, in SceneInput) *Scene {
	t.Helper()
	scene, err := NewScene(in)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	return scene
}

func mustEngine(t *testing.T, scene *Scene, cfg PropagationConfig, oracle VisibilityOracle) *PropagationEngine {
	t.Helper()
	engine, err := NewPropagationEngine(scene, cfg, oracle)
	if err != nil {
		t.Fatalf("NewPropagationEngine: %v", err)
	}
	return engine
}

func twoBandConfig() PropagationConfig {
	cfg := DefaultPropagationConfig()
	cfg.Bands = []int{500, 1000}
	cfg.ReflectionOrder = 0
	return cfg
}

// expectedContribution spells out spherical spreading plus atmospheric
// absorption for one path.
func expectedContribution(powerDb, distance, alphaDbPerKm, weight float64) float64 {
	d := math.Max(distance, 1)
	db := powerDb - 10*math.Log10(4*math.Pi*d*d) - alphaDbPerKm*distance/1000 + 10*math.Log10(weight)
	return math.Pow(10, db/10)
}

func TestComputeReceiverSinglePointSource(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{{X: 0, Y: 0}}, Power: []float64{DbToW(90), DbToW(85)}}},
		Receivers: []Receiver{{ID: "r", Position: Point{X: 30, Y: 40}}},
	})
	engine := mustEngine(t, scene, twoBandConfig(), nil)

	res, err := engine.ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	b0 := expectedContribution(90, 50, AtmosphericAlpha(500), 1)
	b1 := expectedContribution(85, 50, AtmosphericAlpha(1000), 1)
	if !almostEqual(res.Bands[0], b0, b0*1e-12) || !almostEqual(res.Bands[1], b1, b1*1e-12) {
		t.Fatalf("bands = %v, want [%v %v]", res.Bands, b0, b1)
	}
	if want := 10 * math.Log10(b0+b1); !almostEqual(res.Level, want, 1e-9) {
		t.Fatalf("level = %v, want %v", res.Level, want)
	}
	if !res.Evaluated || res.ReceiverID != "r" {
		t.Fatalf("unexpected result header %+v", res)
	}
	if res.Stats.SourcesInRange != 1 || res.Stats.SourceSamples != 1 || res.Stats.FreeFieldTests != 1 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}
}

func TestComputeReceiverWithoutSourcesReportsFloor(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Receivers: []Receiver{{ID: "r", Position: Point{X: 1, Y: 1}}},
	})
	res, err := mustEngine(t, scene, twoBandConfig(), nil).ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	if res.Level != 0 || res.Total != FloorEnergy {
		t.Fatalf("level = %v total = %v, want 0 dB", res.Level, res.Total)
	}
	if !reflect.DeepEqual(res.BandLevels, []float64{0, 0}) {
		t.Fatalf("band levels = %v, want zeros", res.BandLevels)
	}
}

func TestComputeReceiverExcludesSourcesAtMaxDistance(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{{X: 100, Y: 0}}, Power: []float64{DbToW(120), DbToW(120)}}},
		Receivers: []Receiver{{ID: "r", Position: Point{}}},
	})
	cfg := twoBandConfig()
	cfg.MaxDistance = 100
	res, err := mustEngine(t, scene, cfg, nil).ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	if res.Level != 0 || res.Stats.SourceSamples != 0 {
		t.Fatalf("source at exactly max distance contributed: level %v stats %+v", res.Level, res.Stats)
	}
}

func TestComputeReceiverIsIdempotent(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands: 2,
		Sources: []Source{
			{ID: "road", Geometry: LineString{{X: -50, Y: -20}, {X: 80, Y: -20}}, Power: []float64{DbToW(80), DbToW(78)}},
			{ID: "pump", Geometry: LineString{{X: 10, Y: 30}}, Power: []float64{DbToW(95), DbToW(90)}},
		},
		Walls:     []Wall{{Segment: Segment{P0: Point{X: -30, Y: 10}, P1: Point{X: 30, Y: 10}}}},
		Receivers: []Receiver{{ID: "r", Position: Point{X: 0, Y: 0}}},
	})
	cfg := twoBandConfig()
	cfg.ReflectionOrder = 2
	engine := mustEngine(t, scene, cfg, nil)

	first, err := engine.ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("first ComputeReceiver: %v", err)
	}
	second, err := engine.ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("second ComputeReceiver: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestComputeReceiverAddsWallReflection(t *testing.T) {
	wall := Wall{Segment: Segment{P0: Point{X: -100, Y: 0}, P1: Point{X: 100, Y: 0}}}
	newScene := func(w Wall) *Scene {
		return mustScene(t, SceneInput{
			Bands:     2,
			Sources:   []Source{{ID: "s", Geometry: LineString{{X: 40, Y: 5}}, Power: []float64{DbToW(90), DbToW(90)}}},
			Walls:     []Wall{w},
			Receivers: []Receiver{{ID: "r", Position: Point{X: 0, Y: 5}}},
		})
	}
	cfg := twoBandConfig()
	cfg.ReflectionOrder = 1
	cfg.WallAbsorption = 0.2

	reflected := math.Sqrt(1700)
	for _, tc := range []struct {
		name   string
		wall   Wall
		factor float64
	}{
		{"default absorption", wall, 0.8},
		{"wall absorption", Wall{Segment: wall.Segment, Alpha: 0.5, HasAlpha: true}, 0.5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, err := mustEngine(t, newScene(tc.wall), cfg, nil).ComputeReceiver(context.Background(), 0)
			if err != nil {
				t.Fatalf("ComputeReceiver: %v", err)
			}
			for b, f := range cfg.Bands {
				alpha := AtmosphericAlpha(f)
				want := expectedContribution(90, 40, alpha, 1) +
					expectedContribution(90+10*math.Log10(tc.factor), reflected, alpha, 1)
				if !almostEqual(res.Bands[b], want, want*1e-9) {
					t.Fatalf("band %d = %v, want %v", f, res.Bands[b], want)
				}
			}
			if res.Stats.MirrorImages != 1 || res.Stats.ReflectionCandidates != 1 || res.Stats.ReflectionPaths != 1 {
				t.Fatalf("unexpected stats %+v", res.Stats)
			}
		})
	}
}

func TestComputeReceiverHexagonFixture(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{hexagonSource}, Power: []float64{DbToW(100), DbToW(100)}}},
		Walls:     hexagonWalls(),
		Receivers: []Receiver{{ID: "r", Position: hexagonReceiver}},
	})
	cfg := twoBandConfig()
	cfg.MaxDistance = 1000
	for order, want := range map[int]int{1: 1, 2: 3, 3: 5} {
		cfg.ReflectionOrder = order
		res, err := mustEngine(t, scene, cfg, nil).ComputeReceiver(context.Background(), 0)
		if err != nil {
			t.Fatalf("order %d: %v", order, err)
		}
		if res.Stats.ReflectionPaths != want {
			t.Fatalf("order %d: %d valid reflection paths, want %d", order, res.Stats.ReflectionPaths, want)
		}
		// The direct path grazes the courtyard corner D and is blocked, so
		// every bit of energy arrives by reflection.
		if res.Level <= 0 {
			t.Fatalf("order %d: level %v, want reflected energy", order, res.Level)
		}
	}
}

func TestComputeReceiverOccludedDirectPath(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{{X: 20, Y: 0}}, Power: []float64{DbToW(100), DbToW(100)}}},
		Walls:     []Wall{{Segment: Segment{P0: Point{X: 10, Y: -5}, P1: Point{X: 10, Y: 5}}}},
		Receivers: []Receiver{{ID: "r", Position: Point{}}},
	})
	res, err := mustEngine(t, scene, twoBandConfig(), nil).ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	if res.Level != 0 {
		t.Fatalf("occluded source reached the receiver at %v dB", res.Level)
	}
}

func TestComputeReceiverLineSourceMemoisesRepeatedSample(t *testing.T) {
	// The receiver sits beyond the first vertex, so the closest point and the
	// first regular sample coincide.
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "road", Geometry: LineString{{X: 0, Y: 0}, {X: 100, Y: 0}}, Power: []float64{DbToW(80), DbToW(80)}}},
		Receivers: []Receiver{{ID: "r", Position: Point{X: -30, Y: 40}}},
	})
	res, err := mustEngine(t, scene, twoBandConfig(), nil).ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	// step = min(20, 50/2): samples (0,0) twice, then 20, 40, 60, 80, 100.
	if res.Stats.SourceSamples != 7 || res.Stats.MemoizedTests != 1 || res.Stats.FreeFieldTests != 6 {
		t.Fatalf("unexpected stats %+v", res.Stats)
	}

	want := 0.0
	samples := []Point{{X: 0}, {X: 0}, {X: 20}, {X: 40}, {X: 60}, {X: 80}, {X: 100}}
	for _, f := range []int{500, 1000} {
		for _, s := range samples {
			want += expectedContribution(80, s.DistanceTo(Point{X: -30, Y: 40}), AtmosphericAlpha(f), 20)
		}
	}
	if !almostEqual(res.Total, want, want*1e-9) {
		t.Fatalf("total = %v, want %v", res.Total, want)
	}
}

func TestComputeReceiverPointSourceWeighting(t *testing.T) {
	in := SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{{X: 10, Y: 0}}, Power: []float64{DbToW(90), DbToW(90)}}},
		Receivers: []Receiver{{ID: "r", Position: Point{}}},
	}
	cfg := twoBandConfig()
	plain, err := mustEngine(t, mustScene(t, in), cfg, nil).ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	cfg.PointSourceWeighting = true
	weighted, err := mustEngine(t, mustScene(t, in), cfg, nil).ComputeReceiver(context.Background(), 0)
	if err != nil {
		t.Fatalf("ComputeReceiver: %v", err)
	}
	// weight = min(max(10, 1)/2, 20) = 5
	if diff := weighted.Level - plain.Level; !almostEqual(diff, 10*math.Log10(5), 1e-9) {
		t.Fatalf("weighting added %v dB, want %v", diff, 10*math.Log10(5))
	}
}

func TestComputeReceiverOracleFailure(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{{X: 10, Y: 0}}, Power: []float64{1, 1}}},
		Receivers: []Receiver{{ID: "r", Position: Point{}}},
	})
	boom := errors.New("dem tile missing")
	oracle := FreeFieldFunc(func(a, b Point) (bool, error) { return false, boom })
	_, err := mustEngine(t, scene, twoBandConfig(), oracle).ComputeReceiver(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the oracle error", err)
	}
}

func TestComputeReceiverHonoursCancellation(t *testing.T) {
	scene := mustScene(t, SceneInput{
		Bands:     2,
		Sources:   []Source{{ID: "s", Geometry: LineString{{X: 10, Y: 0}}, Power: []float64{1, 1}}},
		Receivers: []Receiver{{ID: "r", Position: Point{}}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := mustEngine(t, scene, twoBandConfig(), nil).ComputeReceiver(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestComputeReceiverRejectsBadIndex(t *testing.T) {
	scene := mustScene(t, SceneInput{Bands: 2, Receivers: []Receiver{{ID: "r"}}})
	if _, err := mustEngine(t, scene, twoBandConfig(), nil).ComputeReceiver(context.Background(), 3); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestNewPropagationEngineValidatesConfig(t *testing.T) {
	scene := mustScene(t, SceneInput{Bands: 2, Receivers: []Receiver{{ID: "r"}}})
	cases := []struct {
		name   string
		mutate func(*PropagationConfig)
		want   error
	}{
		{"band count differs from scene", func(c *PropagationConfig) { c.Bands = []int{500, 1000, 2000} }, ErrBandMismatch},
		{"alpha table length", func(c *PropagationConfig) { c.AlphaAtmosphere = []float64{1} }, ErrBandMismatch},
		{"no bands", func(c *PropagationConfig) { c.Bands = nil }, ErrInvalidParameter},
		{"negative order", func(c *PropagationConfig) { c.ReflectionOrder = -1 }, ErrInvalidParameter},
		{"zero distance", func(c *PropagationConfig) { c.MaxDistance = 0 }, ErrInvalidParameter},
		{"infinite distance", func(c *PropagationConfig) { c.MaxDistance = math.Inf(1) }, ErrInvalidParameter},
		{"full absorption", func(c *PropagationConfig) { c.WallAbsorption = 1 }, ErrInvalidParameter},
		{"negative alpha", func(c *PropagationConfig) { c.AlphaAtmosphere = []float64{-1, 0} }, ErrInvalidParameter},
		{"zero min distance", func(c *PropagationConfig) { c.MinReceiverDistance = 0 }, ErrInvalidParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := twoBandConfig()
			tc.mutate(&cfg)
			if _, err := NewPropagationEngine(scene, cfg, nil); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if _, err := NewPropagationEngine(nil, twoBandConfig(), nil); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("nil scene: err = %v", err)
	}
}

func TestNewPropagationEngineCopiesConfig(t *testing.T) {
	scene := mustScene(t, SceneInput{Bands: 2, Receivers: []Receiver{{ID: "r"}}})
	cfg := twoBandConfig()
	engine := mustEngine(t, scene, cfg, nil)
	cfg.Bands[0] = 63
	if engine.Config().Bands[0] != 500 {
		t.Fatalf("engine config aliased the caller's band slice")
	}
	if want := []float64{AtmosphericAlpha(500), AtmosphericAlpha(1000)}; !reflect.DeepEqual(engine.Config().AlphaAtmosphere, want) {
		t.Fatalf("derived alpha = %v, want %v", engine.Config().AlphaAtmosphere, want)
	}
}
