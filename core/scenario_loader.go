package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/noisemap/model"
)

// Scenario file formats understood by DecodeScenario.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var scenarioValidate = newScenarioValidator()

func newScenarioValidator() *validator.Validate {
	v := validator.New()
	// Report field names as they appear in scenario files.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormatFromPath picks the scenario format from a file extension. Anything
// that is not .json is read as YAML.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// DecodeScenario reads a scenario in the given format. Unknown fields are
// rejected so typos in settings do not silently fall back to defaults.
func DecodeScenario(r io.Reader, format string) (*model.Scenario, error) {
	var sc model.Scenario
	switch strings.ToLower(format) {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("DecodeScenario: decode failed: %w", err)
		}
	case FormatYAML, "yml", "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&sc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("DecodeScenario: empty document")
			}
			return nil, fmt.Errorf("DecodeScenario: decode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("DecodeScenario: unsupported format %q", format)
	}
	return &sc, nil
}

// LoadScenarioFile decodes and validates the scenario stored at path.
func LoadScenarioFile(path string) (*model.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadScenarioFile: %w", err)
	}
	defer f.Close()

	sc, err := DecodeScenario(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := ValidateScenario(sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ValidateScenario checks struct constraints and the cross-field rules
// struct tags cannot express: consistent coordinate dimensionality, level
// vectors matching the band set, unique source ids.
func ValidateScenario(sc *model.Scenario) error {
	if sc == nil {
		return fmt.Errorf("%w: scenario is nil", ErrInvalidParameter)
	}
	if err := scenarioValidate.Struct(sc); err != nil {
		return translateValidationError(err)
	}

	bands := len(sc.Settings.Bands)
	if bands == 0 {
		bands = len(ThirdOctaveBands)
	}
	if n := len(sc.Settings.AlphaAtmosphere); n > 0 && n != bands {
		return fmt.Errorf("%w: settings.alpha_atmosphere has %d values for %d bands", ErrBandMismatch, n, bands)
	}

	seen := make(map[string]struct{}, len(sc.Sources))
	for _, src := range sc.Sources {
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("%w: duplicate source id %q", ErrInvalidParameter, src.ID)
		}
		seen[src.ID] = struct{}{}
		if len(src.Levels) != bands {
			return fmt.Errorf("%w: source %q has %d levels for %d bands", ErrBandMismatch, src.ID, len(src.Levels), bands)
		}
		if err := checkDimensions("source", src.ID, src.Coordinates); err != nil {
			return err
		}
	}
	for _, b := range sc.Buildings {
		if err := checkDimensions("building", b.ID, b.Ring); err != nil {
			return err
		}
	}
	for _, w := range sc.Walls {
		if err := checkDimensions("wall", w.ID, w.Coordinates); err != nil {
			return err
		}
	}
	return nil
}

func checkDimensions(kind, id string, coords [][]float64) error {
	if len(coords) == 0 {
		return fmt.Errorf("%w: %s %q has no coordinates", ErrInvalidGeometry, kind, id)
	}
	dim := len(coords[0])
	for i, c := range coords {
		if len(c) != dim {
			return fmt.Errorf("%w: %s %q mixes %dD and %dD coordinates (vertex %d)", ErrInvalidGeometry, kind, id, dim, len(c), i)
		}
	}
	return nil
}

// translateValidationError maps validator failures onto the core sentinel
// errors, naming the offending field.
func translateValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	fe := verrs[0]
	sentinel := ErrInvalidParameter
	ns := fe.Namespace()
	if strings.Contains(ns, ".coordinates") || strings.Contains(ns, ".ring") {
		sentinel = ErrInvalidGeometry
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("%w: %s fails %q", sentinel, ns, rule)
}

func pointFrom(c []float64) Point {
	p := Point{X: c[0], Y: c[1]}
	if len(c) > 2 {
		p.Z = c[2]
	}
	return p
}

func lineFrom(coords [][]float64) LineString {
	line := make(LineString, len(coords))
	for i, c := range coords {
		line[i] = pointFrom(c)
	}
	return line
}

// polylineWalls turns consecutive vertex pairs into walls, skipping repeated
// vertices. closed adds the edge from the last vertex back to the first.
func polylineWalls(owner string, line LineString, closed bool, absorption *float64) []Wall {
	if closed && len(line) > 1 && line[0].Equals2D(line[len(line)-1]) {
		line = line[:len(line)-1]
	}
	n := len(line) - 1
	if closed {
		n = len(line)
	}
	walls := make([]Wall, 0, n)
	for i := 0; i < n; i++ {
		a, b := line[i], line[(i+1)%len(line)]
		if a.Equals2D(b) {
			continue
		}
		w := Wall{Segment: Segment{P0: a, P1: b}, OwnerID: owner}
		if absorption != nil {
			w.Alpha, w.HasAlpha = *absorption, true
		}
		walls = append(walls, w)
	}
	return walls
}

// PropagationConfigFromSettings overlays scenario settings on the defaults.
func PropagationConfigFromSettings(s model.Settings) PropagationConfig {
	cfg := DefaultPropagationConfig()
	if len(s.Bands) > 0 {
		cfg.Bands = append([]int(nil), s.Bands...)
	}
	if len(s.AlphaAtmosphere) > 0 {
		cfg.AlphaAtmosphere = append([]float64(nil), s.AlphaAtmosphere...)
	}
	if s.ReflectionOrder != nil {
		cfg.ReflectionOrder = *s.ReflectionOrder
	}
	if s.MaxDistance > 0 {
		cfg.MaxDistance = s.MaxDistance
	}
	if s.WallAbsorption != nil {
		cfg.WallAbsorption = *s.WallAbsorption
	}
	if s.MinReceiverDistance > 0 {
		cfg.MinReceiverDistance = s.MinReceiverDistance
	}
	cfg.PointSourceWeighting = s.PointSourceWeighting
	return cfg
}

// BuildScene validates sc and materialises it into a Scene plus the
// propagation configuration derived from its settings. Building rings and
// free-standing wall polylines are broken into wall segments; source levels
// are served through a StaticEmission.
func BuildScene(ctx context.Context, sc *model.Scenario) (*Scene, PropagationConfig, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "BuildScene")
	defer span.End()

	scene, cfg, err := buildScene(sc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, PropagationConfig{}, err
	}
	span.SetAttributes(
		attribute.Int("sources", len(scene.Sources())),
		attribute.Int("walls", len(scene.Walls())),
		attribute.Int("receivers", len(scene.Receivers())),
		attribute.Int("bands", scene.Bands()),
	)
	return scene, cfg, nil
}

func buildScene(sc *model.Scenario) (*Scene, PropagationConfig, error) {
	if err := ValidateScenario(sc); err != nil {
		return nil, PropagationConfig{}, err
	}
	cfg := PropagationConfigFromSettings(sc.Settings)

	levels := make(map[string][]float64, len(sc.Sources))
	sources := make([]Source, 0, len(sc.Sources))
	for _, def := range sc.Sources {
		levels[def.ID] = def.Levels
		sources = append(sources, Source{ID: def.ID, Geometry: lineFrom(def.Coordinates)})
	}

	var walls []Wall
	for _, b := range sc.Buildings {
		edges := polylineWalls(b.ID, lineFrom(b.Ring), true, b.Absorption)
		if len(edges) < 3 {
			return nil, PropagationConfig{}, fmt.Errorf("%w: building %q ring has fewer than 3 distinct edges", ErrInvalidGeometry, b.ID)
		}
		walls = append(walls, edges...)
	}
	for _, w := range sc.Walls {
		edges := polylineWalls(w.ID, lineFrom(w.Coordinates), false, w.Absorption)
		if len(edges) == 0 {
			return nil, PropagationConfig{}, fmt.Errorf("%w: wall %q has zero length", ErrInvalidGeometry, w.ID)
		}
		walls = append(walls, edges...)
	}

	receivers := make([]Receiver, len(sc.Receivers))
	for i, r := range sc.Receivers {
		receivers[i] = Receiver{ID: r.ID, Position: Point{X: r.X, Y: r.Y, Z: r.Z}}
	}
	triangles := make([]Triangle, len(sc.Triangles))
	for i, t := range sc.Triangles {
		triangles[i] = Triangle{ID: i, A: t.A, B: t.B, C: t.C}
	}

	scene, err := NewScene(SceneInput{
		Bands:     len(cfg.Bands),
		Sources:   sources,
		Emission:  NewStaticEmission(levels),
		Walls:     walls,
		Receivers: receivers,
		Triangles: triangles,
		GridCols:  sc.Settings.GridCols,
		GridRows:  sc.Settings.GridRows,
		CellID:    sc.Settings.CellID,
	})
	if err != nil {
		return nil, PropagationConfig{}, err
	}
	return scene, cfg, nil
}
