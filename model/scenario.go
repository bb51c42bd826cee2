package model

// Scenario is the on-disk description of a noise map study: evaluation
// settings plus the sources, obstacles and receivers of one area.
type Scenario struct {
	Settings  Settings             `yaml:"settings" json:"settings"`
	Sources   []SourceDefinition   `yaml:"sources" json:"sources" validate:"dive"`
	Buildings []BuildingDefinition `yaml:"buildings" json:"buildings" validate:"dive"`
	Walls     []WallDefinition     `yaml:"walls" json:"walls" validate:"dive"`
	Receivers []ReceiverDefinition `yaml:"receivers" json:"receivers" validate:"required,min=1,dive"`
	Triangles []TriangleDefinition `yaml:"triangles" json:"triangles" validate:"dive"`
}

// Settings holds the evaluation parameters. Zero values select the engine
// defaults.
type Settings struct {
	// Bands are centre frequencies in Hz; empty selects third-octave bands
	// from 100 Hz to 5 kHz.
	Bands []int `yaml:"bands" json:"bands" validate:"dive,gt=0"`

	// AlphaAtmosphere overrides the ISO 9613-1 table, in dB/km per band.
	AlphaAtmosphere      []float64 `yaml:"alpha_atmosphere" json:"alpha_atmosphere" validate:"dive,gte=0"`
	ReflectionOrder      *int      `yaml:"reflection_order" json:"reflection_order" validate:"omitempty,gte=0,lte=8"`
	MaxDistance          float64   `yaml:"max_distance" json:"max_distance" validate:"gte=0"`
	WallAbsorption       *float64  `yaml:"wall_absorption" json:"wall_absorption" validate:"omitempty,gte=0,lt=1"`
	MinReceiverDistance  float64   `yaml:"min_receiver_distance" json:"min_receiver_distance" validate:"gte=0"`
	PointSourceWeighting bool      `yaml:"point_source_weighting" json:"point_source_weighting"`
	GridCols             int       `yaml:"grid_cols" json:"grid_cols" validate:"gte=0"`
	GridRows             int       `yaml:"grid_rows" json:"grid_rows" validate:"gte=0"`
	Workers              int       `yaml:"workers" json:"workers" validate:"gte=0"`
	CellID               int       `yaml:"cell_id" json:"cell_id"`
}

// SourceDefinition is a point source (one coordinate) or a line source
// (polyline). Levels are sound power levels in dB, one per band.
type SourceDefinition struct {
	ID          string      `yaml:"id" json:"id" validate:"required"`
	Coordinates [][]float64 `yaml:"coordinates" json:"coordinates" validate:"required,min=1,dive,min=2,max=3"`
	Levels      []float64   `yaml:"levels" json:"levels" validate:"required,min=1"`
}

// BuildingDefinition is a footprint polygon. Every edge of its ring becomes a
// reflecting wall owned by the building.
type BuildingDefinition struct {
	ID         string      `yaml:"id" json:"id" validate:"required"`
	Ring       [][]float64 `yaml:"ring" json:"ring" validate:"required,min=3,dive,min=2,max=3"`
	Absorption *float64    `yaml:"absorption" json:"absorption" validate:"omitempty,gte=0,lt=1"`
}

// WallDefinition is a free-standing wall (noise barrier, fence) given as a
// polyline.
type WallDefinition struct {
	ID          string      `yaml:"id" json:"id" validate:"required"`
	Coordinates [][]float64 `yaml:"coordinates" json:"coordinates" validate:"required,min=2,dive,min=2,max=3"`
	Absorption  *float64    `yaml:"absorption" json:"absorption" validate:"omitempty,gte=0,lt=1"`
}

// ReceiverDefinition is an evaluation point.
type ReceiverDefinition struct {
	ID string  `yaml:"id" json:"id" validate:"required"`
	X  float64 `yaml:"x" json:"x"`
	Y  float64 `yaml:"y" json:"y"`
	Z  float64 `yaml:"z" json:"z"`
}

// TriangleDefinition references three receivers by position in the
// receiver list.
type TriangleDefinition struct {
	A int `yaml:"a" json:"a" validate:"gte=0"`
	B int `yaml:"b" json:"b" validate:"gte=0"`
	C int `yaml:"c" json:"c" validate:"gte=0"`
}
