package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineConfig holds the training-set build settings. It can be read from
// a YAML file and individual fields overridden by environment variables.
type PipelineConfig struct {
	ReferenceDir     string    `yaml:"reference_dir"`
	County           string    `yaml:"county"`
	Year             int       `yaml:"year"`
	Highways         []string  `yaml:"highways"`
	SignalRadius     float64   `yaml:"signal_radius_m"`
	Iterations       int       `yaml:"iterations"`
	TestFraction     float64   `yaml:"test_fraction"`
	Seed             uint64    `yaml:"seed"`
	TimeZone         string    `yaml:"time_zone"`
	OutputDir        string    `yaml:"output_dir"`
	OverpassEndpoint string    `yaml:"overpass_endpoint"`
	OverpassBBox     []float64 `yaml:"overpass_bbox"` // west, south, east, north
}

func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		ReferenceDir: "reference_data",
		County:       "MECKLENBURG",
		Year:         2016,
		Highways:     []string{"77", "85", "485", "277", "74", "29", "49", "16", "51", "21", "24", "27"},
		SignalRadius: 500,
		Iterations:   3,
		TestFraction: 0.2,
		Seed:         42,
		TimeZone:     "America/New_York",
		OutputDir:    "training_sets",
	}
}

// LoadPipelineSettings reads path over the defaults. Keys missing from the
// file keep their default values.
func LoadPipelineSettings(path string) (PipelineConfig, error) {
	p := DefaultPipeline()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (p *PipelineConfig) applyEnv() {
	p.ReferenceDir = getEnv("REFERENCE_DIR", p.ReferenceDir)
	p.County = getEnv("PIPELINE_COUNTY", p.County)
	p.Year = getEnvAsInt("PIPELINE_YEAR", p.Year)
	p.Highways = getEnvAsSlice("PIPELINE_HIGHWAYS", p.Highways)
	p.SignalRadius = getEnvAsFloat("SIGNAL_RADIUS_M", p.SignalRadius)
	p.Iterations = getEnvAsInt("NEGATIVE_ITERATIONS", p.Iterations)
	p.TestFraction = getEnvAsFloat("TEST_FRACTION", p.TestFraction)
	if v, err := strconv.ParseUint(getEnv("PIPELINE_SEED", ""), 10, 64); err == nil {
		p.Seed = v
	}
	p.TimeZone = getEnv("PIPELINE_TZ", p.TimeZone)
	p.OutputDir = getEnv("TRAINING_OUTPUT_DIR", p.OutputDir)
	p.OverpassEndpoint = getEnv("OVERPASS_ENDPOINT", p.OverpassEndpoint)
}

func (p PipelineConfig) Validate() error {
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		return fmt.Errorf("test_fraction %v must be in (0, 1)", p.TestFraction)
	}
	if p.Iterations < 0 {
		return fmt.Errorf("iterations %d must not be negative", p.Iterations)
	}
	if len(p.OverpassBBox) != 0 && len(p.OverpassBBox) != 4 {
		return fmt.Errorf("overpass_bbox needs 4 values, got %d", len(p.OverpassBBox))
	}
	if _, err := time.LoadLocation(p.TimeZone); err != nil {
		return fmt.Errorf("time_zone: %w", err)
	}
	return nil
}

// Location resolves TimeZone, falling back to UTC.
func (p PipelineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
