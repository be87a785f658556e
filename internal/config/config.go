// Package config loads the JSON run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/celeritas-project/celer-engine/internal/domain"
)

// EnvConfig names the environment variable holding the config path.
const EnvConfig = "CELER_CONFIG"

// PrimaryConfig describes the primary particle gun.
type PrimaryConfig struct {
	Particle  string     `json:"particle"`
	Energy    float64    `json:"energy"` // MeV
	Position  [3]float64 `json:"position"`
	Direction [3]float64 `json:"direction"`
}

// Config holds the run configuration.
type Config struct {
	ProblemPath         string        `json:"problem_path"`
	DBPath              string        `json:"db_path"`
	MemSpace            string        `json:"mem_space"`
	MaxStreams          int           `json:"max_streams"`
	DeviceThreads       int           `json:"device_threads"`
	TrackSlots          int           `json:"track_slots"`
	InitializerCapacity int           `json:"initializer_capacity"`
	SecondaryCapacity   int           `json:"secondary_capacity"`
	MaxEvents           int           `json:"max_events"`
	MaxSteps            int           `json:"max_steps"`
	Events              int           `json:"events"`
	PrimariesPerEvent   int           `json:"primaries_per_event"`
	Seed                uint64        `json:"seed"`
	ActionTimes         bool          `json:"action_times"`
	StatusChecker       bool          `json:"status_checker"`
	WarmUp              bool          `json:"warm_up"`
	StepLimit           int           `json:"step_limit"`
	LogLevel            string        `json:"log_level"`
	LogFormat           string        `json:"log_format"`
	ListenAddr          string        `json:"listen_addr"`
	MetricsAddr         string        `json:"metrics_addr"`
	Optical             bool          `json:"optical"`
	OpticalTrackSlots   int           `json:"optical_track_slots"`
	Primary             PrimaryConfig `json:"primary"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a validated configuration for a problem file.
func Default(problemPath string) *Config {
	cfg := &Config{ProblemPath: problemPath}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.MemSpace == "" {
		c.MemSpace = domain.MemSpaceHost.String()
	}
	if c.MaxStreams == 0 {
		c.MaxStreams = 1
	}
	if c.DeviceThreads == 0 {
		c.DeviceThreads = 4
	}
	if c.TrackSlots == 0 {
		c.TrackSlots = 256
	}
	if c.InitializerCapacity == 0 {
		c.InitializerCapacity = 8 * c.TrackSlots
	}
	if c.SecondaryCapacity == 0 {
		c.SecondaryCapacity = 2
	}
	if c.Events == 0 {
		c.Events = 1
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = c.Events
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 10000
	}
	if c.PrimariesPerEvent == 0 {
		c.PrimariesPerEvent = 1
	}
	if c.Seed == 0 {
		c.Seed = 20220904
	}
	if c.StepLimit == 0 {
		c.StepLimit = 100000
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.LogFormat == "" {
		c.LogFormat = "CONSOLE"
	}
	if c.OpticalTrackSlots == 0 {
		c.OpticalTrackSlots = c.TrackSlots
	}
	if c.Primary.Particle == "" {
		c.Primary.Particle = "e-"
	}
	if c.Primary.Energy == 0 {
		c.Primary.Energy = 10
	}
	if c.Primary.Direction == [3]float64{} {
		c.Primary.Direction = [3]float64{0, 0, 1}
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.ProblemPath == "" {
		problems = append(problems, "problem_path is required")
	}
	if _, err := domain.ParseMemSpace(c.MemSpace); err != nil {
		problems = append(problems, "mem_space must be host or device")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"max_streams", c.MaxStreams},
		{"device_threads", c.DeviceThreads},
		{"track_slots", c.TrackSlots},
		{"initializer_capacity", c.InitializerCapacity},
		{"secondary_capacity", c.SecondaryCapacity},
		{"max_events", c.MaxEvents},
		{"max_steps", c.MaxSteps},
		{"events", c.Events},
		{"primaries_per_event", c.PrimariesPerEvent},
		{"step_limit", c.StepLimit},
		{"optical_track_slots", c.OpticalTrackSlots},
	}
	for _, p := range positive {
		if p.value <= 0 {
			problems = append(problems, p.name+" must be positive")
		}
	}
	if c.Events > c.MaxEvents {
		problems = append(problems, fmt.Sprintf("events (%d) exceeds max_events (%d)", c.Events, c.MaxEvents))
	}
	if c.PrimariesPerEvent > c.InitializerCapacity {
		problems = append(problems, fmt.Sprintf("primaries_per_event (%d) exceeds initializer_capacity (%d)",
			c.PrimariesPerEvent, c.InitializerCapacity))
	}
	if !(c.Primary.Energy > 0) {
		problems = append(problems, "primary.energy must be positive")
	}
	d := c.Primary.Direction
	if d[0]*d[0]+d[1]*d[1]+d[2]*d[2] == 0 {
		problems = append(problems, "primary.direction must be nonzero")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

// Validate re-checks a configuration built in code.
func (c *Config) Validate() error { return c.validate() }

// Mem returns the parsed memory space.
func (c *Config) Mem() domain.MemSpace {
	m, _ := domain.ParseMemSpace(c.MemSpace)
	return m
}

// ResolveProblemPath interprets a relative problem path against the
// directory of the config file.
func (c *Config) ResolveProblemPath(configPath string) string {
	if c.ProblemPath == "" || filepath.IsAbs(c.ProblemPath) || configPath == "" {
		return c.ProblemPath
	}
	return filepath.Join(filepath.Dir(configPath), c.ProblemPath)
}

// Discover resolves the config path: an explicit path, then the
// CELER_CONFIG environment variable, then config.json next to the
// executable, then config.json in the working directory. It returns an
// empty string if none exists.
func Discover(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}
