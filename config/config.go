package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete set of controller tunables.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Machine    MachineConfig    `yaml:"machine"`
	Reports    ReportConfig     `yaml:"reports"`
	Comm       CommConfig       `yaml:"comm"`
	Log        LogConfig        `yaml:"log"`
}

// ControllerConfig holds the run-loop tunables.
type ControllerConfig struct {
	// PlannerHeadroom is the minimum number of free planner buffers
	// required before a new command line is read.
	PlannerHeadroom int           `yaml:"planner_headroom"`
	LEDNormalPeriod time.Duration `yaml:"led_normal_period"`
	LEDAlarmPeriod  time.Duration `yaml:"led_alarm_period"`
	// TurnYield is slept after every complete turn on the host build.
	TurnYield time.Duration `yaml:"turn_yield"`
}

// AxisConfig represents configuration for a single axis
type AxisConfig struct {
	TravelMin      float64 `yaml:"travel_min"`      // Minimum position (mm)
	TravelMax      float64 `yaml:"travel_max"`      // Maximum position (mm)
	VelocityMax    float64 `yaml:"velocity_max"`    // Maximum velocity (mm/min)
	SearchVelocity float64 `yaml:"search_velocity"` // Homing velocity (mm/min)
	LimitPin       string  `yaml:"limit_pin"`       // GPIO pin for the min limit switch
}

// MachineConfig represents the motion subsystem configuration
type MachineConfig struct {
	PlannerBuffers   int                   `yaml:"planner_buffers"`
	MotorIdleTimeout time.Duration         `yaml:"motor_idle_timeout"`
	DefaultVelocity  float64               `yaml:"default_velocity"`   // Default feedrate (mm/min)
	DefaultAccel     float64               `yaml:"default_accel"`      // Acceleration (mm/s^2)
	JunctionAccel    float64               `yaml:"junction_accel"`     // Cornering acceleration (mm/s^2)
	ArcSegmentLength float64               `yaml:"arc_segment_length"` // Chord length for arcs (mm)
	SwitchLockout    time.Duration         `yaml:"switch_lockout"`
	IndicatorPin     string                `yaml:"indicator_pin"`
	Axes             map[string]AxisConfig `yaml:"axes"`
}

// ReportConfig controls the asynchronous reports.
type ReportConfig struct {
	// StatusInterval is the minimum time between automatic status reports.
	StatusInterval  time.Duration `yaml:"status_interval"`
	// StatusVerbosity is 0 (automatic reports off), 1 (changed fields), or
	// 2 (all fields).
	StatusVerbosity int           `yaml:"status_verbosity"`
	QueueReports    bool          `yaml:"queue_reports"`
}

// CommConfig selects the connection.
type CommConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
	Listen string `yaml:"listen"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AxisNames lists the linear axes in report order.
var AxisNames = []string{"x", "y", "z"}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML (or JSON) configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(cfg *Config) {
	c := &cfg.Controller
	if c.PlannerHeadroom == 0 {
		c.PlannerHeadroom = 4
	}
	if c.LEDNormalPeriod == 0 {
		c.LEDNormalPeriod = time.Second
	}
	if c.LEDAlarmPeriod == 0 {
		c.LEDAlarmPeriod = 100 * time.Millisecond
	}
	if c.TurnYield == 0 {
		c.TurnYield = 100 * time.Microsecond
	}

	m := &cfg.Machine
	if m.PlannerBuffers == 0 {
		m.PlannerBuffers = 28
	}
	if m.MotorIdleTimeout == 0 {
		m.MotorIdleTimeout = 2 * time.Second
	}
	if m.DefaultVelocity == 0 {
		m.DefaultVelocity = 1200.0
	}
	if m.DefaultAccel == 0 {
		m.DefaultAccel = 500.0
	}
	if m.JunctionAccel == 0 {
		m.JunctionAccel = 100000.0
	}
	if m.ArcSegmentLength == 0 {
		m.ArcSegmentLength = 0.1
	}
	if m.SwitchLockout == 0 {
		m.SwitchLockout = 50 * time.Millisecond
	}
	if m.IndicatorPin == "" {
		m.IndicatorPin = "gpio25"
	}
	if m.Axes == nil {
		m.Axes = map[string]AxisConfig{}
	}
	limitPins := map[string]string{"x": "gpio20", "y": "gpio21", "z": "gpio22"}
	for _, name := range AxisNames {
		axis, ok := m.Axes[name]
		if !ok {
			axis = AxisConfig{TravelMax: 220.0}
			if name == "z" {
				axis.TravelMax = 100.0
			}
		}
		if axis.VelocityMax == 0 {
			axis.VelocityMax = 16000.0
			if name == "z" {
				axis.VelocityMax = 1200.0
			}
		}
		if axis.SearchVelocity == 0 {
			axis.SearchVelocity = axis.VelocityMax / 4
		}
		if axis.LimitPin == "" {
			axis.LimitPin = limitPins[name]
		}
		m.Axes[name] = axis
	}

	if cfg.Reports.StatusInterval == 0 {
		cfg.Reports.StatusInterval = 250 * time.Millisecond
	}
	if cfg.Comm.Baud == 0 {
		cfg.Comm.Baud = 115200
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks the cross-field constraints.
func (c *Config) Validate() error {
	if c.Controller.PlannerHeadroom < 1 {
		return errors.New("controller.planner_headroom must be at least 1")
	}
	if c.Machine.PlannerBuffers <= c.Controller.PlannerHeadroom {
		return fmt.Errorf("machine.planner_buffers (%d) must exceed controller.planner_headroom (%d)",
			c.Machine.PlannerBuffers, c.Controller.PlannerHeadroom)
	}
	for name, axis := range c.Machine.Axes {
		if axis.TravelMax < axis.TravelMin {
			return fmt.Errorf("axis %s: travel_max below travel_min", name)
		}
		if axis.VelocityMax <= 0 {
			return fmt.Errorf("axis %s: velocity_max must be positive", name)
		}
	}
	if c.Machine.ArcSegmentLength <= 0 {
		return errors.New("machine.arc_segment_length must be positive")
	}
	if c.Reports.StatusInterval <= 0 {
		return errors.New("reports.status_interval must be positive")
	}
	return nil
}
