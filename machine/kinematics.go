package machine

import (
	"fmt"

	"g2go/config"
)

// Kinematics validates positions against the machine envelope
type Kinematics interface {
	// CheckLimits validates that a position is within configured limits
	CheckLimits(pos Position) error
}

// Cartesian implements basic Cartesian kinematics (XYZ 1:1 mapping)
type Cartesian struct {
	axes map[string]config.AxisConfig
}

// NewCartesian creates a new Cartesian kinematics instance
func NewCartesian(cfg *config.MachineConfig) (*Cartesian, error) {
	for _, name := range config.AxisNames {
		if _, ok := cfg.Axes[name]; !ok {
			return nil, fmt.Errorf("%s axis not configured", name)
		}
	}
	return &Cartesian{axes: cfg.Axes}, nil
}

// CheckLimits validates that a position is within configured limits
func (k *Cartesian) CheckLimits(pos Position) error {
	for _, name := range config.AxisNames {
		axis := k.axes[name]
		v := pos.Axis(name)
		if v < axis.TravelMin || v > axis.TravelMax {
			return fmt.Errorf("%s position %.3f out of limits [%.3f, %.3f]",
				name, v, axis.TravelMin, axis.TravelMax)
		}
	}
	return nil
}
