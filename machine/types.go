package machine

import "g2go/core"

// Position represents a position in machine coordinates (mm)
type Position struct {
	X float64
	Y float64
	Z float64
}

// Axis returns the coordinate for the named axis.
func (p Position) Axis(name string) float64 {
	switch name {
	case "x":
		return p.X
	case "y":
		return p.Y
	case "z":
		return p.Z
	}
	return 0
}

// WithAxis returns a copy of p with the named axis set to v.
func (p Position) WithAxis(name string, v float64) Position {
	switch name {
	case "x":
		p.X = v
	case "y":
		p.Y = v
	case "z":
		p.Z = v
	}
	return p
}

// Move represents a planned move with timing information
type Move struct {
	Start    Position
	End      Position
	Velocity float64 // Requested feed rate (mm/min)
	Accel    float64 // Acceleration (mm/s^2)
	Distance float64 // Total distance (mm)
	Duration core.Tick

	// Trapezoidal profile parameters
	AccelTicks  core.Tick
	CruiseTicks core.Tick
	DecelTicks  core.Tick
	CruiseVel   float64 // Cruise velocity reached (mm/s)

	// Dwell moves hold position for Duration.
	Dwell bool
}

// State is the machine's overall state.
type State uint8

const (
	StateReady State = iota
	StateAlarm
	StateProgramStop
	StateProgramEnd
	StateCycle
)

var stateNames = [...]string{"ready", "alarm", "stop", "end", "run"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MotionState tracks whether the planner is moving.
type MotionState uint8

const (
	MotionStop MotionState = iota
	MotionRun
	MotionHold
)

func (m MotionState) String() string {
	switch m {
	case MotionRun:
		return "run"
	case MotionHold:
		return "hold"
	}
	return "stop"
}

// HoldState sequences a feedhold.
type HoldState uint8

const (
	HoldOff HoldState = iota
	HoldSync
	HoldDecel
	HoldHold
	HoldEndHold
)

func (h HoldState) String() string {
	switch h {
	case HoldSync:
		return "sync"
	case HoldDecel:
		return "decel"
	case HoldHold:
		return "hold"
	case HoldEndHold:
		return "end_hold"
	}
	return "off"
}

// Snapshot is a point-in-time copy of the machine state used by reports.
type Snapshot struct {
	State      State
	Motion     MotionState
	Hold       HoldState
	Position   Position
	Velocity   float64 // Velocity of the running move (mm/min)
	Available  int
	AlarmCode  core.Status
	Homed      map[string]bool
	MotorsOn   bool
	ArcActive  bool
	HomeActive bool
}
