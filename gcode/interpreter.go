package gcode

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"g2go/config"
	"g2go/core"
	"g2go/machine"
)

// Machine is the motion interface the interpreter drives.
type Machine interface {
	Queue(end machine.Position, feed float64) core.Status
	StartArc(end machine.Position, i, j float64, clockwise bool, feed float64) core.Status
	Dwell(d time.Duration) core.Status
	SetPosition(pos machine.Position) core.Status
	StartHoming(axes []string) core.Status
	Target() machine.Position
	ProgramStop()
	ProgramEnd()
}

const mmPerInch = 25.4

// State is the interpreter's modal state.
type State struct {
	AbsoluteMode bool    // G90 vs G91
	Inches       bool    // G20 vs G21
	FeedRate     float64 // mm/min
	Motion       int     // last motion mode (0 or 1)
}

// Interpreter executes G-code commands
type Interpreter struct {
	parser  *Parser
	cfg     *config.MachineConfig
	machine Machine
	state   State
	log     zerolog.Logger
}

// NewInterpreter creates a new G-code interpreter
func NewInterpreter(cfg *config.MachineConfig, m Machine) *Interpreter {
	interp := &Interpreter{
		parser:  NewParser(),
		cfg:     cfg,
		machine: m,
		log:     core.Component("gcode"),
	}
	interp.Reset()
	return interp
}

// Reset restores the power-on modal state.
func (interp *Interpreter) Reset() {
	interp.state = State{
		AbsoluteMode: true,
		FeedRate:     interp.cfg.DefaultVelocity,
		Motion:       -1,
	}
}

// State returns the modal state.
func (interp *Interpreter) State() State {
	return interp.state
}

// Interpret parses and executes one line.
func (interp *Interpreter) Interpret(line string) core.Status {
	cmd, err := interp.parser.ParseLine(line)
	if err != nil {
		interp.log.Debug().Err(err).Str("line", line).Msg("parse failed")
	}
	switch {
	case errors.Is(err, ErrBadNumber):
		return core.StatusBadNumberFormat
	case err != nil:
		return core.StatusUnrecognizedCommand
	}
	return interp.Execute(cmd)
}

// Execute executes a parsed G-code command
func (interp *Interpreter) Execute(cmd *Command) core.Status {
	if cmd == nil {
		return core.StatusDone
	}
	if f, ok := cmd.Parameters['F']; ok {
		if f <= 0 {
			return core.StatusInvalidValue
		}
		interp.state.FeedRate = interp.toMM(f)
	}

	switch cmd.Type {
	case 'G':
		return interp.executeG(cmd)
	case 'M':
		return interp.executeM(cmd)
	case 'T':
		return core.StatusDone
	case 0:
		if interp.state.Motion >= 0 && hasAxisWords(cmd) {
			return interp.doMove(cmd, interp.state.Motion)
		}
		return core.StatusDone
	}
	return core.StatusUnrecognizedCommand
}

// executeG handles G-codes
func (interp *Interpreter) executeG(cmd *Command) core.Status {
	if cmd.Sub >= 0 && !(cmd.Number == 28 && cmd.Sub == 2) {
		return core.StatusUnsupportedGcode
	}
	switch cmd.Number {
	case 0, 1: // Linear move
		interp.state.Motion = cmd.Number
		return interp.doMove(cmd, cmd.Number)
	case 2, 3: // Arc
		return interp.doArc(cmd, cmd.Number == 2)
	case 4: // Dwell, P in seconds
		p := cmd.GetParameter('P', 0)
		if p < 0 {
			return core.StatusInvalidValue
		}
		return interp.machine.Dwell(time.Duration(p * float64(time.Second)))
	case 20:
		interp.state.Inches = true
	case 21:
		interp.state.Inches = false
	case 28: // G28 and G28.2 - Home
		return interp.doHome(cmd)
	case 90: // Absolute positioning
		interp.state.AbsoluteMode = true
	case 91: // Relative positioning
		interp.state.AbsoluteMode = false
	case 92: // Set position
		return interp.doSetPosition(cmd)
	default:
		return core.StatusUnsupportedGcode
	}
	return core.StatusDone
}

// executeM handles M-codes
func (interp *Interpreter) executeM(cmd *Command) core.Status {
	switch cmd.Number {
	case 0, 1: // Program pause
		interp.machine.ProgramStop()
	case 2, 30: // Program end
		interp.machine.ProgramEnd()
		interp.state.AbsoluteMode = true
		interp.state.Inches = false
		interp.state.Motion = -1
	default:
		return core.StatusUnsupportedMcode
	}
	return core.StatusDone
}

// target resolves the X/Y/Z words of cmd against the current position.
func (interp *Interpreter) target(cmd *Command) machine.Position {
	pos := interp.machine.Target()
	for _, axis := range config.AxisNames {
		v, ok := cmd.Parameters[toUpper(axis[0])]
		if !ok {
			continue
		}
		v = interp.toMM(v)
		if !interp.state.AbsoluteMode {
			v += pos.Axis(axis)
		}
		pos = pos.WithAxis(axis, v)
	}
	return pos
}

// doMove executes a linear move (G0/G1)
func (interp *Interpreter) doMove(cmd *Command, motion int) core.Status {
	if !hasAxisWords(cmd) {
		return core.StatusDone
	}
	feed := interp.state.FeedRate
	if motion == 0 {
		feed = interp.traverseRate()
	}
	return interp.machine.Queue(interp.target(cmd), feed)
}

func (interp *Interpreter) doArc(cmd *Command, clockwise bool) core.Status {
	if !cmd.HasParameter('I') && !cmd.HasParameter('J') {
		return core.StatusArcSpecification
	}
	i := interp.toMM(cmd.GetParameter('I', 0))
	j := interp.toMM(cmd.GetParameter('J', 0))
	return interp.machine.StartArc(interp.target(cmd), i, j, clockwise, interp.state.FeedRate)
}

func (interp *Interpreter) doHome(cmd *Command) core.Status {
	var axes []string
	for _, axis := range config.AxisNames {
		if cmd.HasParameter(toUpper(axis[0])) {
			axes = append(axes, axis)
		}
	}
	return interp.machine.StartHoming(axes)
}

func (interp *Interpreter) doSetPosition(cmd *Command) core.Status {
	pos := interp.machine.Target()
	for _, axis := range config.AxisNames {
		if v, ok := cmd.Parameters[toUpper(axis[0])]; ok {
			pos = pos.WithAxis(axis, interp.toMM(v))
		}
	}
	return interp.machine.SetPosition(pos)
}

func (interp *Interpreter) traverseRate() float64 {
	fastest := 0.0
	for _, axis := range interp.cfg.Axes {
		if axis.VelocityMax > fastest {
			fastest = axis.VelocityMax
		}
	}
	return fastest
}

func (interp *Interpreter) toMM(v float64) float64 {
	if interp.state.Inches {
		return v * mmPerInch
	}
	return v
}

func hasAxisWords(cmd *Command) bool {
	return cmd.HasParameter('X') || cmd.HasParameter('Y') || cmd.HasParameter('Z')
}
