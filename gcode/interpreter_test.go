package gcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2go/config"
	"g2go/core"
	"g2go/machine"
)

type queued struct {
	end  machine.Position
	feed float64
}

type fakeMachine struct {
	pos     machine.Position
	moves   []queued
	arcs    int
	dwell   time.Duration
	homed   []string
	homing  bool
	stopped bool
	ended   bool
	status  core.Status
}

func (f *fakeMachine) Queue(end machine.Position, feed float64) core.Status {
	if f.status != core.StatusDone {
		return f.status
	}
	f.moves = append(f.moves, queued{end, feed})
	f.pos = end
	return core.StatusDone
}

func (f *fakeMachine) StartArc(end machine.Position, i, j float64, cw bool, feed float64) core.Status {
	f.arcs++
	f.pos = end
	return core.StatusDone
}

func (f *fakeMachine) Dwell(d time.Duration) core.Status { f.dwell = d; return core.StatusDone }

func (f *fakeMachine) SetPosition(pos machine.Position) core.Status {
	f.pos = pos
	return core.StatusDone
}

func (f *fakeMachine) StartHoming(axes []string) core.Status {
	f.homing = true
	f.homed = axes
	return core.StatusDone
}

func (f *fakeMachine) Target() machine.Position { return f.pos }
func (f *fakeMachine) ProgramStop()             { f.stopped = true }
func (f *fakeMachine) ProgramEnd()              { f.ended = true }

func newInterp() (*Interpreter, *fakeMachine) {
	m := &fakeMachine{}
	return NewInterpreter(&config.Default().Machine, m), m
}

func TestLinearMoves(t *testing.T) {
	interp, m := newInterp()

	require.Equal(t, core.StatusDone, interp.Interpret("G1 X10 Y5 F600"))
	require.Len(t, m.moves, 1)
	assert.Equal(t, machine.Position{X: 10, Y: 5}, m.moves[0].end)
	assert.Equal(t, 600.0, m.moves[0].feed)

	// modal motion and feed
	require.Equal(t, core.StatusDone, interp.Interpret("X20"))
	require.Len(t, m.moves, 2)
	assert.Equal(t, machine.Position{X: 20, Y: 5}, m.moves[1].end)
	assert.Equal(t, 600.0, m.moves[1].feed)

	// traverse runs at the fastest axis rate
	require.Equal(t, core.StatusDone, interp.Interpret("G0 Z1"))
	assert.Equal(t, 16000.0, m.moves[2].feed)
}

func TestRelativeAndInches(t *testing.T) {
	interp, m := newInterp()
	m.pos = machine.Position{X: 10, Y: 10}

	require.Equal(t, core.StatusDone, interp.Interpret("G91"))
	require.Equal(t, core.StatusDone, interp.Interpret("G1 X5 Y-2"))
	assert.Equal(t, machine.Position{X: 15, Y: 8}, m.moves[0].end)

	require.Equal(t, core.StatusDone, interp.Interpret("G90 G20"))
	assert.True(t, interp.State().AbsoluteMode)
	assert.False(t, interp.State().Inches, "second command word is ignored")

	require.Equal(t, core.StatusDone, interp.Interpret("G20"))
	require.Equal(t, core.StatusDone, interp.Interpret("G90"))
	require.Equal(t, core.StatusDone, interp.Interpret("G1 X1 F10"))
	assert.InDelta(t, 25.4, m.moves[1].end.X, 1e-9)
	assert.InDelta(t, 254, m.moves[1].feed, 1e-9)
}

func TestOtherCommands(t *testing.T) {
	interp, m := newInterp()

	assert.Equal(t, core.StatusDone, interp.Interpret("G4 P1.5"))
	assert.Equal(t, 1500*time.Millisecond, m.dwell)

	assert.Equal(t, core.StatusDone, interp.Interpret("G2 X10 Y10 I5 J0"))
	assert.Equal(t, 1, m.arcs)
	assert.Equal(t, core.StatusArcSpecification, interp.Interpret("G3 X0 Y0"))

	assert.Equal(t, core.StatusDone, interp.Interpret("G28.2 X0 Z0"))
	assert.Equal(t, []string{"x", "z"}, m.homed)

	assert.Equal(t, core.StatusDone, interp.Interpret("G92 X1"))
	assert.Equal(t, 1.0, m.pos.X)

	assert.Equal(t, core.StatusDone, interp.Interpret("M0"))
	assert.True(t, m.stopped)
	assert.Equal(t, core.StatusDone, interp.Interpret("M30"))
	assert.True(t, m.ended)
}

func TestInterpretErrors(t *testing.T) {
	interp, m := newInterp()

	tests := []struct {
		line string
		want core.Status
	}{
		{"G1 X", core.StatusBadNumberFormat},
		{"G1 X1 $", core.StatusUnrecognizedCommand},
		{"G38.2 X1", core.StatusUnsupportedGcode},
		{"G17.1", core.StatusUnsupportedGcode},
		{"G55", core.StatusUnsupportedGcode},
		{"M104 S200", core.StatusUnsupportedMcode},
		{"G1 X1 F0", core.StatusInvalidValue},
		{"G4 P-1", core.StatusInvalidValue},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, interp.Interpret(tt.line), tt.line)
	}

	m.status = core.StatusSoftLimitExceeded
	assert.Equal(t, core.StatusSoftLimitExceeded, interp.Interpret("G1 X500"))
}

func TestBlankLines(t *testing.T) {
	interp, m := newInterp()
	assert.Equal(t, core.StatusDone, interp.Interpret(""))
	assert.Equal(t, core.StatusDone, interp.Interpret("(comment)"))
	assert.Equal(t, core.StatusDone, interp.Interpret("F1000"))
	assert.Equal(t, 1000.0, interp.State().FeedRate)
	assert.Empty(t, m.moves, "no motion mode yet")
}
