package controller

import (
	"io"

	"g2go/core"
)

// Link is the command channel.
type Link interface {
	io.Writer
	Connected() bool
	// ReadLine appends bytes to buf[*n:]. It returns nil when a complete
	// line is in buf[:*n], iox.ErrWouldBlock while the line is incomplete,
	// and link.ErrLineOverflow when the line was too long and discarded.
	ReadLine(buf []byte, n *int) error
}

// Interpreter executes one line of text, JSON, or G-code.
type Interpreter interface {
	Interpret(line string) core.Status
}

// HelpFacility writes help text.
type HelpFacility interface {
	Help(topic string)
}

// Responder echoes text-mode results.
type Responder interface {
	TextResponse(status core.Status, line string)
}

// Machine is the part of the canonical machine the loop consults directly.
type Machine interface {
	InAlarm() bool
	AvailablePlannerSlots() int
	RequestQueueFlush()
}

// Reporter announces a new connection.
type Reporter interface {
	SystemReady()
}

// SubsystemTasks are the continuation callbacks owned by other subsystems.
// A nil entry behaves as a task that always returns StatusNoOp.
type SubsystemTasks struct {
	HardReset          func() core.Status
	PollSwitches       func() core.Status
	LimitSwitch        func() core.Status
	FeedholdSequencing func() core.Status
	PlanHold           func() core.Status
	MotorPower         func() core.Status
	StatusReport       func() core.Status
	QueueReport        func() core.Status
	Arc                func() core.Status
	Homing             func() core.Status
}

// Deps wires the controller to its collaborators.
type Deps struct {
	Link      Link
	Machine   Machine
	Reporter  Reporter
	Text      Interpreter
	JSON      Interpreter
	Gcode     Interpreter
	Help      HelpFacility
	Responder Responder
	Clock     core.Clock
	Indicator core.Indicator
	Tasks     SubsystemTasks

	// Service runs before every turn with the current tick. It stands in for
	// interrupt-level work such as move completion.
	Service func(now core.Tick)
}
