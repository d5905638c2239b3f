// Package controller runs the main loop: a fixed-priority list of
// continuation tasks executed in turns, the connection session, the command
// router, the heartbeats, and the planner flow-control gate.
package controller

import (
	"context"
	"errors"
	"time"

	"code.hybscloud.com/iox"
	"github.com/rs/zerolog"

	"g2go/config"
	"g2go/core"
)

// Controller owns the loop state and dispatcher.
type Controller struct {
	state *Context
	deps  Deps
	cfg   config.ControllerConfig
	trace *core.TraceRing
	disp  *core.Dispatcher[*Controller]
	log   zerolog.Logger
}

// TaskOrder is the fixed task priority, highest first.
var TaskOrder = []core.Task[*Controller]{
	{Name: "hard_reset", Run: (*Controller).hardReset},
	{Name: "alarm_idler", Run: (*Controller).alarmIdler},
	{Name: "poll_switches", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.PollSwitches) }},
	{Name: "limit_switch", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.LimitSwitch) }},
	{Name: "feedhold_sequencing", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.FeedholdSequencing) }},
	{Name: "plan_hold", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.PlanHold) }},
	{Name: "motor_power", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.MotorPower) }},
	{Name: "status_report", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.StatusReport) }},
	{Name: "queue_report", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.QueueReport) }},
	{Name: "arc", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.Arc) }},
	{Name: "homing", Run: func(c *Controller) core.Status { return run(c.deps.Tasks.Homing) }},
	{Name: "sync_to_planner", Run: (*Controller).syncToPlanner},
	{Name: "command_dispatch", Run: (*Controller).commandDispatch},
	{Name: "normal_idler", Run: (*Controller).normalIdler},
}

func (c *Controller) hardReset() core.Status {
	st := run(c.deps.Tasks.HardReset)
	if st == core.StatusDone {
		c.trace.Record(core.EvtReset, "hard_reset", c.deps.Clock.Now(), 0)
	}
	return st
}

func run(task func() core.Status) core.Status {
	if task == nil {
		return core.StatusNoOp
	}
	return task()
}

// New creates a controller in the not-connected session and text mode.
func New(cfg config.ControllerConfig, deps Deps) (*Controller, error) {
	switch {
	case deps.Link == nil:
		return nil, errors.New("controller: link is required")
	case deps.Machine == nil:
		return nil, errors.New("controller: machine is required")
	case deps.Reporter == nil:
		return nil, errors.New("controller: reporter is required")
	case deps.Text == nil || deps.JSON == nil || deps.Gcode == nil:
		return nil, errors.New("controller: text, json, and gcode interpreters are required")
	case deps.Help == nil || deps.Responder == nil:
		return nil, errors.New("controller: help and responder are required")
	case deps.Clock == nil || deps.Indicator == nil:
		return nil, errors.New("controller: clock and indicator are required")
	}
	c := &Controller{
		state: newContext(),
		deps:  deps,
		cfg:   cfg,
		trace: &core.TraceRing{},
		log:   core.Component("controller"),
	}
	c.disp = core.NewDispatcher(deps.Clock, c.trace, TaskOrder)
	return c, nil
}

// Context returns the loop state.
func (c *Controller) Context() *Context { return c.state }

// Mode returns the active protocol mode.
func (c *Controller) Mode() core.ProtocolMode { return c.state.Mode }

// Trace returns the event trace.
func (c *Controller) Trace() *core.TraceRing { return c.trace }

// RegisterDiagnostics adds the read-only build tokens to settings.
func (c *Controller) RegisterDiagnostics(s *config.Settings) {
	s.AddReadOnly("fb", func() float64 { return c.state.Integrity().FirmwareBuild })
	s.AddReadOnly("fv", func() float64 { return c.state.Integrity().FirmwareVersion })
	s.AddReadOnly("hp", func() float64 { return float64(c.state.Integrity().HardwarePlatform) })
}

// Turn runs the service hook and then one dispatcher turn.
func (c *Controller) Turn() core.TurnResult {
	if c.deps.Service != nil {
		c.deps.Service(c.deps.Clock.Now())
	}
	return c.disp.Turn(c)
}

// Run executes turns until ctx is cancelled. A halted turn backs off; a
// complete turn yields for the configured interval.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info().Strs("tasks", c.disp.Names()).Msg("controller running")
	var bo iox.Backoff
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("controller stopped")
			return ctx.Err()
		default:
		}
		if c.Turn().Halted() {
			bo.Wait()
			continue
		}
		bo.Reset()
		if c.cfg.TurnYield > 0 {
			time.Sleep(c.cfg.TurnYield)
		}
	}
}

func (c *Controller) setSession(s Session) {
	if c.state.Session == s {
		return
	}
	c.log.Debug().Stringer("from", c.state.Session).Stringer("to", s).Msg("session")
	c.trace.Record(core.EvtSessionChange, s.String(), c.deps.Clock.Now(), uint32(s))
	c.state.Session = s
}

func (c *Controller) setMode(m core.ProtocolMode) {
	if c.state.Mode == m {
		return
	}
	c.log.Debug().Stringer("mode", m).Msg("protocol mode")
	c.trace.Record(core.EvtModeChange, m.String(), c.deps.Clock.Now(), uint32(m))
	c.state.Mode = m
}
