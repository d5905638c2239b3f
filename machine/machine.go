// Package machine is the canonical machine: machine state, the motion
// planner, feedhold sequencing, limit switches, arcs, and homing. Its task
// callbacks are run by the controller's dispatcher; its out-of-band
// requests may be raised from any goroutine.
package machine

import (
	"fmt"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/rs/zerolog"

	"g2go/config"
	"g2go/core"
)

// request is a latch raised from any goroutine and consumed by a task.
type request struct {
	raised atomix.Uint32
	seen   uint32
}

func (r *request) raise() { r.raised.Add(1) }

func (r *request) pending() bool { return r.raised.Load() != r.seen }

func (r *request) ack() { r.seen = r.raised.Load() }

// Machine is the canonical machine. Apart from the Request* methods it is
// owned by the controller goroutine.
type Machine struct {
	cfg     *config.Config
	clock   core.Clock
	timers  core.TimerQueue
	planner *Planner
	kin     Kinematics
	log     zerolog.Logger

	state     State
	motion    MotionState
	hold      HoldState
	alarmCode core.Status

	resetReq request
	holdReq  request
	startReq request
	flushReq request

	switches     []*limitSwitch
	limitTripped string

	arc    *arcGen
	homing *homingCycle
	homed  map[string]bool

	motorsOn  bool
	idleSince core.Tick
}

// New creates a machine. Limit switch pins are configured as pulled-up
// inputs on gpio.
func New(cfg *config.Config, clock core.Clock, gpio core.GPIODriver) (*Machine, error) {
	kin, err := NewCartesian(&cfg.Machine)
	if err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:   cfg,
		clock: clock,
		kin:   kin,
		log:   core.Component("machine"),
		homed: make(map[string]bool),
	}
	m.planner = NewPlanner(&cfg.Machine, &m.timers, clock)
	m.planner.onComplete = func(*Move) { m.idleSince = m.clock.Now() }
	for _, name := range config.AxisNames {
		sw, err := newLimitSwitch(name, cfg.Machine.Axes[name].LimitPin, gpio)
		if err != nil {
			return nil, fmt.Errorf("axis %s limit switch: %w", name, err)
		}
		if sw != nil {
			m.switches = append(m.switches, sw)
		}
	}
	return m, nil
}

// Service runs expired timers (move completions) and refreshes the motion
// state. Called once per loop pass before the dispatcher turn.
func (m *Machine) Service(now core.Tick) {
	m.timers.Dispatch(now)
	switch {
	case m.planner.Running() != nil:
		if m.hold == HoldOff {
			m.motion = MotionRun
		}
		if m.state == StateReady {
			m.state = StateCycle
		}
	case m.motion == MotionRun:
		m.motion = MotionStop
		if m.state == StateCycle && m.planner.Idle() {
			m.state = StateReady
		}
	}
}

// Planner exposes the motion planner.
func (m *Machine) Planner() *Planner { return m.planner }

// RequestReset asks for a hard reset (ctrl-x).
func (m *Machine) RequestReset() { m.resetReq.raise() }

// RequestFeedhold asks for a feedhold ('!').
func (m *Machine) RequestFeedhold() { m.holdReq.raise() }

// RequestCycleStart asks to resume from a feedhold ('~').
func (m *Machine) RequestCycleStart() { m.startReq.raise() }

// RequestQueueFlush asks for the planner queue to be discarded ('%' and on
// connect).
func (m *Machine) RequestQueueFlush() { m.flushReq.raise() }

// InAlarm reports whether the machine is latched in alarm.
func (m *Machine) InAlarm() bool { return m.state == StateAlarm }

// State returns the machine state.
func (m *Machine) State() State { return m.state }

// AvailablePlannerSlots returns the number of free planner buffers.
func (m *Machine) AvailablePlannerSlots() int { return m.planner.Available() }

// Alarm latches the machine in alarm, stopping all motion.
func (m *Machine) Alarm(code core.Status) {
	if m.state == StateAlarm {
		return
	}
	m.planner.Flush()
	m.arc = nil
	m.homing = nil
	m.state = StateAlarm
	m.motion = MotionStop
	m.alarmCode = code
	m.log.Error().Str("reason", code.String()).Msg("machine alarm")
}

// ClearAlarm leaves the alarm state.
func (m *Machine) ClearAlarm() {
	if m.state != StateAlarm {
		return
	}
	m.state = StateReady
	m.alarmCode = core.StatusDone
	m.limitTripped = ""
	m.log.Info().Msg("alarm cleared")
}

// Snapshot returns the state used by status reports.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:      m.state,
		Motion:     m.motion,
		Hold:       m.hold,
		Position:   m.planner.Position(),
		Available:  m.planner.Available(),
		AlarmCode:  m.alarmCode,
		Homed:      make(map[string]bool, len(m.homed)),
		MotorsOn:   m.motorsOn,
		ArcActive:  m.arc != nil,
		HomeActive: m.homing != nil,
	}
	if mv := m.planner.Running(); mv != nil && !mv.Dwell {
		s.Velocity = mv.CruiseVel * 60
	}
	for k, v := range m.homed {
		s.Homed[k] = v
	}
	return s
}

// Target returns the commanded position at the end of the queue.
func (m *Machine) Target() Position { return m.planner.Target() }

// Queue validates and queues a straight feed or traverse.
func (m *Machine) Queue(end Position, feed float64) core.Status {
	if m.InAlarm() {
		return core.StatusMachineAlarmed
	}
	if err := m.kin.CheckLimits(end); err != nil {
		m.log.Warn().Err(err).Msg("soft limit")
		return core.StatusSoftLimitExceeded
	}
	return m.queue(end, feed)
}

func (m *Machine) queue(end Position, feed float64) core.Status {
	move := &Move{
		Start:    m.planner.Target(),
		End:      end,
		Velocity: feed,
		Accel:    m.cfg.Machine.DefaultAccel,
	}
	st := m.planner.Queue(move)
	if st == core.StatusDone {
		m.energize()
	}
	return st
}

// Dwell queues a pause.
func (m *Machine) Dwell(d time.Duration) core.Status {
	if m.InAlarm() {
		return core.StatusMachineAlarmed
	}
	t := core.TicksFromDuration(d)
	if t == 0 {
		t = 1
	}
	return m.planner.Queue(&Move{Dwell: true, Duration: t})
}

// SetPosition sets the current position without moving (G92).
func (m *Machine) SetPosition(pos Position) core.Status {
	if !m.planner.Idle() {
		return core.StatusPlannerFull
	}
	m.planner.SetPosition(pos)
	return core.StatusDone
}

// ProgramStop pauses at the end of the queued moves (M0/M1).
func (m *Machine) ProgramStop() {
	if m.state != StateAlarm {
		m.state = StateProgramStop
	}
}

// ProgramEnd ends the program (M2/M30).
func (m *Machine) ProgramEnd() {
	if m.state != StateAlarm {
		m.state = StateProgramEnd
	}
}

func (m *Machine) energize() {
	if m.state == StateProgramStop || m.state == StateProgramEnd {
		m.state = StateReady
	}
	if !m.motorsOn {
		m.motorsOn = true
		m.log.Debug().Msg("motors energized")
	}
	m.idleSince = m.clock.Now()
}
