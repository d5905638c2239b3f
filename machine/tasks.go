package machine

import "g2go/core"

// HardResetHandler services a ctrl-x reset request: clears any alarm,
// discards planned motion, and cancels arcs and homing.
func (m *Machine) HardResetHandler() core.Status {
	if !m.resetReq.pending() {
		return core.StatusNoOp
	}
	m.resetReq.ack()
	m.planner.Flush()
	m.planner.held = false
	m.arc = nil
	m.homing = nil
	m.hold = HoldOff
	m.motion = MotionStop
	m.state = StateReady
	m.alarmCode = core.StatusDone
	m.limitTripped = ""
	m.holdReq.ack()
	m.startReq.ack()
	m.flushReq.ack()
	m.log.Warn().Msg("hard reset")
	return core.StatusDone
}

// LimitSwitchHandler latches an alarm when a limit switch trips outside a
// homing cycle.
func (m *Machine) LimitSwitchHandler() core.Status {
	if m.InAlarm() || m.limitTripped == "" {
		return core.StatusNoOp
	}
	m.log.Warn().Str("axis", m.limitTripped).Msg("limit switch hit")
	m.Alarm(core.StatusLimitSwitchHit)
	return core.StatusDone
}

// FeedholdSequencing applies pending feedhold, queue flush, and cycle start
// requests. A request that cannot be honoured yet stays pending.
func (m *Machine) FeedholdSequencing() core.Status {
	acted := false

	if m.holdReq.pending() {
		m.holdReq.ack()
		if m.hold == HoldOff && m.planner.Running() != nil {
			m.hold = HoldSync
			m.planner.Hold()
			acted = true
		}
	}

	if m.flushReq.pending() && (m.hold == HoldHold || m.planner.Running() == nil) {
		m.flushReq.ack()
		m.planner.Flush()
		m.arc = nil
		acted = true
	}

	if m.startReq.pending() && m.hold != HoldSync && m.hold != HoldDecel {
		m.startReq.ack()
		if m.hold == HoldHold {
			m.hold = HoldEndHold
			acted = true
		}
	}

	if m.hold == HoldEndHold {
		m.hold = HoldOff
		m.motion = MotionStop
		m.planner.Resume()
		acted = true
	}

	if acted {
		return core.StatusDone
	}
	return core.StatusNoOp
}

// PlanHold runs the feedhold deceleration. The running move is allowed to
// finish; the hold is reached once nothing is executing.
func (m *Machine) PlanHold() core.Status {
	switch m.hold {
	case HoldSync:
		m.hold = HoldDecel
		return core.StatusDone
	case HoldDecel:
		if m.planner.Running() != nil {
			return core.StatusNoOp
		}
		m.hold = HoldHold
		m.motion = MotionHold
		m.log.Info().Msg("feedhold reached")
		return core.StatusDone
	}
	return core.StatusNoOp
}

// MotorPower de-energizes the motors once the planner has been idle for the
// configured timeout.
func (m *Machine) MotorPower() core.Status {
	if !m.motorsOn {
		return core.StatusNoOp
	}
	now := m.clock.Now()
	if !m.planner.Idle() {
		m.idleSince = now
		return core.StatusNoOp
	}
	if now-m.idleSince < core.TicksFromDuration(m.cfg.Machine.MotorIdleTimeout) {
		return core.StatusNoOp
	}
	m.motorsOn = false
	m.log.Debug().Msg("motors de-energized")
	return core.StatusDone
}
