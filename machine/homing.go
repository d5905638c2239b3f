package machine

import (
	"g2go/config"
	"g2go/core"
)

type homingCycle struct {
	axes      []string
	idx       int
	searching bool
}

// StartHoming begins a homing cycle over axes (all axes when empty). Each
// axis searches toward its minimum until the limit switch closes, then is
// set to travel_min. Starting a cycle clears an alarm.
func (m *Machine) StartHoming(axes []string) core.Status {
	if len(axes) == 0 {
		axes = config.AxisNames
	}
	m.ClearAlarm()
	m.homing = &homingCycle{axes: append([]string(nil), axes...)}
	for _, a := range axes {
		m.homed[a] = false
	}
	m.log.Info().Strs("axes", axes).Msg("homing started")
	return core.StatusDone
}

// HomingCallback advances the homing cycle.
func (m *Machine) HomingCallback() core.Status {
	h := m.homing
	if h == nil {
		return core.StatusNoOp
	}
	if h.idx >= len(h.axes) {
		m.homing = nil
		m.log.Info().Msg("homing complete")
		return core.StatusDone
	}

	axis := h.axes[h.idx]
	ac := m.cfg.Machine.Axes[axis]

	if !h.searching {
		if !m.planner.Idle() {
			return core.StatusPending
		}
		if !m.hasSwitch(axis) || m.switchTripped(axis) {
			m.finishAxis(axis, ac)
			return core.StatusPending
		}
		span := ac.TravelMax - ac.TravelMin
		target := m.planner.Target().WithAxis(axis, ac.TravelMin-span-1)
		if st := m.queue(target, ac.SearchVelocity); st != core.StatusDone {
			m.homing = nil
			return st
		}
		h.searching = true
		return core.StatusPending
	}

	if m.switchTripped(axis) {
		m.planner.Flush()
		m.finishAxis(axis, ac)
		return core.StatusPending
	}
	if m.planner.Idle() {
		m.log.Error().Str("axis", axis).Msg("homing switch not found")
		m.Alarm(core.StatusHomingFailed)
		return core.StatusHomingFailed
	}
	return core.StatusPending
}

func (m *Machine) finishAxis(axis string, ac config.AxisConfig) {
	m.planner.SetPosition(m.planner.Position().WithAxis(axis, ac.TravelMin))
	m.homed[axis] = true
	m.homing.idx++
	m.homing.searching = false
}
