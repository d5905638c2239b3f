package machine

import (
	"g2go/core"
)

// limitSwitch is an active-low switch on a pulled-up input.
type limitSwitch struct {
	axis     string
	pin      core.GPIOPin
	gpio     core.GPIODriver
	tripped  bool
	lockout  core.Tick
	haveRead bool
}

// newLimitSwitch returns nil when the axis has no switch ("none").
func newLimitSwitch(axis, pinName string, gpio core.GPIODriver) (*limitSwitch, error) {
	if pinName == "" || pinName == "none" || gpio == nil {
		return nil, nil
	}
	pin, err := core.LookupPin(pinName)
	if err != nil {
		return nil, err
	}
	if err := gpio.ConfigureInputPullUp(pin); err != nil {
		return nil, err
	}
	return &limitSwitch{axis: axis, pin: pin, gpio: gpio}, nil
}

// poll reads the switch. It reports whether the debounced state changed.
func (s *limitSwitch) poll(now core.Tick, lockout core.Tick) bool {
	if s.haveRead && now < s.lockout {
		return false
	}
	level, err := s.gpio.GetPin(s.pin)
	if err != nil {
		return false
	}
	s.haveRead = true
	tripped := !level
	if tripped == s.tripped {
		return false
	}
	s.tripped = tripped
	s.lockout = now + lockout
	return true
}

// PollSwitches samples the limit switches. A switch closing outside a
// homing cycle is latched for LimitSwitchHandler.
func (m *Machine) PollSwitches() core.Status {
	now := m.clock.Now()
	lockout := core.TicksFromDuration(m.cfg.Machine.SwitchLockout)
	changed := false
	for _, sw := range m.switches {
		if !sw.poll(now, lockout) {
			continue
		}
		changed = true
		m.log.Debug().Str("axis", sw.axis).Bool("tripped", sw.tripped).Msg("limit switch")
		if sw.tripped && m.homing == nil && m.limitTripped == "" {
			m.limitTripped = sw.axis
		}
	}
	if changed {
		return core.StatusDone
	}
	return core.StatusNoOp
}

func (m *Machine) switchTripped(axis string) bool {
	for _, sw := range m.switches {
		if sw.axis == axis {
			return sw.tripped
		}
	}
	return false
}

func (m *Machine) hasSwitch(axis string) bool {
	for _, sw := range m.switches {
		if sw.axis == axis {
			return true
		}
	}
	return false
}
