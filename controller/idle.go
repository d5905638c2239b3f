package controller

import (
	"time"

	"g2go/core"
)

// heartbeat toggles the indicator once per period.
func (c *Controller) heartbeat(period time.Duration) {
	now := c.deps.Clock.Now()
	if now > c.state.HeartbeatDeadline {
		c.state.HeartbeatDeadline = now + core.TicksFromDuration(period)
		c.deps.Indicator.Toggle()
	}
}

// alarmIdler blinks the indicator fast and halts the turn while the machine
// is in alarm.
func (c *Controller) alarmIdler() core.Status {
	if !c.deps.Machine.InAlarm() {
		c.state.AlarmSeen = false
		return core.StatusDone
	}
	if !c.state.AlarmSeen {
		c.state.AlarmSeen = true
		c.trace.Record(core.EvtAlarm, "alarm", c.deps.Clock.Now(), 0)
		c.log.Error().Msg("machine in alarm, command processing suspended")
		c.trace.Dump()
	}
	c.heartbeat(c.cfg.LEDAlarmPeriod)
	return core.StatusPending
}

// normalIdler blinks the indicator slowly.
func (c *Controller) normalIdler() core.Status {
	c.heartbeat(c.cfg.LEDNormalPeriod)
	return core.StatusDone
}

// syncToPlanner holds off command processing until the planner has room.
func (c *Controller) syncToPlanner() core.Status {
	if c.deps.Machine.AvailablePlannerSlots() < c.cfg.PlannerHeadroom {
		return core.StatusPending
	}
	return core.StatusDone
}
