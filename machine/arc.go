package machine

import (
	"math"

	"g2go/core"
)

// arcGen breaks an XY-plane arc into chords, one per callback.
type arcGen struct {
	cx, cy     float64
	radius     float64
	startAngle float64
	sweep      float64
	z0, dz     float64
	end        Position
	feed       float64
	segments   int
	done       int
}

// StartArc begins a circular move in the XY plane. i and j are the centre
// offsets from the current position; clockwise selects G2 over G3. The arc
// is fed to the planner by ArcCallback.
func (m *Machine) StartArc(end Position, i, j float64, clockwise bool, feed float64) core.Status {
	if m.InAlarm() {
		return core.StatusMachineAlarmed
	}
	start := m.planner.Target()
	cx, cy := start.X+i, start.Y+j
	r := math.Hypot(i, j)
	if r == 0 {
		return core.StatusArcSpecification
	}
	rEnd := math.Hypot(end.X-cx, end.Y-cy)
	if math.Abs(rEnd-r) > 0.05+0.001*r {
		return core.StatusArcSpecification
	}
	if err := m.kin.CheckLimits(end); err != nil {
		m.log.Warn().Err(err).Msg("soft limit")
		return core.StatusSoftLimitExceeded
	}

	a0 := math.Atan2(start.Y-cy, start.X-cx)
	a1 := math.Atan2(end.Y-cy, end.X-cx)
	sweep := a1 - a0
	if clockwise {
		if sweep >= 0 {
			sweep -= 2 * math.Pi
		}
	} else if sweep <= 0 {
		sweep += 2 * math.Pi
	}

	dz := end.Z - start.Z
	length := math.Hypot(math.Abs(sweep)*r, dz)
	segments := int(math.Ceil(length / m.cfg.Machine.ArcSegmentLength))
	if segments < 1 {
		segments = 1
	}

	m.arc = &arcGen{
		cx: cx, cy: cy,
		radius:     r,
		startAngle: a0,
		sweep:      sweep,
		z0:         start.Z,
		dz:         dz,
		end:        end,
		feed:       feed,
		segments:   segments,
	}
	return core.StatusDone
}

func (a *arcGen) point(n int) Position {
	if n >= a.segments {
		return a.end
	}
	frac := float64(n) / float64(a.segments)
	theta := a.startAngle + a.sweep*frac
	return Position{
		X: a.cx + a.radius*math.Cos(theta),
		Y: a.cy + a.radius*math.Sin(theta),
		Z: a.z0 + a.dz*frac,
	}
}

// ArcCallback queues the next arc segment. It holds off lower priority
// work until the whole arc has been handed to the planner.
func (m *Machine) ArcCallback() core.Status {
	a := m.arc
	if a == nil {
		return core.StatusNoOp
	}
	if m.planner.Available() < 1 {
		return core.StatusPending
	}
	a.done++
	if st := m.queue(a.point(a.done), a.feed); st != core.StatusDone {
		m.arc = nil
		return st
	}
	if a.done >= a.segments {
		m.arc = nil
		return core.StatusDone
	}
	return core.StatusPending
}
