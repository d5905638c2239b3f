package machine

import (
	"math"

	"g2go/config"
	"g2go/core"
)

// Planner owns a fixed pool of move buffers and executes them head first.
// Each move completes after its profile duration via the shared timer queue.
type Planner struct {
	cfg     *config.MachineConfig
	timers  *core.TimerQueue
	clock   core.Clock
	buffers int

	queue   []*Move
	running *Move
	done    core.Timer
	held    bool

	// runtime position (end of the last completed move)
	position Position
	// position at the end of the last queued move
	target Position

	onComplete func(*Move)
}

// NewPlanner creates a new motion planner
func NewPlanner(cfg *config.MachineConfig, timers *core.TimerQueue, clock core.Clock) *Planner {
	p := &Planner{
		cfg:     cfg,
		timers:  timers,
		clock:   clock,
		buffers: cfg.PlannerBuffers,
		queue:   make([]*Move, 0, cfg.PlannerBuffers),
	}
	p.done.Handler = func(t *core.Timer) uint8 {
		p.complete()
		return core.SF_DONE
	}
	return p
}

// Queue adds a move to the planner. Returns StatusPlannerFull when every
// buffer is in use.
func (p *Planner) Queue(move *Move) core.Status {
	if p.Available() == 0 {
		return core.StatusPlannerFull
	}
	if !move.Dwell {
		p.calculateTrapezoid(move)
	}
	p.queue = append(p.queue, move)
	if !move.Dwell {
		p.target = move.End
	}
	if p.running == nil && !p.held {
		p.executeNextMove()
	}
	return core.StatusDone
}

// calculateTrapezoid calculates the trapezoidal velocity profile for a move
func (p *Planner) calculateTrapezoid(move *Move) {
	dx := move.End.X - move.Start.X
	dy := move.End.Y - move.Start.Y
	dz := move.End.Z - move.Start.Z
	move.Distance = math.Sqrt(dx*dx + dy*dy + dz*dz)
	if move.Distance == 0 {
		return
	}

	// Limit velocity to axis maximums
	maxVel := move.Velocity
	for _, name := range config.AxisNames {
		d := math.Abs(move.End.Axis(name) - move.Start.Axis(name))
		if d == 0 {
			continue
		}
		axis := p.cfg.Axes[name]
		if maxVel*d/move.Distance > axis.VelocityMax {
			maxVel = axis.VelocityMax * move.Distance / d
		}
	}
	move.Velocity = maxVel

	vel := maxVel / 60.0
	accelDist := (vel * vel) / (2.0 * move.Accel)

	if accelDist*2.0 >= move.Distance {
		// Triangle profile (can't reach full speed)
		accelDist = move.Distance / 2.0
		move.CruiseVel = math.Sqrt(2.0 * move.Accel * accelDist)
		accelTime := move.CruiseVel / move.Accel
		move.AccelTicks = secondsToTicks(accelTime)
		move.CruiseTicks = 0
		move.DecelTicks = move.AccelTicks
	} else {
		cruiseDist := move.Distance - 2.0*accelDist
		move.CruiseVel = vel
		accelTime := vel / move.Accel
		move.AccelTicks = secondsToTicks(accelTime)
		move.CruiseTicks = secondsToTicks(cruiseDist / vel)
		move.DecelTicks = move.AccelTicks
	}
	move.Duration = move.AccelTicks + move.CruiseTicks + move.DecelTicks
	if move.Duration == 0 {
		move.Duration = 1
	}
}

// executeNextMove starts executing the next move in the queue
func (p *Planner) executeNextMove() {
	if len(p.queue) == 0 {
		p.running = nil
		return
	}
	move := p.queue[0]
	copy(p.queue, p.queue[1:])
	p.queue[len(p.queue)-1] = nil
	p.queue = p.queue[:len(p.queue)-1]

	p.running = move
	p.done.WakeTime = p.clock.Now() + move.Duration
	p.timers.Schedule(&p.done)
}

func (p *Planner) complete() {
	move := p.running
	if move == nil {
		return
	}
	if !move.Dwell {
		p.position = move.End
	}
	p.running = nil
	if p.onComplete != nil {
		p.onComplete(move)
	}
	if !p.held {
		p.executeNextMove()
	}
}

// Available returns the number of free planner buffers.
func (p *Planner) Available() int {
	used := len(p.queue)
	if p.running != nil {
		used++
	}
	return p.buffers - used
}

// Running returns the move currently executing, or nil.
func (p *Planner) Running() *Move {
	return p.running
}

// Idle returns true if no moves are queued or executing
func (p *Planner) Idle() bool {
	return p.running == nil && len(p.queue) == 0
}

// Hold stops the planner from starting new moves. The running move is
// allowed to finish.
func (p *Planner) Hold() {
	p.held = true
}

// Resume releases a hold and starts the next queued move.
func (p *Planner) Resume() {
	p.held = false
	if p.running == nil {
		p.executeNextMove()
	}
}

// Held reports whether the planner is holding.
func (p *Planner) Held() bool {
	return p.held
}

// Flush discards every queued move and stops the running one where it is.
func (p *Planner) Flush() {
	p.timers.Cancel(&p.done)
	for i := range p.queue {
		p.queue[i] = nil
	}
	p.queue = p.queue[:0]
	p.running = nil
	p.target = p.position
}

// Position returns the runtime position.
func (p *Planner) Position() Position {
	return p.position
}

// Target returns the position at the end of the last queued move.
func (p *Planner) Target() Position {
	return p.target
}

// SetPosition sets both the runtime and planned position.
func (p *Planner) SetPosition(pos Position) {
	p.position = pos
	p.target = pos
}

func secondsToTicks(seconds float64) core.Tick {
	return core.Tick(math.Ceil(seconds * core.TicksPerSecond))
}
