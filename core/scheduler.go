package core

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// Task is one entry of the dispatch chain. Run must behave as a reentrant
// continuation: it is called on every turn that reaches it, whether or not it
// has work, and must return StatusNoOp cheaply when idle.
type Task[C any] struct {
	Name string
	Run  func(C) Status
}

// TurnResult describes one pass over the task list.
type TurnResult struct {
	// Ran is the number of tasks invoked this turn.
	Ran int
	// HaltedBy names the task that returned StatusPending, or is empty if
	// the turn reached the end of the list.
	HaltedBy string
	// Errors counts tasks that returned an error status.
	Errors int
}

// Halted reports whether a task blocked the rest of the turn.
func (r TurnResult) Halted() bool {
	return r.HaltedBy != ""
}

// Dispatcher runs a fixed, priority ordered list of tasks. A task returning
// StatusPending ends the turn; nothing after it runs until a later turn gets
// past it.
type Dispatcher[C any] struct {
	tasks  []Task[C]
	trace  *TraceRing
	clock  Clock
	errLog *catrate.Limiter

	// lastHalt is the task that ended the previous turn; only changes are
	// traced so a latched task does not flood the ring.
	lastHalt string
}

// NewDispatcher creates a dispatcher over tasks. The order of tasks is the
// priority order and is never changed afterwards.
func NewDispatcher[C any](clock Clock, trace *TraceRing, tasks []Task[C]) *Dispatcher[C] {
	list := make([]Task[C], len(tasks))
	copy(list, tasks)
	return &Dispatcher[C]{
		tasks: list,
		trace: trace,
		clock: clock,
		errLog: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
}

// Names returns the task names in dispatch order.
func (d *Dispatcher[C]) Names() []string {
	names := make([]string, len(d.tasks))
	for i, t := range d.tasks {
		names[i] = t.Name
	}
	return names
}

// Turn invokes each task once, in order, stopping at the first StatusPending.
func (d *Dispatcher[C]) Turn(c C) TurnResult {
	var res TurnResult
	for _, t := range d.tasks {
		res.Ran++
		status := t.Run(c)
		switch {
		case status == StatusPending:
			res.HaltedBy = t.Name
			d.noteHalt(t.Name)
			return res
		case status.IsError():
			res.Errors++
			d.reportError(t.Name, status)
		}
	}
	d.noteHalt("")
	return res
}

func (d *Dispatcher[C]) noteHalt(name string) {
	if name == d.lastHalt {
		return
	}
	d.lastHalt = name
	if name != "" && d.trace != nil {
		d.trace.Record(EvtTaskPending, name, d.now(), 0)
	}
}

func (d *Dispatcher[C]) reportError(name string, status Status) {
	if d.trace != nil {
		d.trace.Record(EvtTaskError, name, d.now(), uint32(status))
	}
	if _, ok := d.errLog.Allow(name); !ok {
		return
	}
	Logger().Warn().
		Str("task", name).
		Uint8("code", uint8(status)).
		Str("status", status.String()).
		Msg("task reported error")
}

func (d *Dispatcher[C]) now() Tick {
	if d.clock == nil {
		return 0
	}
	return d.clock.Now()
}
