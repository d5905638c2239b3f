package core

import (
	"sync"

	"github.com/rs/zerolog"
)

var (
	// logger is the process logger (can be set by host code)
	logger   = zerolog.Nop()
	loggerMu sync.RWMutex
)

// SetLogger installs the process logger. Host code calls this once from
// main before the controller starts.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Logger returns the process logger. It discards everything until SetLogger
// is called.
func Logger() *zerolog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	return &l
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// TraceEvent captures a scheduling event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	Name      string // Task or field name
	Clock     Tick   // Clock at event
	Value     uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTaskPending   = 1 // task halted a turn
	EvtTaskError     = 2 // task returned an error status
	EvtSessionChange = 3 // session state transition
	EvtModeChange    = 4 // protocol mode switch
	EvtAlarm         = 5 // alarm latched
	EvtReset         = 6 // reset request serviced
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

// TraceRing is a fixed-size ring of recent scheduling events. It is written
// from the loop only.
type TraceRing struct {
	ring [TraceRingSize]TraceEvent
	head uint8 // Next write position
	n    int
}

// Record captures an event in the ring buffer
func (r *TraceRing) Record(eventType uint8, name string, clock Tick, value uint32) {
	idx := r.head
	r.ring[idx] = TraceEvent{
		EventType: eventType,
		Name:      name,
		Clock:     clock,
		Value:     value,
	}
	r.head = (idx + 1) % TraceRingSize
	if r.n < TraceRingSize {
		r.n++
	}
}

// Events returns the recorded events, oldest first.
func (r *TraceRing) Events() []TraceEvent {
	out := make([]TraceEvent, 0, r.n)
	start := (int(r.head) - r.n + TraceRingSize) % TraceRingSize
	for i := 0; i < r.n; i++ {
		out = append(out, r.ring[(start+i)%TraceRingSize])
	}
	return out
}

// Dump writes the ring through the logger (call on alarm)
func (r *TraceRing) Dump() {
	log := Component("trace")
	for _, evt := range r.Events() {
		log.Info().
			Str("event", eventName(evt.EventType)).
			Str("name", evt.Name).
			Uint64("clock", uint64(evt.Clock)).
			Uint32("value", evt.Value).
			Msg("trace")
	}
}

// Clear empties the ring
func (r *TraceRing) Clear() {
	for i := range r.ring {
		r.ring[i] = TraceEvent{}
	}
	r.head = 0
	r.n = 0
}

func eventName(t uint8) string {
	switch t {
	case EvtTaskPending:
		return "TASK_PENDING"
	case EvtTaskError:
		return "TASK_ERROR"
	case EvtSessionChange:
		return "SESSION"
	case EvtModeChange:
		return "MODE"
	case EvtAlarm:
		return "ALARM"
	case EvtReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}
