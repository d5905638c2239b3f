package core

import (
	"sync"
	"time"
)

// Tick is a monotonic clock reading in milliseconds.
type Tick uint64

// TicksPerSecond is the resolution of Tick.
const TicksPerSecond = 1000

// TicksFromDuration converts d to clock ticks, rounding down.
func TicksFromDuration(d time.Duration) Tick {
	if d <= 0 {
		return 0
	}
	return Tick(d / time.Millisecond)
}

// Duration converts t to a time.Duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

// Clock is the monotonic tick source shared by the heartbeats, the timer
// queue, and the motion subsystem.
type Clock interface {
	Now() Tick
}

// SystemClock counts milliseconds since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock starting at tick zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the elapsed milliseconds since the clock was created.
func (c *SystemClock) Now() Tick {
	return TicksFromDuration(time.Since(c.start))
}

// ManualClock is a Clock that only moves when told to. Used by tests and by
// simulations that step time explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now Tick
}

// Now returns the current tick.
func (c *ManualClock) Now() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t Tick) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d ticks.
func (c *ManualClock) Advance(d Tick) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Timer represents a scheduled event
type Timer struct {
	WakeTime Tick
	Handler  func(*Timer) uint8
	next     *Timer
	queued   bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerQueue keeps timers sorted by wake time. It is driven from the loop's
// interrupt-level hook and is not safe for concurrent use.
type TimerQueue struct {
	head *Timer
	size int
}

// Schedule adds t to the queue. Scheduling a timer that is already queued
// moves it to its new wake time.
func (q *TimerQueue) Schedule(t *Timer) {
	if t.queued {
		q.Cancel(t)
	}
	q.insert(t)
}

// insert places t in sorted order by WakeTime
func (q *TimerQueue) insert(t *Timer) {
	t.queued = true
	q.size++
	if q.head == nil || t.WakeTime < q.head.WakeTime {
		t.next = q.head
		q.head = t
		return
	}

	current := q.head
	for current.next != nil && current.next.WakeTime <= t.WakeTime {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

// Cancel removes t from the queue if present.
func (q *TimerQueue) Cancel(t *Timer) {
	if !t.queued {
		return
	}
	if q.head == t {
		q.head = t.next
	} else {
		for cur := q.head; cur != nil; cur = cur.next {
			if cur.next == t {
				cur.next = t.next
				break
			}
		}
	}
	t.next = nil
	t.queued = false
	q.size--
}

// Len returns the number of queued timers.
func (q *TimerQueue) Len() int {
	return q.size
}

// Dispatch runs every timer whose WakeTime is at or before now. A handler
// returning SF_RESCHEDULE is queued again at its (updated) WakeTime.
func (q *TimerQueue) Dispatch(now Tick) int {
	fired := 0
	for q.head != nil && q.head.WakeTime <= now {
		timer := q.head
		q.head = timer.next
		timer.next = nil // Clear next pointer to avoid circular references
		timer.queued = false
		q.size--
		fired++

		if timer.Handler(timer) == SF_RESCHEDULE {
			q.insert(timer)
		}
	}
	return fired
}
