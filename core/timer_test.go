package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerQueueOrdering(t *testing.T) {
	var q TimerQueue
	var fired []Tick

	handler := func(tm *Timer) uint8 {
		fired = append(fired, tm.WakeTime)
		return SF_DONE
	}

	for _, wake := range []Tick{30, 10, 20, 10} {
		q.Schedule(&Timer{WakeTime: wake, Handler: handler})
	}
	assert.Equal(t, 4, q.Len())

	assert.Equal(t, 0, q.Dispatch(5))
	assert.Equal(t, 2, q.Dispatch(10))
	assert.Equal(t, 2, q.Dispatch(100))
	assert.Equal(t, []Tick{10, 10, 20, 30}, fired)
	assert.Equal(t, 0, q.Len())
}

func TestTimerQueueReschedule(t *testing.T) {
	var q TimerQueue
	count := 0
	tm := &Timer{WakeTime: 10, Handler: func(tm *Timer) uint8 {
		count++
		if count == 3 {
			return SF_DONE
		}
		tm.WakeTime += 10
		return SF_RESCHEDULE
	}}
	q.Schedule(tm)

	q.Dispatch(10)
	q.Dispatch(20)
	q.Dispatch(30)
	q.Dispatch(40)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, q.Len())
}

func TestTimerQueueCancel(t *testing.T) {
	var q TimerQueue
	called := false
	a := &Timer{WakeTime: 5, Handler: func(*Timer) uint8 { called = true; return SF_DONE }}
	b := &Timer{WakeTime: 6, Handler: func(*Timer) uint8 { return SF_DONE }}
	q.Schedule(a)
	q.Schedule(b)
	q.Cancel(a)
	q.Cancel(a)

	assert.Equal(t, 1, q.Dispatch(10))
	assert.False(t, called)
}

func TestManualClock(t *testing.T) {
	var c ManualClock
	c.Advance(250)
	c.Advance(TicksFromDuration(time.Second))
	assert.Equal(t, Tick(1250), c.Now())
	c.Set(7)
	assert.Equal(t, Tick(7), c.Now())
	assert.Equal(t, 7*time.Millisecond, c.Now().Duration())
}

func TestPinIndicatorToggles(t *testing.T) {
	gpio := NewMemoryGPIO()
	led, err := NewPinIndicator(gpio, 25)
	assert.NoError(t, err)

	led.Toggle()
	v, err := gpio.GetPin(25)
	assert.NoError(t, err)
	assert.True(t, v)
	assert.True(t, led.On())

	led.Toggle()
	v, _ = gpio.GetPin(25)
	assert.False(t, v)
}

func TestLookupPin(t *testing.T) {
	pin, err := LookupPin("gpio20")
	assert.NoError(t, err)
	assert.Equal(t, GPIOPin(20), pin)

	_, err = LookupPin("ADC0")
	assert.Error(t, err)
	_, err = LookupPin("gpiox")
	assert.Error(t, err)
}

func TestTraceRingWraps(t *testing.T) {
	var r TraceRing
	for i := 0; i < TraceRingSize+5; i++ {
		r.Record(EvtTaskError, "t", Tick(i), uint32(i))
	}
	events := r.Events()
	assert.Len(t, events, TraceRingSize)
	assert.Equal(t, uint32(5), events[0].Value)
	assert.Equal(t, uint32(TraceRingSize+4), events[len(events)-1].Value)

	r.Clear()
	assert.Empty(t, r.Events())
}
