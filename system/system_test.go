package system

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2go/config"
	"g2go/controller"
	"g2go/core"
	"g2go/machine"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type rig struct {
	sys    *System
	clock  *core.ManualClock
	gpio   *core.MemoryGPIO
	client net.Conn
	out    *syncBuffer
}

func newRig(t *testing.T, tweak func(*config.Config)) *rig {
	t.Helper()
	cfg := config.Default()
	cfg.Reports.StatusVerbosity = 0
	if tweak != nil {
		tweak(cfg)
	}
	r := &rig{
		clock: &core.ManualClock{},
		gpio:  core.NewMemoryGPIO(),
		out:   &syncBuffer{},
	}
	sys, err := New(cfg, r.clock, r.gpio)
	require.NoError(t, err)
	r.sys = sys

	client, server := net.Pipe()
	r.client = client
	go func() { _, _ = io.Copy(r.out, client) }()
	require.NoError(t, sys.Link.Attach(server))
	t.Cleanup(func() {
		_ = client.Close()
		sys.Link.Detach()
	})

	r.until(t, func() bool { return sys.Controller.Context().Session == controller.SessionReady })
	return r
}

func (r *rig) send(t *testing.T, data string) {
	t.Helper()
	_, err := r.client.Write([]byte(data))
	require.NoError(t, err)
}

// until turns the controller until cond holds. The link reader runs on its
// own goroutine, so input may take a few turns to arrive.
func (r *rig) until(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.sys.Controller.Turn()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met; output:\n%s", r.out.String())
}

func (r *rig) output(substr string) func() bool {
	return func() bool { return strings.Contains(r.out.String(), substr) }
}

func TestTextSession(t *testing.T) {
	r := newRig(t, nil)
	r.until(t, r.output("g2go firmware build 14.02 ready"))

	r.send(t, "G0 X10\n")
	r.until(t, r.output("ok: G0 X10\n"))
	assert.Contains(t, r.out.String(), "g2go [mm] ok> ")

	r.clock.Advance(60000)
	r.until(t, func() bool { return r.sys.Machine.Planner().Idle() })

	r.send(t, "?\n")
	r.until(t, r.output("ok: ?\n"))
	assert.Contains(t, r.out.String(), "posx: 10\n")
	assert.Contains(t, r.out.String(), "stat: ready\n")

	r.send(t, "$xvm=9000\n")
	r.until(t, r.output("ok: $xvm=9000\n"))
	assert.Equal(t, 9000.0, r.sys.Config.Machine.Axes["x"].VelocityMax)

	r.send(t, "G55\n")
	r.until(t, r.output("err 13: "))
	assert.Contains(t, r.out.String(), "g2go [mm] err> ")
}

func TestJSONSession(t *testing.T) {
	r := newRig(t, nil)

	r.send(t, `{"sr":""}`+"\n")
	r.until(t, r.output(`"f":[1,0,9]`))
	assert.Equal(t, core.ModeJSON, r.sys.Controller.Mode())
	assert.Contains(t, r.out.String(), `"stat":"ready"`)

	r.send(t, "G0 X5\n")
	r.until(t, r.output(`{"r":{"gc":"G0 X5"},"f":[1,0,14]}`))
	assert.Equal(t, 5.0, r.sys.Machine.Target().X)

	r.send(t, `{"xvm":null}`+"\n")
	r.until(t, r.output(`{"r":{"xvm":16000},"f":[1,0,12]}`))

	r.send(t, "{bad\n")
	r.until(t, r.output(`{"r":{},"f":[1,18,4]}`))

	r.send(t, "?\n")
	r.until(t, func() bool { return r.sys.Controller.Mode() == core.ModeText })
}

func TestResetClearsAlarmAndResumesIntake(t *testing.T) {
	r := newRig(t, nil)

	pin, err := core.LookupPin(r.sys.Config.Machine.Axes["x"].LimitPin)
	require.NoError(t, err)
	require.NoError(t, r.gpio.SetPin(pin, false))
	r.until(t, r.sys.Machine.InAlarm)

	r.send(t, "G0 X1\n")
	for i := 0; i < 20; i++ {
		res := r.sys.Controller.Turn()
		assert.Equal(t, "alarm_idler", res.HaltedBy)
		time.Sleep(time.Millisecond)
	}
	assert.NotContains(t, r.out.String(), "G0 X1")

	r.send(t, "\x18")
	r.until(t, r.output("ok: G0 X1\n"))
	assert.False(t, r.sys.Machine.InAlarm())
	assert.Equal(t, 1.0, r.sys.Machine.Target().X)
}

func TestArcBlocksIntake(t *testing.T) {
	r := newRig(t, func(cfg *config.Config) { cfg.Machine.ArcSegmentLength = 1 })

	r.send(t, "G92 X10 Y10\n")
	r.until(t, r.output("ok: G92 X10 Y10\n"))

	r.send(t, "G2 X20 Y10 I5 J0 F600\nG0 X0 Y0\n")
	r.until(t, r.output("ok: G2 X20 Y10 I5 J0 F600\n"))

	require.True(t, r.sys.Machine.Snapshot().ArcActive)
	arcTurns := 0
	for {
		res := r.sys.Controller.Turn()
		if res.HaltedBy != "arc" {
			break
		}
		arcTurns++
		require.NotContains(t, r.out.String(), "G0 X0 Y0")
		require.Less(t, arcTurns, 100)
	}
	assert.Greater(t, arcTurns, 10)

	// the turn that queues the last segment continues on to command intake
	assert.False(t, r.sys.Machine.Snapshot().ArcActive)
	assert.Contains(t, r.out.String(), "ok: G0 X0 Y0\n")
	assert.Equal(t, 0.0, r.sys.Machine.Target().X)
}

func TestSubMillisecondStatusInterval(t *testing.T) {
	r := newRig(t, nil)

	r.send(t, "$sv=1\n")
	r.until(t, r.output("ok: $sv=1\n"))
	r.send(t, "$si=0.5\n")
	r.until(t, r.output("err 17: "))
	assert.Equal(t, 250*time.Millisecond, r.sys.Config.Reports.StatusInterval)

	r.send(t, "G0 X5\n")
	require.NotPanics(t, func() {
		r.until(t, r.output("ok: G0 X5\n"))
		r.clock.Advance(60000)
		r.until(t, func() bool { return r.sys.Machine.Planner().Idle() })
		r.until(t, r.output("posx: 5\n"))
	})
}

func TestFeedholdSignal(t *testing.T) {
	r := newRig(t, nil)

	r.send(t, "G1 X100 F600\n")
	r.until(t, r.output("ok: G1 X100 F600\n"))
	r.until(t, func() bool { return r.sys.Machine.Planner().Running() != nil })

	r.send(t, "G1 X50\n")
	r.until(t, r.output("ok: G1 X50\n"))

	r.send(t, "!")
	r.until(t, func() bool { return r.sys.Machine.Snapshot().Hold == machine.HoldDecel })

	// the running move finishes; the queued one is held
	r.clock.Advance(20000)
	r.until(t, func() bool { return r.sys.Machine.Snapshot().Hold == machine.HoldHold })
	assert.Equal(t, 100.0, r.sys.Machine.Snapshot().Position.X)
	assert.Nil(t, r.sys.Machine.Planner().Running())

	r.send(t, "~")
	r.until(t, func() bool { return r.sys.Machine.Snapshot().Hold == machine.HoldOff })
	assert.NotNil(t, r.sys.Machine.Planner().Running())
}

func TestDisconnectResetsSession(t *testing.T) {
	r := newRig(t, nil)
	r.send(t, `{"sr":""}`+"\n")
	r.until(t, func() bool { return r.sys.Controller.Mode() == core.ModeJSON })

	require.NoError(t, r.client.Close())
	r.until(t, func() bool {
		return r.sys.Controller.Context().Session == controller.SessionNotConnected
	})
	assert.False(t, r.sys.Link.Connected())
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Machine.IndicatorPin = "led"
	_, err := New(cfg, &core.ManualClock{}, core.NewMemoryGPIO())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Controller.PlannerHeadroom = 0
	_, err = New(cfg, &core.ManualClock{}, core.NewMemoryGPIO())
	assert.Error(t, err)
}
