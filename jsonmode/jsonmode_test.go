package jsonmode

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2go/config"
	"g2go/core"
)

type recorder struct {
	lines  []string
	status core.Status
}

func (r *recorder) Interpret(line string) core.Status {
	r.lines = append(r.lines, line)
	return r.status
}

type fakeStatus struct{}

func (fakeStatus) Fields() map[string]any { return map[string]any{"stat": "ready"} }

type fakeQueue int

func (q fakeQueue) AvailablePlannerSlots() int { return int(q) }

type response struct {
	R map[string]any `json:"r"`
	F []int          `json:"f"`
}

func setup() (*Parser, *bytes.Buffer, *recorder) {
	var buf bytes.Buffer
	settings := config.NewSettings(config.Default())
	settings.AddReadOnly("fv", func() float64 { return core.FirmwareVersion })
	rec := &recorder{}
	return NewParser(&buf, rec, settings, fakeStatus{}, fakeQueue(24)), &buf, rec
}

func decode(t *testing.T, buf *bytes.Buffer) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &r), buf.String())
	return r
}

func TestGcodeKey(t *testing.T) {
	p, buf, rec := setup()
	line := `{"gc":"G0 X1"}`
	assert.Equal(t, core.StatusDone, p.Interpret(line))
	assert.Equal(t, []string{"G0 X1"}, rec.lines)
	assert.Equal(t, `{"r":{"gc":"G0 X1"},"f":[1,0,14]}`+"\n", buf.String())

	buf.Reset()
	rec.status = core.StatusSoftLimitExceeded
	assert.Equal(t, core.StatusSoftLimitExceeded, p.Interpret(`{"gc":"G0 X900"}`))
	resp := decode(t, buf)
	assert.Equal(t, int(core.StatusSoftLimitExceeded), resp.F[1])
}

func TestReports(t *testing.T) {
	p, buf, _ := setup()
	assert.Equal(t, core.StatusDone, p.Interpret(`{"sr":null,"qr":""}`))
	resp := decode(t, buf)
	assert.Equal(t, map[string]any{"stat": "ready"}, resp.R["sr"])
	assert.Equal(t, float64(24), resp.R["qr"])
}

func TestSettingsKeys(t *testing.T) {
	p, buf, _ := setup()

	assert.Equal(t, core.StatusDone, p.Interpret(`{"xvm":""}`))
	assert.Equal(t, float64(16000), decode(t, buf).R["xvm"])

	buf.Reset()
	assert.Equal(t, core.StatusDone, p.Interpret(`{"xvm":9000}`))
	assert.Equal(t, float64(9000), decode(t, buf).R["xvm"])

	buf.Reset()
	assert.Equal(t, core.StatusDone, p.Interpret(`{"qv":true}`))
	assert.Equal(t, float64(1), decode(t, buf).R["qv"])

	buf.Reset()
	assert.Equal(t, core.StatusDone, p.Interpret(`{"fv":null}`))
	assert.Equal(t, core.FirmwareVersion, decode(t, buf).R["fv"])

	tests := []struct {
		line string
		want core.Status
	}{
		{`{"fv":1}`, core.StatusReadOnlySetting},
		{`{"bogus":null}`, core.StatusUnknownSetting},
		{`{"xvm":-1}`, core.StatusInvalidValue},
		{`{"xvm":[1]}`, core.StatusInvalidValue},
		{`{"gc":5}`, core.StatusInvalidValue},
	}
	for _, tt := range tests {
		buf.Reset()
		assert.Equal(t, tt.want, p.Interpret(tt.line), tt.line)
		resp := decode(t, buf)
		assert.Equal(t, []int{1, int(tt.want), len(tt.line)}, resp.F, tt.line)
	}
}

func TestSyntaxError(t *testing.T) {
	p, buf, rec := setup()
	line := `{"gc":`
	assert.Equal(t, core.StatusJSONSyntax, p.Interpret(line))
	assert.Empty(t, rec.lines)
	assert.Equal(t, `{"r":{},"f":[1,18,6]}`+"\n", buf.String())
}

func TestFirstErrorWins(t *testing.T) {
	p, buf, _ := setup()
	// keys run in sorted order: "aaa" fails before "xvm" succeeds
	assert.Equal(t, core.StatusUnknownSetting, p.Interpret(`{"xvm":100,"aaa":null}`))
	resp := decode(t, buf)
	assert.Equal(t, float64(100), resp.R["xvm"])
	assert.Nil(t, resp.R["aaa"])
}
