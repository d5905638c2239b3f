// Package report writes the system-ready banner, status reports, and queue
// reports in the active protocol mode.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/joeycumines/go-catrate"
	"github.com/rs/zerolog"

	"g2go/config"
	"g2go/core"
	"g2go/machine"
)

// Source supplies machine state for reports.
type Source interface {
	Snapshot() machine.Snapshot
}

// Envelope is the JSON response frame: a body and a footer of
// [revision, status, input length].
type Envelope struct {
	R any    `json:"r"`
	F [3]int `json:"f"`
}

// FooterRevision is the first footer element.
const FooterRevision = 1

// WriteEnvelope writes one JSON response line.
func WriteEnvelope(w io.Writer, body any, status core.Status, inputLen int) error {
	if body == nil {
		body = struct{}{}
	}
	data, err := json.Marshal(Envelope{R: body, F: [3]int{FooterRevision, int(status), inputLen}})
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Reporter emits reports on w in the mode returned by mode.
type Reporter struct {
	w    io.Writer
	src  Source
	cfg  *config.ReportConfig
	mode func() core.ProtocolMode
	log  zerolog.Logger

	limiter  *catrate.Limiter
	interval time.Duration

	last      map[string]any
	lastQueue int
}

// New creates a reporter.
func New(w io.Writer, src Source, cfg *config.ReportConfig, mode func() core.ProtocolMode) *Reporter {
	return &Reporter{
		w:         w,
		src:       src,
		cfg:       cfg,
		mode:      mode,
		log:       core.Component("report"),
		lastQueue: -1,
	}
}

// SystemReady announces the controller on a new connection.
func (r *Reporter) SystemReady() {
	r.last = nil
	r.lastQueue = -1
	var err error
	if r.mode() == core.ModeJSON {
		err = WriteEnvelope(r.w, map[string]any{
			"fb":  core.FirmwareBuild,
			"fv":  core.FirmwareVersion,
			"hp":  core.HardwarePlatform,
			"msg": "SYSTEM READY",
		}, core.StatusDone, 0)
	} else {
		_, err = fmt.Fprintf(r.w, "g2go firmware build %.2f ready\n", core.FirmwareBuild)
	}
	if err != nil {
		r.log.Debug().Err(err).Msg("system ready write failed")
	}
}

// Fields returns the current status report fields.
func (r *Reporter) Fields() map[string]any {
	s := r.src.Snapshot()
	return map[string]any{
		"stat": s.State.String(),
		"mots": s.Motion.String(),
		"hold": s.Hold.String(),
		"posx": round3(s.Position.X),
		"posy": round3(s.Position.Y),
		"posz": round3(s.Position.Z),
		"vel":  round3(s.Velocity),
	}
}

// WriteStatus writes a full status report in mode.
func (r *Reporter) WriteStatus(mode core.ProtocolMode) error {
	fields := r.Fields()
	r.last = fields
	return r.write(mode, fields)
}

func (r *Reporter) write(mode core.ProtocolMode, fields map[string]any) error {
	if mode == core.ModeJSON {
		data, err := json.Marshal(map[string]any{"sr": fields})
		if err != nil {
			return err
		}
		_, err = r.w.Write(append(data, '\n'))
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(r.w, "%s: %v\n", k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}

// StatusReportCallback emits an automatic status report when the state has
// changed and the report interval allows it.
func (r *Reporter) StatusReportCallback() core.Status {
	if r.cfg.StatusVerbosity == 0 {
		return core.StatusNoOp
	}
	fields := r.Fields()
	changed := r.changed(fields)
	if len(changed) == 0 {
		return core.StatusNoOp
	}
	if _, ok := r.allow(); !ok {
		return core.StatusNoOp
	}
	out := changed
	if r.cfg.StatusVerbosity > 1 {
		out = fields
	}
	r.last = fields
	if err := r.write(r.mode(), out); err != nil {
		r.log.Debug().Err(err).Msg("status report write failed")
	}
	return core.StatusDone
}

func (r *Reporter) changed(fields map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range fields {
		if old, ok := r.last[k]; !ok || old != v {
			out[k] = v
		}
	}
	return out
}

// allow rate limits automatic reports. The limiter is rebuilt when the
// interval setting changes; a non-positive interval disables the limit.
func (r *Reporter) allow() (time.Time, bool) {
	if r.cfg.StatusInterval <= 0 {
		r.limiter = nil
		return time.Time{}, true
	}
	if r.limiter == nil || r.interval != r.cfg.StatusInterval {
		r.interval = r.cfg.StatusInterval
		r.limiter = catrate.NewLimiter(map[time.Duration]int{r.interval: 1})
	}
	return r.limiter.Allow("sr")
}

// QueueReportCallback reports the free planner buffer count when it changes.
func (r *Reporter) QueueReportCallback() core.Status {
	if !r.cfg.QueueReports {
		return core.StatusNoOp
	}
	avail := r.src.Snapshot().Available
	if avail == r.lastQueue {
		return core.StatusNoOp
	}
	r.lastQueue = avail
	var err error
	if r.mode() == core.ModeJSON {
		_, err = fmt.Fprintf(r.w, "{\"qr\":%d}\n", avail)
	} else {
		_, err = fmt.Fprintf(r.w, "qr: %d\n", avail)
	}
	if err != nil {
		r.log.Debug().Err(err).Msg("queue report write failed")
	}
	return core.StatusDone
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
