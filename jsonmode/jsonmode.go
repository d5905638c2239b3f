// Package jsonmode implements the JSON command protocol. Each request is a
// single object; each response is one envelope line.
package jsonmode

import (
	"io"
	"sort"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"g2go/config"
	"g2go/core"
	"g2go/report"
)

// Interpreter executes G-code for the "gc" key.
type Interpreter interface {
	Interpret(line string) core.Status
}

// StatusSource supplies status report fields for the "sr" key.
type StatusSource interface {
	Fields() map[string]any
}

// QueueSource supplies the free planner buffer count for the "qr" key.
type QueueSource interface {
	AvailablePlannerSlots() int
}

// Parser interprets JSON requests.
type Parser struct {
	w        io.Writer
	gcode    Interpreter
	settings *config.Settings
	status   StatusSource
	queue    QueueSource
	log      zerolog.Logger
}

// NewParser creates a JSON parser writing responses to w.
func NewParser(w io.Writer, gcode Interpreter, settings *config.Settings, status StatusSource, queue QueueSource) *Parser {
	return &Parser{
		w:        w,
		gcode:    gcode,
		settings: settings,
		status:   status,
		queue:    queue,
		log:      core.Component("jsonmode"),
	}
}

// Interpret executes a JSON request and writes the response. The returned
// status is the first failure among the request's keys, or StatusDone.
func (p *Parser) Interpret(line string) core.Status {
	var req map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		p.log.Debug().Err(err).Str("line", line).Msg("bad json")
		p.respond(nil, core.StatusJSONSyntax, len(line))
		return core.StatusJSONSyntax
	}

	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	body := make(map[string]any, len(req))
	status := core.StatusDone
	for _, k := range keys {
		v, st := p.execute(k, req[k])
		body[k] = v
		if st.IsError() && status == core.StatusDone {
			status = st
		}
	}
	p.respond(body, status, len(line))
	return status
}

func (p *Parser) execute(key string, raw json.RawMessage) (any, core.Status) {
	switch key {
	case "gc":
		var line string
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, core.StatusInvalidValue
		}
		return line, p.gcode.Interpret(line)
	case "sr":
		return p.status.Fields(), core.StatusDone
	case "qr":
		return p.queue.AvailablePlannerSlots(), core.StatusDone
	}
	return p.setting(key, raw)
}

// setting reads a token for null or "" and writes it for any other value.
func (p *Parser) setting(token string, raw json.RawMessage) (any, core.Status) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, core.StatusInvalidValue
	}
	var text string
	switch v := value.(type) {
	case nil:
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		text = "0"
		if v {
			text = "1"
		}
	default:
		return nil, core.StatusInvalidValue
	}
	if text != "" {
		if err := p.settings.Set(token, text); err != nil {
			return nil, config.SettingStatus(err)
		}
	}
	got, err := p.settings.Get(token)
	if err != nil {
		return nil, config.SettingStatus(err)
	}
	return got, core.StatusDone
}

func (p *Parser) respond(body any, status core.Status, n int) {
	if err := report.WriteEnvelope(p.w, body, status, n); err != nil {
		p.log.Debug().Err(err).Msg("response write failed")
	}
}
