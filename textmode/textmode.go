// Package textmode implements the line-oriented human interface: '$'
// settings commands, '?' status, help, and the echoed text responses.
package textmode

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"g2go/config"
	"g2go/core"
)

// StatusWriter writes a status report.
type StatusWriter interface {
	WriteStatus(mode core.ProtocolMode) error
}

// Parser interprets '$' and '?' lines.
type Parser struct {
	w        io.Writer
	settings *config.Settings
	status   StatusWriter
	log      zerolog.Logger
}

// NewParser creates a text-mode parser writing to w.
func NewParser(w io.Writer, settings *config.Settings, status StatusWriter) *Parser {
	return &Parser{
		w:        w,
		settings: settings,
		status:   status,
		log:      core.Component("textmode"),
	}
}

// Interpret executes one '$' or '?' line.
func (p *Parser) Interpret(line string) core.Status {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "?") {
		if err := p.status.WriteStatus(core.ModeText); err != nil {
			p.log.Debug().Err(err).Msg("status write failed")
		}
		return core.StatusDone
	}

	body := strings.TrimPrefix(line, "$")
	body = strings.ReplaceAll(body, " ", "")
	if body == "" || body == "$" {
		p.listAll()
		return core.StatusDone
	}

	token, value, assign := strings.Cut(body, "=")
	if assign {
		if err := p.settings.Set(token, value); err != nil {
			return config.SettingStatus(err)
		}
		p.log.Info().Str("token", token).Str("value", value).Msg("setting changed")
	}
	v, err := p.settings.Get(token)
	if err != nil {
		return config.SettingStatus(err)
	}
	p.show(strings.ToLower(token), v)
	return core.StatusDone
}

func (p *Parser) listAll() {
	for _, token := range p.settings.Tokens() {
		v, err := p.settings.Get(token)
		if err != nil {
			continue
		}
		p.show(token, v)
	}
}

func (p *Parser) show(token string, v float64) {
	fmt.Fprintf(p.w, "[%s] %s\n", token, strconv.FormatFloat(v, 'f', -1, 64))
}

// Responder echoes each processed line with its outcome and a prompt.
type Responder struct {
	w     io.Writer
	units func() string
}

// NewResponder creates a responder. units names the active length unit for
// the prompt.
func NewResponder(w io.Writer, units func() string) *Responder {
	return &Responder{w: w, units: units}
}

// TextResponse writes the outcome of line followed by a prompt.
func (r *Responder) TextResponse(status core.Status, line string) {
	if status.IsError() {
		fmt.Fprintf(r.w, "err %d: %s: %s\n", uint8(status), status, line)
	} else {
		fmt.Fprintf(r.w, "ok: %s\n", line)
	}
	r.Prompt(status.IsError())
}

// Prompt writes the input prompt.
func (r *Responder) Prompt(failed bool) {
	outcome := "ok"
	if failed {
		outcome = "err"
	}
	fmt.Fprintf(r.w, "g2go [%s] %s> ", r.units(), outcome)
}

// Help writes the help screen.
type Help struct {
	w io.Writer
}

// NewHelp creates the help facility.
func NewHelp(w io.Writer) *Help {
	return &Help{w: w}
}

const generalHelp = `#### g2go help ####
Lines are interpreted by their first character:
  ?            status report
  $            list all settings
  $xvm         show a setting
  $xvm=8000    change a setting
  {...}        JSON command; switches to JSON mode
  h            this help; switches to text mode
  anything     G-code, e.g. G1 X10 F600
Control characters act immediately:
  !  feedhold    ~  cycle start    %  queue flush    ctrl-x  reset
`

// Help writes help for topic. Only the general screen exists.
func (h *Help) Help(topic string) {
	io.WriteString(h.w, generalHelp)
}
