package controller

import (
	"errors"

	"code.hybscloud.com/iox"
	"github.com/goccy/go-json"

	"g2go/core"
	"g2go/link"
)

// commandDispatch advances the session and, once ready, reads and routes
// one line per turn.
func (c *Controller) commandDispatch() core.Status {
	connected := c.deps.Link.Connected()
	if !connected {
		if c.state.Session != SessionNotConnected && c.state.LineLength > 0 {
			c.log.Warn().Int("length", c.state.LineLength).Msg("partial line left by disconnect")
		}
		c.setSession(SessionNotConnected)
	}

	switch c.state.Session {
	case SessionNotConnected:
		if !connected {
			return core.StatusDone
		}
		c.deps.Machine.RequestQueueFlush()
		c.deps.Reporter.SystemReady()
		c.setSession(SessionStartup)
		return core.StatusDone

	case SessionStartup:
		c.setSession(SessionReady)
		return core.StatusDone

	case SessionReady:
		err := c.deps.Link.ReadLine(c.state.InputLine[:], &c.state.LineLength)
		switch {
		case err == nil:
			return c.route()
		case iox.IsWouldBlock(err):
		case errors.Is(err, link.ErrLineOverflow):
			c.log.Warn().Int("limit", InputBufferLen).Msg("input line too long, discarded")
		default:
			c.log.Debug().Err(err).Msg("read line")
		}
	}
	return core.StatusDone
}

// route classifies a complete line by its first character and hands it to
// the matching interpreter.
func (c *Controller) route() core.Status {
	line := c.state.InputLine[:c.state.LineLength]
	c.state.SavedLine = savedCopy(line)
	c.state.LineLength = 0
	text := string(line)

	if len(text) == 0 {
		if c.state.Mode == core.ModeText {
			c.deps.Responder.TextResponse(core.StatusDone, c.state.SavedLine)
		}
		return core.StatusDone
	}

	switch text[0] {
	case 'H', 'h':
		c.setMode(core.ModeText)
		c.deps.Help.Help("")
		c.deps.Responder.TextResponse(core.StatusDone, text)
	case '$', '?':
		c.setMode(core.ModeText)
		c.deps.Responder.TextResponse(c.deps.Text.Interpret(text), c.state.SavedLine)
	case '{':
		c.setMode(core.ModeJSON)
		c.deps.JSON.Interpret(text)
	default:
		if c.state.Mode == core.ModeJSON {
			c.deps.JSON.Interpret(wrapGcode(text))
		} else {
			c.deps.Responder.TextResponse(c.deps.Gcode.Interpret(text), c.state.SavedLine)
		}
	}
	return core.StatusDone
}

// wrapGcode encloses a bare line in a JSON "gc" request.
func wrapGcode(line string) string {
	quoted, _ := json.Marshal(line)
	return `{"gc":` + string(quoted) + `}`
}
