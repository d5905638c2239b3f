package controller

import "g2go/core"

const (
	// InputBufferLen is the longest line the controller accepts.
	InputBufferLen = 255
	// SavedBufferLen bounds the saved copy of the last line, terminator
	// included.
	SavedBufferLen = 256
)

// Session is the connection lifecycle as seen by the command dispatcher.
type Session uint8

const (
	SessionNotConnected Session = iota
	SessionStartup
	SessionReady
)

func (s Session) String() string {
	switch s {
	case SessionStartup:
		return "startup"
	case SessionReady:
		return "ready"
	}
	return "not_connected"
}

// Context is the controller's state. It is owned by the loop goroutine.
type Context struct {
	MagicStart uint16

	Session Session
	Mode    core.ProtocolMode

	InputLine  [InputBufferLen]byte
	LineLength int
	SavedLine  string

	HeartbeatDeadline core.Tick
	// AlarmSeen is set once the alarm idler has reported the current alarm.
	AlarmSeen bool

	FirmwareBuild    float64
	FirmwareVersion  float64
	HardwarePlatform int

	MagicEnd uint16
}

func newContext() *Context {
	return &Context{
		MagicStart:       core.MagicNum,
		MagicEnd:         core.MagicNum,
		FirmwareBuild:    core.FirmwareBuild,
		FirmwareVersion:  core.FirmwareVersion,
		HardwarePlatform: core.HardwarePlatform,
	}
}

// Integrity is the diagnostic view of the context's fixed fields.
type Integrity struct {
	MagicStart       uint16
	MagicEnd         uint16
	FirmwareBuild    float64
	FirmwareVersion  float64
	HardwarePlatform int
}

// Integrity returns the diagnostic fields.
func (c *Context) Integrity() Integrity {
	return Integrity{
		MagicStart:       c.MagicStart,
		MagicEnd:         c.MagicEnd,
		FirmwareBuild:    c.FirmwareBuild,
		FirmwareVersion:  c.FirmwareVersion,
		HardwarePlatform: c.HardwarePlatform,
	}
}

// Intact reports whether both magic numbers are unchanged.
func (c *Context) Intact() bool {
	return c.MagicStart == core.MagicNum && c.MagicEnd == core.MagicNum
}

func savedCopy(line []byte) string {
	if len(line) > SavedBufferLen-1 {
		line = line[:SavedBufferLen-1]
	}
	return string(line)
}
