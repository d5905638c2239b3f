package core

import "strconv"

// Status is the completion code returned by every continuation task and
// every command interpreter.
//
// Only StatusPending halts a dispatcher turn. StatusNoOp means there was
// nothing to do and schedules like StatusDone. Any other value is an error
// code; errors are reported and the turn continues.
type Status uint8

const (
	StatusDone    Status = 0
	StatusError   Status = 1
	StatusPending Status = 2
	StatusNoOp    Status = 3
)

// Command and subsystem error codes. Values below 10 are reserved for the
// scheduling codes above.
const (
	StatusUnrecognizedCommand Status = 10 + iota
	StatusInputTooLong
	StatusBadNumberFormat
	StatusUnsupportedGcode
	StatusUnsupportedMcode
	StatusUnknownSetting
	StatusReadOnlySetting
	StatusInvalidValue
	StatusJSONSyntax
	StatusSoftLimitExceeded
	StatusPlannerFull
	StatusMachineAlarmed
	StatusLimitSwitchHit
	StatusArcSpecification
	StatusHomingFailed
	StatusMemoryCorruption
)

var statusText = map[Status]string{
	StatusDone:                "ok",
	StatusError:               "error",
	StatusPending:             "eagain",
	StatusNoOp:                "noop",
	StatusUnrecognizedCommand: "unrecognized command",
	StatusInputTooLong:        "input exceeds max length",
	StatusBadNumberFormat:     "bad number format",
	StatusUnsupportedGcode:    "unsupported gcode",
	StatusUnsupportedMcode:    "unsupported mcode",
	StatusUnknownSetting:      "unknown config setting",
	StatusReadOnlySetting:     "setting is read only",
	StatusInvalidValue:        "invalid or malformed value",
	StatusJSONSyntax:          "JSON syntax error",
	StatusSoftLimitExceeded:   "soft limit exceeded",
	StatusPlannerFull:         "planner buffer full",
	StatusMachineAlarmed:      "machine is alarmed",
	StatusLimitSwitchHit:      "limit switch hit",
	StatusArcSpecification:    "arc specification error",
	StatusHomingFailed:        "homing cycle failed",
	StatusMemoryCorruption:    "memory integrity assertion failed",
}

// IsError reports whether s carries an error code rather than a scheduling
// outcome.
func (s Status) IsError() bool {
	return s != StatusDone && s != StatusPending && s != StatusNoOp
}

// String returns the human readable message for s.
func (s Status) String() string {
	if msg, ok := statusText[s]; ok {
		return msg
	}
	return "status " + strconv.Itoa(int(s))
}
