// Package gcode parses and executes the motion language received on the
// command channel.
package gcode

import (
	"errors"
	"math"
)

var (
	// ErrBadNumber is returned when a word letter is not followed by a number.
	ErrBadNumber = errors.New("gcode: bad number format")
	// ErrUnexpectedChar is returned for characters that start no word.
	ErrUnexpectedChar = errors.New("gcode: unexpected character")
)

// Command represents a parsed G-code block
type Command struct {
	Type       byte             // 'G', 'M', 'T', or 0 for a parameter-only block
	Number     int              // Command number (e.g., 28 for G28.2)
	Sub        int              // Decimal subcode (2 for G28.2), -1 when absent
	Parameters map[byte]float64 // Parameters (X, Y, Z, F, I, J, P, ...)
	Comment    string           // Comment text
}

// Parser handles G-code parsing
type Parser struct{}

// NewParser creates a new G-code parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine parses a single line of G-code. Blank and comment-only lines
// return a nil command.
func (p *Parser) ParseLine(line string) (*Command, error) {
	cmd := &Command{
		Sub:        -1,
		Parameters: make(map[byte]float64),
	}
	empty := true

	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
			continue
		case c == ';' || c == '%':
			if c == ';' {
				cmd.Comment = line[i+1:]
			}
			i = len(line)
			continue
		case c == '(':
			end := i + 1
			for end < len(line) && line[end] != ')' {
				end++
			}
			cmd.Comment = line[i+1 : end]
			i = end + 1
			continue
		case !isLetter(c):
			return nil, ErrUnexpectedChar
		}

		letter := toUpper(c)
		i++
		value, newPos := parseFloat(line, i)
		if newPos <= i {
			return nil, ErrBadNumber
		}
		i = newPos
		empty = false

		switch letter {
		case 'N':
			// line numbers are accepted and ignored
		case 'G', 'M', 'T':
			if cmd.Type != 0 {
				// one command word per block; later words become parameters
				cmd.Parameters[letter] = value
				continue
			}
			cmd.Type = letter
			whole := math.Trunc(value)
			cmd.Number = int(whole)
			if frac := math.Round((value - whole) * 10); frac != 0 {
				cmd.Sub = int(frac)
			}
		default:
			cmd.Parameters[letter] = value
		}
	}

	if empty {
		return nil, nil
	}
	return cmd, nil
}

// parseFloat parses a floating-point number from the string starting at pos
func parseFloat(s string, pos int) (float64, int) {
	if pos >= len(s) {
		return 0, pos
	}

	negative := false
	if s[pos] == '-' {
		negative = true
		pos++
	} else if s[pos] == '+' {
		pos++
	}

	start := pos
	intPart := 0.0
	fracPart := 0.0
	fracDigits := 0

	// Parse integer part
	for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
		intPart = intPart*10 + float64(s[pos]-'0')
		pos++
	}

	// Parse fractional part
	if pos < len(s) && s[pos] == '.' {
		pos++
		fracStart := pos
		for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
			fracPart = fracPart*10.0 + float64(s[pos]-'0')
			pos++
		}
		fracDigits = pos - fracStart
	}

	if pos == start || (pos == start+1 && s[start] == '.') {
		return 0, start - 1 // No valid number found
	}

	value := intPart
	if fracDigits > 0 {
		value += fracPart / math.Pow10(fracDigits)
	}
	if negative {
		value = -value
	}
	return value, pos
}

// isLetter checks if a byte is a letter
func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// toUpper converts a byte to uppercase
func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// HasParameter checks if a parameter exists in the command
func (cmd *Command) HasParameter(param byte) bool {
	_, ok := cmd.Parameters[param]
	return ok
}

// GetParameter gets a parameter value, or returns the default if not present
func (cmd *Command) GetParameter(param byte, defaultValue float64) float64 {
	if val, ok := cmd.Parameters[param]; ok {
		return val
	}
	return defaultValue
}
