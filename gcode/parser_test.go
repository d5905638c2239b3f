package gcode

import (
	"testing"
)

func TestParseBasicCommands(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		input   string
		cmdType byte
		cmdNum  int
		sub     int
		params  map[byte]float64
	}{
		{
			input:   "G0 X10 Y20",
			cmdType: 'G',
			cmdNum:  0,
			sub:     -1,
			params:  map[byte]float64{'X': 10, 'Y': 20},
		},
		{
			input:   "G1 X100.5 Y200.25 F3000",
			cmdType: 'G',
			cmdNum:  1,
			sub:     -1,
			params:  map[byte]float64{'X': 100.5, 'Y': 200.25, 'F': 3000},
		},
		{
			input:   "G28.2 X0 Y0",
			cmdType: 'G',
			cmdNum:  28,
			sub:     2,
			params:  map[byte]float64{'X': 0, 'Y': 0},
		},
		{
			input:   "m30",
			cmdType: 'M',
			cmdNum:  30,
			sub:     -1,
			params:  map[byte]float64{},
		},
		{
			input:   "N20 G92 X0 Y0 Z0",
			cmdType: 'G',
			cmdNum:  92,
			sub:     -1,
			params:  map[byte]float64{'X': 0, 'Y': 0, 'Z': 0},
		},
		{
			input:   "g1x5y-2.5",
			cmdType: 'G',
			cmdNum:  1,
			sub:     -1,
			params:  map[byte]float64{'X': 5, 'Y': -2.5},
		},
	}

	for _, test := range tests {
		cmd, err := parser.ParseLine(test.input)
		if err != nil {
			t.Errorf("Failed to parse '%s': %v", test.input, err)
			continue
		}

		if cmd == nil {
			t.Errorf("Got nil command for '%s'", test.input)
			continue
		}

		if cmd.Type != test.cmdType {
			t.Errorf("Expected type %c, got %c for '%s'", test.cmdType, cmd.Type, test.input)
		}

		if cmd.Number != test.cmdNum {
			t.Errorf("Expected number %d, got %d for '%s'", test.cmdNum, cmd.Number, test.input)
		}

		if cmd.Sub != test.sub {
			t.Errorf("Expected subcode %d, got %d for '%s'", test.sub, cmd.Sub, test.input)
		}

		for param, value := range test.params {
			if !cmd.HasParameter(param) {
				t.Errorf("Missing parameter %c in '%s'", param, test.input)
			} else if cmd.GetParameter(param, 0) != value {
				t.Errorf("Expected %c=%f, got %c=%f in '%s'",
					param, value, param, cmd.GetParameter(param, 0), test.input)
			}
		}
		if len(cmd.Parameters) != len(test.params) {
			t.Errorf("Expected %d parameters, got %d in '%s'", len(test.params), len(cmd.Parameters), test.input)
		}
	}
}

func TestParseComments(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine("G1 (move over) X10 ; trailing")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cmd.GetParameter('X', 0) != 10 {
		t.Errorf("Expected X=10 after inline comment, got %f", cmd.GetParameter('X', 0))
	}
	if cmd.Comment != " trailing" {
		t.Errorf("Expected trailing comment, got %q", cmd.Comment)
	}

	for _, line := range []string{"", "   ", "; only a comment", "(setup)", "%"} {
		cmd, err := parser.ParseLine(line)
		if err != nil || cmd != nil {
			t.Errorf("Expected nil command for %q, got %v, %v", line, cmd, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		input string
		err   error
	}{
		{"G1 X", ErrBadNumber},
		{"G1 X-", ErrBadNumber},
		{"G1 X.", ErrBadNumber},
		{"G1 X10 #5", ErrUnexpectedChar},
	}
	for _, test := range tests {
		_, err := parser.ParseLine(test.input)
		if err != test.err {
			t.Errorf("Expected %v for '%s', got %v", test.err, test.input, err)
		}
	}
}

func TestParseNegativeNumbers(t *testing.T) {
	parser := NewParser()

	cmd, err := parser.ParseLine("G1 X-10.5 Y-0.25 Z+3")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cmd.GetParameter('X', 0) != -10.5 {
		t.Errorf("Expected X=-10.5, got %f", cmd.GetParameter('X', 0))
	}
	if cmd.GetParameter('Y', 0) != -0.25 {
		t.Errorf("Expected Y=-0.25, got %f", cmd.GetParameter('Y', 0))
	}
	if cmd.GetParameter('Z', 0) != 3 {
		t.Errorf("Expected Z=3, got %f", cmd.GetParameter('Z', 0))
	}
}
