package config

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"g2go/core"
)

var (
	// ErrUnknownSetting is returned for a token that names no setting.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrReadOnly is returned when writing a read-only setting.
	ErrReadOnly = errors.New("read-only setting")
	// ErrInvalidValue is returned when a value cannot be parsed or is out of range.
	ErrInvalidValue = errors.New("invalid value")
)

// setting binds a short token to a configuration field.
type setting struct {
	get func(*Config) float64
	set func(*Config, float64) error
}

// Settings exposes a Config through short mnemonic tokens such as "xvm"
// (x velocity max) or "sv" (status verbosity).
type Settings struct {
	cfg   *Config
	table map[string]setting
	ro    map[string]func() float64
}

// NewSettings builds the token table over cfg.
func NewSettings(cfg *Config) *Settings {
	s := &Settings{
		cfg:   cfg,
		table: make(map[string]setting),
		ro:    make(map[string]func() float64),
	}
	for _, name := range AxisNames {
		s.addAxis(name)
	}
	s.table["ja"] = setting{
		get: func(c *Config) float64 { return c.Machine.JunctionAccel },
		set: positive(func(c *Config, v float64) { c.Machine.JunctionAccel = v }),
	}
	s.table["acc"] = setting{
		get: func(c *Config) float64 { return c.Machine.DefaultAccel },
		set: positive(func(c *Config, v float64) { c.Machine.DefaultAccel = v }),
	}
	s.table["fr"] = setting{
		get: func(c *Config) float64 { return c.Machine.DefaultVelocity },
		set: positive(func(c *Config, v float64) { c.Machine.DefaultVelocity = v }),
	}
	s.table["ct"] = setting{
		get: func(c *Config) float64 { return c.Machine.ArcSegmentLength },
		set: positive(func(c *Config, v float64) { c.Machine.ArcSegmentLength = v }),
	}
	s.table["mt"] = setting{
		get: func(c *Config) float64 { return c.Machine.MotorIdleTimeout.Seconds() },
		set: positive(func(c *Config, v float64) {
			c.Machine.MotorIdleTimeout = time.Duration(v * float64(time.Second))
		}),
	}
	s.table["si"] = setting{
		get: func(c *Config) float64 { return float64(c.Reports.StatusInterval) / float64(time.Millisecond) },
		set: func(c *Config, v float64) error {
			if !(v >= 1) || math.IsInf(v, 0) {
				return ErrInvalidValue
			}
			c.Reports.StatusInterval = time.Duration(v * float64(time.Millisecond))
			return nil
		},
	}
	s.table["sv"] = setting{
		get: func(c *Config) float64 { return float64(c.Reports.StatusVerbosity) },
		set: func(c *Config, v float64) error {
			if v < 0 || v > 2 {
				return ErrInvalidValue
			}
			c.Reports.StatusVerbosity = int(v)
			return nil
		},
	}
	s.table["qv"] = setting{
		get: func(c *Config) float64 {
			if c.Reports.QueueReports {
				return 1
			}
			return 0
		},
		set: func(c *Config, v float64) error {
			c.Reports.QueueReports = v != 0
			return nil
		},
	}
	return s
}

func (s *Settings) addAxis(name string) {
	field := func(f func(*AxisConfig) *float64) (func(*Config) float64, func(*Config, float64)) {
		get := func(c *Config) float64 {
			a := c.Machine.Axes[name]
			return *f(&a)
		}
		set := func(c *Config, v float64) {
			a := c.Machine.Axes[name]
			*f(&a) = v
			c.Machine.Axes[name] = a
		}
		return get, set
	}
	get, set := field(func(a *AxisConfig) *float64 { return &a.VelocityMax })
	s.table[name+"vm"] = setting{get: get, set: positive(set)}
	get, set = field(func(a *AxisConfig) *float64 { return &a.SearchVelocity })
	s.table[name+"sv"] = setting{get: get, set: positive(set)}
	get, set = field(func(a *AxisConfig) *float64 { return &a.TravelMin })
	s.table[name+"tn"] = setting{get: get, set: func(c *Config, v float64) error { set(c, v); return nil }}
	get, set = field(func(a *AxisConfig) *float64 { return &a.TravelMax })
	s.table[name+"tm"] = setting{get: get, set: func(c *Config, v float64) error { set(c, v); return nil }}
}

func positive(set func(*Config, float64)) func(*Config, float64) error {
	return func(c *Config, v float64) error {
		if v <= 0 {
			return ErrInvalidValue
		}
		set(c, v)
		return nil
	}
}

// AddReadOnly registers a token whose value is computed by get and
// cannot be written.
func (s *Settings) AddReadOnly(token string, get func() float64) {
	s.ro[token] = get
}

// Get returns the value of a setting.
func (s *Settings) Get(token string) (float64, error) {
	token = strings.ToLower(token)
	if get, ok := s.ro[token]; ok {
		return get(), nil
	}
	st, ok := s.table[token]
	if !ok {
		return 0, ErrUnknownSetting
	}
	return st.get(s.cfg), nil
}

// Set parses value and stores it in the setting.
func (s *Settings) Set(token, value string) error {
	token = strings.ToLower(token)
	if _, ok := s.ro[token]; ok {
		return ErrReadOnly
	}
	st, ok := s.table[token]
	if !ok {
		return ErrUnknownSetting
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return ErrInvalidValue
	}
	return st.set(s.cfg, v)
}

// Tokens returns every known token in sorted order.
func (s *Settings) Tokens() []string {
	out := make([]string, 0, len(s.table)+len(s.ro))
	for k := range s.table {
		out = append(out, k)
	}
	for k := range s.ro {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Config returns the underlying configuration.
func (s *Settings) Config() *Config { return s.cfg }

// SettingStatus maps a Settings error to its command status.
func SettingStatus(err error) core.Status {
	switch {
	case err == nil:
		return core.StatusDone
	case errors.Is(err, ErrUnknownSetting):
		return core.StatusUnknownSetting
	case errors.Is(err, ErrReadOnly):
		return core.StatusReadOnlySetting
	case errors.Is(err, ErrInvalidValue):
		return core.StatusInvalidValue
	}
	return core.StatusError
}
