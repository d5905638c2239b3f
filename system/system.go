// Package system assembles the controller, machine, link, interpreters, and
// reporters into one running unit.
package system

import (
	"context"
	"fmt"

	"g2go/config"
	"g2go/controller"
	"g2go/core"
	"g2go/gcode"
	"g2go/jsonmode"
	"g2go/link"
	"g2go/machine"
	"g2go/report"
	"g2go/textmode"
)

// System coordinates all components.
type System struct {
	Config     *config.Config
	Settings   *config.Settings
	Machine    *machine.Machine
	Link       *link.Link
	Reporter   *report.Reporter
	Gcode      *gcode.Interpreter
	Controller *controller.Controller
	Indicator  *core.PinIndicator
}

// New builds a system over cfg. All output goes through the link; gpio
// supplies the limit switch inputs and the indicator output.
func New(cfg *config.Config, clock core.Clock, gpio core.GPIODriver) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := machine.New(cfg, clock, gpio)
	if err != nil {
		return nil, err
	}

	pin, err := core.LookupPin(cfg.Machine.IndicatorPin)
	if err != nil {
		return nil, fmt.Errorf("indicator: %w", err)
	}
	indicator, err := core.NewPinIndicator(gpio, pin)
	if err != nil {
		return nil, fmt.Errorf("indicator: %w", err)
	}

	s := &System{
		Config:    cfg,
		Settings:  config.NewSettings(cfg),
		Machine:   m,
		Indicator: indicator,
	}

	s.Link = link.New(link.Signals{
		Reset:      m.RequestReset,
		Feedhold:   m.RequestFeedhold,
		CycleStart: m.RequestCycleStart,
		QueueFlush: m.RequestQueueFlush,
	})

	// The reporter needs the controller's mode, and the controller needs the
	// reporter; the closure breaks the cycle.
	mode := func() core.ProtocolMode {
		if s.Controller == nil {
			return core.ModeText
		}
		return s.Controller.Mode()
	}
	s.Reporter = report.New(s.Link, m, &cfg.Reports, mode)
	s.Gcode = gcode.NewInterpreter(&cfg.Machine, m)

	units := func() string {
		if s.Gcode.State().Inches {
			return "inch"
		}
		return "mm"
	}

	ctrl, err := controller.New(cfg.Controller, controller.Deps{
		Link:      s.Link,
		Machine:   m,
		Reporter:  s.Reporter,
		Text:      textmode.NewParser(s.Link, s.Settings, s.Reporter),
		JSON:      jsonmode.NewParser(s.Link, s.Gcode, s.Settings, s.Reporter, m),
		Gcode:     s.Gcode,
		Help:      textmode.NewHelp(s.Link),
		Responder: textmode.NewResponder(s.Link, units),
		Clock:     clock,
		Indicator: indicator,
		Tasks: controller.SubsystemTasks{
			HardReset:          s.hardReset,
			PollSwitches:       m.PollSwitches,
			LimitSwitch:        m.LimitSwitchHandler,
			FeedholdSequencing: m.FeedholdSequencing,
			PlanHold:           m.PlanHold,
			MotorPower:         m.MotorPower,
			StatusReport:       s.Reporter.StatusReportCallback,
			QueueReport:        s.Reporter.QueueReportCallback,
			Arc:                m.ArcCallback,
			Homing:             m.HomingCallback,
		},
		Service: m.Service,
	})
	if err != nil {
		return nil, err
	}
	ctrl.RegisterDiagnostics(s.Settings)
	s.Controller = ctrl
	return s, nil
}

// hardReset also returns the G-code modal state to its defaults.
func (s *System) hardReset() core.Status {
	st := s.Machine.HardResetHandler()
	if st == core.StatusDone {
		s.Gcode.Reset()
	}
	return st
}

// Run drives the controller until ctx is cancelled, then detaches the link.
func (s *System) Run(ctx context.Context) error {
	defer s.Link.Detach()
	return s.Controller.Run(ctx)
}
