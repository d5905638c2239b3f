package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"g2go/config"
	"g2go/core"
	"g2go/host/serial"
	"g2go/link"
	"g2go/system"
)

var (
	configPath string
	device     string
	baud       int
	listen     string
	useStdio   bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "g2go",
	Short:         "Motion controller command loop",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run the controller loop on one command channel.

Exactly one of --device, --listen, or --stdio selects the channel. With
--listen the controller accepts a single websocket client at /ws.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
		if err != nil {
			return err
		}
		core.SetLogger(log)

		gpio := core.NewMemoryGPIO()
		sys, err := system.New(cfg, core.NewSystemClock(), gpio)
		if err != nil {
			return fmt.Errorf("failed to build controller: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := attach(ctx, sys.Link, &cfg.Comm, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return err
		}

		log.Info().
			Str("device", cfg.Comm.Device).
			Str("listen", cfg.Comm.Listen).
			Bool("stdio", useStdio).
			Msg("g2go started")
		err = sys.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the firmware build",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "g2go firmware build %.2f version %.2f platform %d\n",
			core.FirmwareBuild, core.FirmwareVersion, core.HardwarePlatform)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	runCmd.Flags().StringVar(&device, "device", "", "serial device path (overrides config)")
	runCmd.Flags().IntVar(&baud, "baud", 0, "serial baud rate (overrides config)")
	runCmd.Flags().StringVar(&listen, "listen", "", "websocket listen address (overrides config)")
	runCmd.Flags().BoolVar(&useStdio, "stdio", false, "use stdin/stdout as the command channel")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Comm.Device = device
	}
	if flags.Changed("baud") {
		cfg.Comm.Baud = baud
	}
	if flags.Changed("listen") {
		cfg.Comm.Listen = listen
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if useStdio {
		cfg.Comm.Device = ""
		cfg.Comm.Listen = ""
	}

	channels := 0
	for _, set := range []bool{cfg.Comm.Device != "", cfg.Comm.Listen != "", useStdio} {
		if set {
			channels++
		}
	}
	if channels != 1 {
		return nil, errors.New("choose exactly one of --device, --listen, or --stdio")
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Logger(), nil
}

// reopenInterval is how often a dropped serial device is retried.
const reopenInterval = time.Second

// keepAttached reopens the connection whenever the link drops it, so an
// unplugged USB device is picked up again and gets a fresh startup.
func keepAttached(ctx context.Context, l *link.Link, open func() (io.ReadWriteCloser, error), every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	log := core.Component("serial")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if l.Connected() {
			continue
		}
		conn, err := open()
		if err != nil {
			log.Debug().Err(err).Msg("reopen failed")
			continue
		}
		if err := l.Attach(conn); err != nil {
			_ = conn.Close()
			log.Debug().Err(err).Msg("reattach failed")
			continue
		}
		log.Info().Msg("serial device reattached")
	}
}

// attach connects the configured command channel to l. The websocket server
// runs until ctx is done.
func attach(ctx context.Context, l *link.Link, comm *config.CommConfig, in io.Reader, out io.Writer) error {
	switch {
	case comm.Device != "":
		open := func() (io.ReadWriteCloser, error) {
			return serial.Open(&serial.Config{Device: comm.Device, Baud: comm.Baud})
		}
		port, err := open()
		if err != nil {
			return err
		}
		if err := l.Attach(port); err != nil {
			return err
		}
		go keepAttached(ctx, l, open, reopenInterval)
		return nil

	case comm.Listen != "":
		mux := http.NewServeMux()
		mux.Handle("/ws", l.WebSocketHandler())
		srv := &http.Server{Addr: comm.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				core.Logger().Error().Err(err).Msg("websocket server failed")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdown)
		}()
		return nil
	}
	return l.Attach(link.StdioConn(in, out))
}
