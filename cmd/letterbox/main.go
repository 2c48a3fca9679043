// Letterbox is the firmware of a battery-powered sensor node.
//
// On every wake it latches its own power supply, measures the battery
// voltage, joins the wireless network, publishes the reading to an MQTT
// broker and then powers itself off. Each stage has a bounded retry
// budget; running out of any of them ends the cycle early, always
// through the same power-down path. Configuration is loaded from a
// single YAML file (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	letterbox run             Run one wake cycle (the normal boot entry)
//	letterbox sample          Measure and print the supply voltage
//	letterbox init [dir]      Write an example config.yaml
//	letterbox version         Print version and build information
//	letterbox -o json version Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nugget/letterbox/internal/buildinfo"
	"github.com/nugget/letterbox/internal/config"
	"github.com/nugget/letterbox/internal/hw"
	"github.com/nugget/letterbox/internal/metrics"
	"github.com/nugget/letterbox/internal/mqtt"
	"github.com/nugget/letterbox/internal/wake"
	"github.com/nugget/letterbox/internal/wifi"
)

// main only builds the OS-level environment and hands it to [run], so
// the whole command can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Logs go to stdout; usage after a bad
// command line goes to stderr and the caller prints the returned error
// there too. Arguments are parsed by hand to keep flag's package
// globals out of parallel tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				printUsage(stderr)
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "run":
		return runWake(ctx, stdout, configPath)
	case "sample":
		return runSample(stdout, configPath, outputFmt)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "", "help":
		return printUsage(stdout)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Letterbox - battery sensor node")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: letterbox [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run          Run one wake cycle and power down")
	fmt.Fprintln(w, "  sample       Measure and print the supply voltage")
	fmt.Fprintln(w, "  init [dir]   Write an example config.yaml (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/letterbox/config.yaml, /etc/letterbox/config.yaml")
	return nil
}

// runWake executes one wake cycle. It returns an error when the cycle
// gave up, so a supervisor that outlives a failed power-off sees it.
//
// Nothing is torn down after Run: the controller closes the broker
// session before power-down, and the GPIO lines, power hold included,
// stay requested until the process exits.
func runWake(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	// Validate has already checked the level.
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := config.NewLogger(stdout, level, cfg.LogFormat)
	logger.Info("letterbox starting", "version", buildinfo.Version, "config", cfgPath)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	host, port, useTLS, err := mqtt.ParseBroker(cfg.Broker.URL)
	if err != nil {
		return err
	}
	transport := mqtt.New(mqtt.Config{
		Username:  cfg.Broker.Username,
		Password:  cfg.Broker.Password,
		QoS:       byte(cfg.Broker.QoS),
		Retain:    cfg.Broker.Retain,
		KeepAlive: uint16(cfg.Broker.KeepAliveSec),
		Timeout:   cfg.Broker.ConnectTimeout(),
		TLS:       useTLS,
	}, logger.With("component", "mqtt"))

	radio := wifi.New(wifi.Config{
		Interface:      cfg.Network.Interface,
		ConnectCommand: cfg.Network.ConnectCommand,
	}, logger.With("component", "wifi"))

	adc, board, _, err := openHardware(cfg, logger)
	if err != nil {
		return err
	}

	recorder := metrics.New(metrics.PushConfig{
		URL:      cfg.Metrics.PushgatewayURL,
		Job:      cfg.Metrics.Job,
		Instance: metricsInstance(cfg),
		Timeout:  cfg.Metrics.PushTimeout(),
	}, logger.With("component", "metrics"))

	ctrl := wake.New(wake.Deps{
		ADC:       adc,
		Radio:     radio,
		Transport: transport,
		Board:     board,
		Logger:    logger,
		Recorder:  recorder,
	}, wake.ConfigFrom(cfg, host, port))

	reason := ctrl.Run(ctx)
	if reason.Fatal() {
		return fmt.Errorf("wake cycle %s ended: %s", ctrl.CycleID(), reason)
	}
	return nil
}

// runSample takes one voltage measurement the way a wake cycle does and
// prints it. Used to calibrate reference_volts on the bench.
func runSample(w io.Writer, configPath string, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := config.NewLogger(io.Discard, slog.LevelInfo, "text")
	adc, _, closeBoard, err := openHardware(cfg, logger)
	if err != nil {
		return err
	}
	defer closeBoard()

	wc := wake.ConfigFrom(cfg, "", 0)
	v := wake.NewSampler(adc, wake.SystemClock(), wc.Sampler, logger).Sample()
	payload := v.Payload(wc.PayloadWidth)

	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"volts":   float64(v),
			"payload": payload,
		})
	}
	fmt.Fprintf(w, "supply:  %.4f V\n", float64(v))
	fmt.Fprintf(w, "payload: %s\n", payload)
	return nil
}

// openHardware returns the ADC and board for cfg. The close function is
// always safe to call.
func openHardware(cfg *config.Config, logger *slog.Logger) (wake.ADC, wake.Board, func(), error) {
	if cfg.Hardware.Simulate {
		sim := hw.NewSim(cfg.Hardware.SimulatedRaw, logger.With("component", "sim"))
		return sim, sim, func() {}, nil
	}

	board, err := hw.NewGPIOBoard(hw.BoardConfig{
		Chip:          cfg.Hardware.Chip,
		IndicatorLine: cfg.Hardware.IndicatorLine,
		PowerHoldLine: cfg.Hardware.PowerHoldLine,
		PowerOff:      cfg.Hardware.PowerOff,
	}, logger.With("component", "hw"))
	if err != nil {
		return nil, nil, nil, err
	}
	closeBoard := func() {
		if err := board.Close(); err != nil {
			logger.Warn("release gpio lines", "error", err)
		}
	}
	return hw.NewIIOADC(cfg.Sampler.Device), board, closeBoard, nil
}

func metricsInstance(cfg *config.Config) string {
	if cfg.Metrics.Instance != "" {
		return cfg.Metrics.Instance
	}
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}

// loadConfig locates and parses the configuration file and returns it
// with the path it was read from.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
