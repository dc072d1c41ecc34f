// Package main is the entry point for novamon, a host telemetry monitor.
// It can run the periodic collection loop, print a one-off snapshot of any
// domain, and act on processes (terminate, change priority).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Guliveer/novamon/internal/collector"
	"github.com/Guliveer/novamon/internal/config"
	"github.com/Guliveer/novamon/internal/gpu"
	"github.com/Guliveer/novamon/internal/models"
	"github.com/Guliveer/novamon/internal/platform"
	"github.com/Guliveer/novamon/internal/scheduler"
	"github.com/Guliveer/novamon/internal/sender"
	"github.com/Guliveer/novamon/internal/smart"
)

// version is set at build time via -ldflags.
var version = "dev"

const usage = `Usage: novamon [global flags] <command> [args]

Commands:
  run                      collect periodically and post batches
  snapshot <domain|all>    print one snapshot as JSON
  kill <pid> [--force]     terminate a process
  nice <pid>               print process niceness
  renice <pid> <nice>      set process niceness (-20..19)
  write-config [path]      save the effective configuration as YAML

Domains: cpu memory disk network processes gpu sensors system

Global flags:
`

// rateDomains need two refreshes before their rates mean anything.
var rateDomains = map[string]bool{"cpu": true, "network": true, "processes": true}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := pflag.NewFlagSet("novamon", pflag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.String("config", "", "Path to configuration file (default: search standard locations)")
	logLevel := global.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion := global.Bool("version", false, "Show version and exit")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Printf("novamon %s\n", version)
		return 0
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	cmd, cmdArgs := rest[0], rest[1:]

	// run and write-config contribute their own overrides to the layered load.
	var cli config.CLIOverrides
	cli.LogLevel = *logLevel
	if cmd == "run" || cmd == "write-config" {
		cmdFlags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
		cmdFlags.StringVar(&cli.URL, "url", "", "Ingest server URL (empty disables sending)")
		cmdFlags.StringVar(&cli.Token, "token", "", "Machine token")
		cmdFlags.DurationVar(&cli.Interval, "interval", 0, "Collection interval")
		if err := cmdFlags.Parse(cmdArgs); err != nil {
			return 2
		}
		cmdArgs = cmdFlags.Args()
	}

	var cfg *config.Config
	var err error
	if global.Changed("config") {
		cfg, err = config.LoadLayered(cli, embeddedConfig, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return 1
	}

	if cmd == "write-config" {
		return writeConfigCmd(cmdArgs, cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	mon := newMonitors(cfg, logger)
	defer mon.close()

	switch cmd {
	case "run":
		return runLoop(ctx, cfg, mon, logger)
	case "snapshot":
		return snapshotCmd(ctx, cmdArgs, mon)
	case "kill":
		return killCmd(ctx, cmdArgs, mon)
	case "nice":
		return niceCmd(cmdArgs, mon)
	case "renice":
		return reniceCmd(cmdArgs, mon)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		global.Usage()
		return 2
	}
}

// monitors wires every domain monitor into one registry.
type monitors struct {
	registry  *collector.Registry
	processes *collector.ProcessMonitor
	gpu       *collector.GPUMonitor
	workers   int
}

func newMonitors(cfg *config.Config, logger *zap.Logger) *monitors {
	sysRoot := cfg.Collection.SysRoot

	m := &monitors{
		registry: collector.NewRegistry(cfg.Collection.Workers, logger),
		processes: collector.NewProcessMonitor(platform.New(),
			collector.ProcessOptions{TopN: cfg.Collection.TopProcesses}, logger),
		gpu:     collector.NewGPUMonitor(gpu.Options{SysRoot: sysRoot, NVML: cfg.GPU.NVMLEnabled}, logger),
		workers: cfg.Collection.Workers,
	}

	m.registry.Register(collector.NewCPUMonitor(sysRoot, logger))
	m.registry.Register(collector.NewMemoryMonitor(logger))
	m.registry.Register(collector.NewDiskMonitor(collector.DiskOptions{
		SmartEnabled: cfg.Disk.SmartEnabled,
		SmartTTL:     cfg.Disk.SmartTTL.Duration,
		Reader:       smart.NewReader(cfg.Disk.SmartctlPath, nil, logger),
		SysRoot:      sysRoot,
	}, logger))
	m.registry.Register(collector.NewNetworkMonitor(logger))
	m.registry.Register(m.processes)
	m.registry.Register(m.gpu)
	m.registry.Register(collector.NewSensorsMonitor(collector.SensorsOptions{
		MinRefreshInterval: cfg.Sensors.MinRefreshInterval.Duration,
		SysRoot:            sysRoot,
	}, logger))
	m.registry.Register(collector.NewSystemMonitor(logger))

	return m
}

func (m *monitors) close() {
	_ = m.gpu.Close()
}

// runLoop starts the scheduler and, when a server is configured, the sender.
// It blocks until ctx is cancelled.
func runLoop(ctx context.Context, cfg *config.Config, mon *monitors, logger *zap.Logger) int {
	sched := scheduler.New(mon.registry, cfg, logger)

	if cfg.SendingEnabled() {
		snd, err := sender.New(cfg.Server, logger)
		if err != nil {
			logger.Error("Failed to create sender", zap.Error(err))
			return 1
		}
		sched.OnBatchReady(func(batch []models.MetricSnapshot) {
			// Shutdown flushes the last batch after ctx is done.
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			defer cancel()
			_ = snd.Send(sendCtx, batch)
		})
	} else {
		logger.Info("No server URL configured, batches are discarded")
	}

	logger.Info("Starting novamon",
		zap.String("version", version),
		zap.String("server", cfg.Server.URL),
		zap.Duration("collect_interval", cfg.Collection.Interval.Duration),
		zap.Duration("batch_interval", cfg.Collection.BatchInterval.Duration))

	sched.Start(ctx)
	logger.Info("novamon stopped")
	return 0
}

func snapshotCmd(ctx context.Context, args []string, mon *monitors) int {
	fs := pflag.NewFlagSet("snapshot", pflag.ContinueOnError)
	gap := fs.Duration("gap", time.Second, "Delay between the two refreshes of rate-based domains")
	compact := fs.Bool("compact", false, "Print JSON without indentation")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: novamon snapshot <domain|all>")
		return 2
	}
	domain := strings.ToLower(fs.Arg(0))

	var out interface{}
	if domain == "all" {
		for _, c := range mon.registry.Collectors() {
			if rateDomains[c.Name()] {
				// Prime the rate baselines before the real round.
				_, _ = c.Collect(ctx)
			}
		}
		if !sleep(ctx, *gap) {
			return 1
		}
		out = scheduler.Assemble(mon.registry.CollectAll(ctx), time.Now())
	} else {
		c, ok := mon.registry.Lookup(domain)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown domain %q (want one of: %s, all)\n", domain, strings.Join(domainNames(mon), ", "))
			return 2
		}
		pool := collector.NewPool(mon.workers)
		if rateDomains[domain] {
			if _, err := pool.Collect(ctx, c); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", domain, err)
				return 1
			}
			if !sleep(ctx, *gap) {
				return 1
			}
		}
		v, err := pool.Collect(ctx, c)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", domain, err)
			return 1
		}
		out = v
	}

	enc := json.NewEncoder(os.Stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode snapshot: %v\n", err)
		return 1
	}
	return 0
}

func killCmd(ctx context.Context, args []string, mon *monitors) int {
	fs := pflag.NewFlagSet("kill", pflag.ContinueOnError)
	force := fs.BoolP("force", "f", false, "Send SIGKILL instead of SIGTERM")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: novamon kill <pid> [--force]")
		return 2
	}
	pid, err := parsePID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if _, err := mon.processes.Terminate(ctx, pid, *force); err != nil {
		return reportActionError(err)
	}
	fmt.Printf("signalled %d\n", pid)
	return 0
}

func niceCmd(args []string, mon *monitors) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: novamon nice <pid>")
		return 2
	}
	pid, err := parsePID(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	nice, err := mon.processes.Nice(pid)
	if err != nil {
		return reportActionError(err)
	}
	fmt.Println(nice)
	return 0
}

// reniceCmd parses its arguments by hand: a negative niceness such as -5
// would otherwise be taken for a shorthand flag.
func reniceCmd(args []string, mon *monitors) int {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: novamon renice <pid> <nice>")
		return 2
	}
	pid, err := parsePID(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	nice, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid nice value %q\n", args[1])
		return 2
	}

	if err := mon.processes.SetPriority(pid, nice); err != nil {
		return reportActionError(err)
	}
	fmt.Printf("set nice of %d to %d\n", pid, nice)
	return 0
}

// writeConfigCmd saves cfg, with every layer applied, to the given path or
// to the first standard location.
func writeConfigCmd(args []string, cfg *config.Config) int {
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, "usage: novamon write-config [path]")
		return 2
	}
	path := config.DefaultPath()
	if len(args) == 1 {
		path = args[0]
	}

	if err := config.WriteConfig(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "write config: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", path)
	return 0
}

// Exit codes of failed process actions, one per error kind.
var actionExitCodes = map[collector.ErrorCode]int{
	collector.ErrProcessNotFound:  3,
	collector.ErrPermissionDenied: 4,
	collector.ErrSystemAccess:     5,
	collector.ErrGpuNotAvailable:  6,
}

func reportActionError(err error) int {
	fmt.Fprintln(os.Stderr, err)
	if code, ok := actionExitCodes[collector.CodeOf(err)]; ok {
		return code
	}
	return 1
}

func parsePID(s string) (int32, error) {
	pid, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return int32(pid), nil
}

func domainNames(mon *monitors) []string {
	var names []string
	for _, c := range mon.registry.Collectors() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// initLogger creates a zap logger based on the configuration.
// Console output goes to stderr so snapshot JSON on stdout stays clean;
// a JSON log file is added when configured.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Logging.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	cores := []zapcore.Core{consoleCore}

	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			fileCore := zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			)
			cores = append(cores, fileCore)
		}
	}

	return zap.New(zapcore.NewTee(cores...))
}
