package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"cursortop/cli/internal/config"
	"cursortop/cli/internal/output"
	"cursortop/internal/monitor"
)

const version = "0.1.0"

func main() {
	command := "status"
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "status", "watch", "dashboard", "config":
			command = args[0]
			args = args[1:]
		}
	}

	switch command {
	case "watch":
		runWatch(args)
	case "dashboard":
		if err := monitor.OpenDashboard(); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening dashboard: %v\n", err)
			os.Exit(1)
		}
	case "config":
		runConfig(args)
	default:
		runStatus(args)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)

	var (
		jsonOut  bool
		compact  bool
		dbPath   string
		showHelp bool
		showVer  bool
	)

	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")
	fs.BoolVar(&compact, "compact", false, "Force compact table output")
	fs.BoolVar(&compact, "c", false, "Force compact table output")
	fs.StringVar(&dbPath, "db-path", "", "Override path to Cursor's state.vscdb")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showHelp, "h", false, "Show help")
	fs.BoolVar(&showVer, "version", false, "Show version")
	fs.BoolVar(&showVer, "v", false, "Show version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `cursortop - Cursor subscription usage overview

Usage: cursortop [command] [options]

Commands:
  status     Show current usage (default)
  watch      Run the background refresh daemon
  dashboard  Open the Cursor usage dashboard in the browser
  config     Configure refresh interval and timeouts

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cursortop
  cursortop --json
  cursortop watch install --interval 2m
  cursortop config --interval 30s
`)
	}

	fs.Parse(args)

	if showVer {
		fmt.Printf("cursortop version %s\n", version)
		return
	}
	if showHelp {
		fs.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if dbPath == "" {
		dbPath = cfg.DBPath
	}

	m := monitor.New(monitor.Options{
		DBPath:      dbPath,
		HTTPTimeout: cfg.Timeout(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout()*2+5*time.Second)
	defer cancel()
	m.Refresh(ctx)

	if errMsg := m.Err(); errMsg != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errMsg)
		os.Exit(1)
	}

	data := m.UsageData()
	if data == nil {
		fmt.Fprintln(os.Stderr, "Error: no usage data available")
		os.Exit(1)
	}

	if jsonOut {
		output.PrintJSON(data)
		return
	}
	output.PrintSummary(data, output.TableOptions{ForceCompact: compact})
}

// watchService implements service.Interface for the background refresh loop
type watchService struct {
	interval time.Duration
	cancel   context.CancelFunc
	logger   service.Logger
}

func (s *watchService) Start(svc service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
	return nil
}

func (s *watchService) Stop(svc service.Service) error {
	s.cancel()
	return nil
}

func (s *watchService) run(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error loading config: %v", err)
		}
		cfg = &config.Config{}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	if s.logger != nil {
		s.logger.Infof("Refreshing usage every %s", s.interval)
	}

	m := monitor.New(monitor.Options{
		DBPath:      cfg.DBPath,
		Interval:    s.interval,
		HTTPTimeout: cfg.Timeout(),
		Logger:      logger,
	})
	m.Run(ctx)
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	var interval time.Duration
	fs.DurationVar(&interval, "interval", 0, "Refresh interval (e.g., 60s, 5m); defaults to the configured value")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cursortop watch [command] [options]

Commands:
  (none)      Run the refresh loop in the foreground
  install     Install as a background service
  start       Start the background service
  stop        Stop the background service
  uninstall   Remove the background service
  status      Show service status

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cursortop watch                  Run in the foreground
  cursortop watch install          Install service (refreshes every minute)
  cursortop watch install --interval 5m
  cursortop watch stop
`)
	}

	// Check for service commands before parsing flags
	var svcCommand string
	if len(args) > 0 {
		switch args[0] {
		case "install", "start", "stop", "uninstall", "status", "run":
			svcCommand = args[0]
			args = args[1:]
		}
	}

	fs.Parse(args)

	if interval <= 0 {
		cfg, err := config.Load()
		if err != nil {
			cfg = &config.Config{}
		}
		interval = cfg.Interval()
	}

	svcConfig := &service.Config{
		Name:        "cursortop-watch",
		DisplayName: "cursortop Watch Service",
		Description: "Periodically refreshes Cursor subscription usage data",
		Arguments:   []string{"watch", "run", fmt.Sprintf("--interval=%s", interval)},
	}

	svc := &watchService{interval: interval}
	s, err := service.New(svc, svcConfig)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	switch svcCommand {
	case "install":
		if err := s.Install(); err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		if err := s.Start(); err != nil {
			log.Fatalf("Service installed but failed to start: %v", err)
		}
		fmt.Printf("Service installed and started.\n")
		fmt.Printf("Refresh interval: %s\n", interval)

	case "start":
		if err := s.Start(); err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		fmt.Println("Service started.")

	case "stop":
		if err := s.Stop(); err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		fmt.Println("Service stopped.")

	case "uninstall":
		s.Stop() // ignore error
		if err := s.Uninstall(); err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		fmt.Println("Service uninstalled.")

	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Printf("Service status: not installed or error (%v)\n", err)
			return
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service status: running")
		case service.StatusStopped:
			fmt.Println("Service status: stopped")
		default:
			fmt.Println("Service status: unknown")
		}

	case "run":
		// Running under the service manager
		logger, err := s.Logger(nil)
		if err == nil {
			svc.logger = logger
		}
		if err := s.Run(); err != nil && logger != nil {
			logger.Error(err)
		}

	default:
		// Foreground mode
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		fmt.Printf("Refreshing usage every %s. Ctrl-C to stop.\n", interval)
		svc.run(ctx)
	}
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var (
		interval string
		timeout  string
		dbPath   string
		show     bool
	)
	fs.StringVar(&interval, "interval", "", "Refresh interval for watch mode (e.g., 60s, 5m)")
	fs.StringVar(&timeout, "timeout", "", "HTTP request timeout (e.g., 10s, 30s)")
	fs.StringVar(&dbPath, "db-path", "", "Override path to Cursor's state.vscdb")
	fs.BoolVar(&show, "show", false, "Show current configuration")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cursortop config [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cursortop config --interval 2m --timeout 15s
  cursortop config --show
`)
	}

	fs.Parse(args)

	if show {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Refresh interval: %s\n", cfg.Interval())
		fmt.Printf("HTTP timeout: %s\n", cfg.Timeout())
		if cfg.DBPath != "" {
			fmt.Printf("Database path: %s\n", cfg.DBPath)
		}
		return
	}

	if interval == "" && timeout == "" && dbPath == "" {
		fs.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	if interval != "" {
		if err := config.ValidateDuration(interval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.RefreshInterval = interval
	}
	if timeout != "" {
		if err := config.ValidateDuration(timeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg.HTTPTimeout = timeout
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration saved.")
}
