package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/openfelt/tableclient/internal/config"
	"github.com/openfelt/tableclient/internal/console"
	"github.com/openfelt/tableclient/internal/gateway"
	"github.com/openfelt/tableclient/internal/media"
	"github.com/openfelt/tableclient/internal/mesh"
	"github.com/openfelt/tableclient/internal/protocol"
	"github.com/openfelt/tableclient/internal/rtc"
	"github.com/openfelt/tableclient/internal/state"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"tableclient.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" long:"server" help:"Server URL to connect to (overrides config)"`
	Player   string `short:"p" long:"player" help:"Player name (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	LogFile  string `long:"log-file" help:"Log file path (overrides config)"`
	NoMedia  bool   `long:"no-media" help:"Join without camera or microphone"`
	Headless bool   `long:"headless" help:"Run without the terminal UI, logging to stderr"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.Server != "" {
		cfg.Server.URL = CLI.Server
	}
	if CLI.Player != "" {
		cfg.Player.Name = CLI.Player
	}
	if CLI.LogLevel != "" {
		cfg.UI.LogLevel = CLI.LogLevel
	}
	if CLI.LogFile != "" {
		cfg.UI.LogFile = CLI.LogFile
	}
	if CLI.NoMedia {
		off := false
		cfg.Media.Video = &off
		cfg.Media.Audio = &off
	}

	// Get player name if not set
	if cfg.Player.Name == "" {
		fmt.Print("Enter your player name: ")
		var input string
		_, _ = fmt.Scanln(&input)
		cfg.Player.Name = strings.TrimSpace(input)
		if cfg.Player.Name == "" {
			fmt.Println("Player name is required")
			ctx.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	// The TUI owns the terminal, so logs go to a file unless headless.
	logOut := os.Stderr
	if !CLI.Headless {
		logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Printf("Failed to open log file: %v\n", err)
			ctx.Exit(1)
		}
		defer func() { _ = logFile.Close() }()
		logOut = logFile
	}

	logger := log.New(logOut)
	switch cfg.UI.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	logger.Info("starting table client",
		"server", cfg.Server.URL,
		"player", cfg.Player.Name,
		"config", CLI.Config)

	if err := run(cfg, logger); err != nil {
		fmt.Printf("Error: %v\n", err)
		ctx.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := state.NewStore(logger)
	dialer := rtc.NewDialer(rtc.Config{STUNServers: cfg.RTC.STUNServers}, logger)

	capture := func(ctx context.Context) (media.Source, error) {
		if !cfg.Media.VideoEnabled() && !cfg.Media.AudioEnabled() {
			return nil, media.ErrUnsupported
		}
		return media.Capture(media.Options{
			Video:     cfg.Media.VideoEnabled(),
			Audio:     cfg.Media.AudioEnabled(),
			MaxWidth:  cfg.Media.MaxWidth,
			MaxHeight: cfg.Media.MaxHeight,
		}, logger)
	}

	// The gateway and the orchestrator each hold the other: signals in go
	// gateway -> orchestrator, signals out go orchestrator -> gateway. The
	// relay breaks the construction cycle; it is filled in before Connect
	// starts the read pump.
	relay := &signalRelay{}
	gw := gateway.New(cfg.Server.URL, store, relay, logger, quartz.NewReal())
	orchestrator := mesh.New(store, gw, dialer, capture, logger)
	relay.handler = orchestrator

	if err := gw.Connect(); err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	if err := gw.Join(cfg.Player.Name); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return orchestrator.Run(groupCtx)
	})

	if !CLI.Headless {
		group.Go(func() error {
			defer stop()
			return console.Run(store, gw, logger)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// signalRelay forwards inbound signaling to a handler assigned after
// construction.
type signalRelay struct {
	handler gateway.SignalHandler
}

func (r *signalRelay) HandleSignal(peerID string, sig protocol.SignalData) {
	if r.handler != nil {
		r.handler.HandleSignal(peerID, sig)
	}
}
