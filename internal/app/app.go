// Package app wires configuration, the colord client, the operation ledger
// and the lifecycle controller into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gammatool/internal/colord"
	"github.com/dokzlo13/gammatool/internal/config"
	"github.com/dokzlo13/gammatool/internal/controller"
	"github.com/dokzlo13/gammatool/internal/ledger"
)

// App holds the assembled application.
type App struct {
	cfg    *config.Config
	client colord.Client
	ledger *ledger.Ledger
	ctrl   *controller.Controller
	out    io.Writer
}

// New creates an App talking to the real colord daemon.
func New(cfg *config.Config) (*App, error) {
	return NewWithClient(cfg, colord.NewDBusClient())
}

// NewWithClient creates an App with an injected service client.
func NewWithClient(cfg *config.Config, client colord.Client) (*App, error) {
	var led *ledger.Ledger
	if cfg.Ledger.Path != "" {
		var err error
		led, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open operation ledger: %w", err)
		}
	}

	ctrl := controller.New(client, controller.Options{
		ICCDir:           cfg.Profiles.Dir,
		ReferenceProfile: cfg.Profiles.Reference,
		Timeout:          cfg.Colord.RegistrationTimeout.Duration(),
		PollInterval:     cfg.Colord.PollInterval.Duration(),
		RateLimitRPS:     cfg.Colord.RateLimitRPS,
		Ledger:           led,
	})

	return &App{
		cfg:    cfg,
		client: client,
		ledger: led,
		ctrl:   ctrl,
		out:    os.Stdout,
	}, nil
}

// Run connects to the service and processes the selected devices. Setup
// failures (connection, enumeration, bad device index) are returned and abort
// the run; per-device failures are handled inside the controller and never
// surface here.
func (a *App) Run(ctx context.Context, req controller.Request, deviceIndex int) error {
	if err := a.client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to colord: %w", err)
	}

	devices, err := a.client.DisplayDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(a.out, "No display devices found.")
		return nil
	}

	if deviceIndex >= 0 {
		if deviceIndex >= len(devices) {
			return fmt.Errorf("invalid device index %d: only %d devices found (0 to %d)",
				deviceIndex, len(devices), len(devices)-1)
		}
		devices = devices[deviceIndex : deviceIndex+1]
	}

	a.ctrl.Run(ctx, devices, req)
	return nil
}

// Close releases the ledger and the service connection.
func (a *App) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing ledger")
		}
	}
	if err := a.client.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing colord client")
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
