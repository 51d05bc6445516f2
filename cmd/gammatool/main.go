package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/gammatool/internal/app"
	"github.com/dokzlo13/gammatool/internal/config"
	"github.com/dokzlo13/gammatool/internal/controller"
	"github.com/dokzlo13/gammatool/internal/ramp"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file (optional)")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	deviceIndex := flag.Int("d", -1, "Target a specific display index (e.g., 0); default all")
	gammaArg := flag.String("g", "1.0", "Target gamma as G or R:G:B (e.g., 0.8), 1.0 is neutral")
	temperature := flag.Int("t", 6500, "Target color temperature in Kelvin, 6500 is neutral")
	removeMode := flag.Bool("r", false, "Remove existing profile created by this tool")
	infoMode := flag.Bool("i", false, "Display info about the current profile")
	flag.Parse()

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	if *removeMode && *infoMode {
		fmt.Fprintln(os.Stderr, "Error: -r and -i are mutually exclusive.")
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		cfg = loaded
	}

	// Setup logging
	setupLogging(cfg.Log.Level, cfg.Log.UseJSON, cfg.Log.Colors)

	req := controller.Request{Mode: controller.ModeApply}
	switch {
	case *infoMode:
		req.Mode = controller.ModeInfo
	case *removeMode:
		req.Mode = controller.ModeRemove
	default:
		gamma, err := ramp.ParseSpec(*gammaArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := ramp.ValidateTemperature(*temperature); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		req.Gamma = gamma
		req.Temperature = *temperature
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx := app.SignalContext()

	err = application.Run(ctx, req, *deviceIndex)
	application.Close()
	if err != nil {
		log.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
