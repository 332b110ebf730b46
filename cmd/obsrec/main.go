/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/obsrec/internal/clock"
	"github.com/friendsincode/obsrec/internal/config"
	"github.com/friendsincode/obsrec/internal/db"
	"github.com/friendsincode/obsrec/internal/epgstation"
	"github.com/friendsincode/obsrec/internal/eventbus"
	"github.com/friendsincode/obsrec/internal/events"
	"github.com/friendsincode/obsrec/internal/journal"
	"github.com/friendsincode/obsrec/internal/logbuffer"
	"github.com/friendsincode/obsrec/internal/logging"
	"github.com/friendsincode/obsrec/internal/obs"
	"github.com/friendsincode/obsrec/internal/recorder"
	"github.com/friendsincode/obsrec/internal/scheduler"
	"github.com/friendsincode/obsrec/internal/scheduler/state"
	"github.com/friendsincode/obsrec/internal/server"
	"github.com/friendsincode/obsrec/internal/telemetry"
	"github.com/friendsincode/obsrec/internal/version"
)

var (
	logger     zerolog.Logger
	cfg        *config.Config
	configPath string
	logBuf     = logbuffer.New(1000)
)

var rootCmd = &cobra.Command{
	Use:   "obsrec",
	Short: "obsrec - record scheduled TV programs with OBS",
	Long: "obsrec follows the reservation list of an EPGStation compatible recorder for one channel " +
		"and starts and stops OBS recording around each program.",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reservation driven recording loop",
	RunE:  runLoop,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the obsrec version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $OBSREC_CONFIG_FILE)")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.SetupWithBuffer(cfg.Environment, cfg.LogLevel, logBuf)
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}
	return nil
}

func newOBSClient() *obs.Client {
	obsCfg := obs.DefaultConfig(cfg.OBSAddress(), cfg.OBSPassword)
	obsCfg.ConnectionTimeout = cfg.OBSTimeout
	obsCfg.RequestTimeout = cfg.OBSTimeout
	return obs.New(obsCfg, logger)
}

func newSource() *epgstation.Client {
	srcCfg := epgstation.DefaultConfig(cfg.EPGStationURL)
	srcCfg.Limit = cfg.ReserveLimit
	srcCfg.Timeout = cfg.HTTPTimeout
	return epgstation.New(srcCfg, logger)
}

func runLoop(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("version", version.Version).
		Int64("channel_id", cfg.ChannelID).
		Str("obs", cfg.OBSAddress()).
		Str("epgstation", cfg.EPGStationURL).
		Msg("obsrec starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "obsrec",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers outlive the loop so the final stop event is still seen.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWG sync.WaitGroup
	defer func() {
		bgCancel()
		bgWG.Wait()
	}()

	bus := events.NewBus()
	store := state.NewStore()

	if cfg.JournalDSN != "" {
		database, err := db.Connect(cfg.JournalBackend, cfg.JournalDSN)
		if err != nil {
			return fmt.Errorf("connect journal: %w", err)
		}
		defer func() { _ = db.Close(database) }()
		if err := db.Migrate(database); err != nil {
			return err
		}
		journalDone := journal.NewService(database, bus, logger).Start(bgCtx)
		bgWG.Add(1)
		go func() {
			defer bgWG.Done()
			<-journalDone
		}()
	}

	if cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		nc, err := eventbus.Dial(natsCfg, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats forwarding disabled")
		} else {
			defer nc.Close()
			fwdDone := eventbus.NewForwarder(bus, nc, cfg.NATSSubject, logger).Start(bgCtx)
			bgWG.Add(1)
			go func() {
				defer bgWG.Done()
				<-fwdDone
			}()
		}
	}

	if cfg.StatusBind != "" {
		srv := server.New(cfg.StatusBind, store, logBuf, logger)
		bgWG.Add(1)
		go func() {
			defer bgWG.Done()
			if err := srv.Run(bgCtx); err != nil {
				logger.Error().Err(err).Msg("status server error")
			}
		}()
	}

	obsClient := newOBSClient()
	defer func() { _ = obsClient.Close() }()

	svc := scheduler.New(
		newSource(),
		recorder.NewOBSController(obsClient, logger),
		clock.Real{},
		bus,
		store,
		scheduler.Config{
			ChannelID: cfg.ChannelID,
			Margins:   scheduler.Margins(cfg.Margins),
			Scene:     cfg.OBSScene,
		},
		logger,
	)

	err = svc.Run(ctx)
	if ctx.Err() != nil {
		logger.Info().Msg("shutting down gracefully...")
	}
	bgCancel()
	bgWG.Wait()

	logger.Info().Msg("obsrec stopped")
	return err
}
