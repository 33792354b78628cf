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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/chat-client/chat"
)

const envServerURL = "CHAT_SERVER"

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "WebSocket chat client (terminal UI + local HTTP bridge)",
	RunE:  runClient,
}

var (
	flagConfig       string
	flagServerURL    string
	flagName         string
	flagBridgeAddr   string
	flagHeadless     bool
	flagNoAuto       bool
	flagLogLevel     string
	flagLogFile      string
	flagDialTimeout  time.Duration
	flagPingInterval time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "optional YAML config file")
	flags.StringVar(&flagServerURL, "server-url", defaultServerURL, "chat server WebSocket URL (env "+envServerURL+")")
	flags.StringVar(&flagName, "name", "", "initial user name")
	flags.StringVar(&flagBridgeAddr, "bridge-addr", "", "optional local HTTP bridge address, e.g. 127.0.0.1:8092")
	flags.BoolVar(&flagHeadless, "headless", false, "run without the terminal UI (requires --bridge-addr)")
	flags.BoolVar(&flagNoAuto, "no-auto-connect", false, "do not connect on start")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to this file (default: stderr, discarded while the UI runs)")
	flags.DurationVar(&flagDialTimeout, "dial-timeout", 10*time.Second, "timeout for a single connection attempt")
	flags.DurationVar(&flagPingInterval, "ping-interval", 30*time.Second, "keepalive ping interval (negative disables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat-client command")
	}
}

// resolveConfig applies flag > env > file > default precedence.
func resolveConfig(cmd *cobra.Command) (config, error) {
	cfg := defaultConfig()
	if flagConfig != "" {
		if err := loadConfigFile(flagConfig, &cfg); err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv(envServerURL); v != "" {
		cfg.ServerURL = v
	}

	flags := cmd.Flags()
	if flags.Changed("server-url") {
		cfg.ServerURL = flagServerURL
	}
	if flags.Changed("name") {
		cfg.Name = flagName
	}
	if flags.Changed("bridge-addr") {
		cfg.BridgeAddr = flagBridgeAddr
	}
	if flags.Changed("headless") {
		cfg.Headless = flagHeadless
	}
	if flags.Changed("no-auto-connect") {
		cfg.AutoConnect = !flagNoAuto
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	if flags.Changed("dial-timeout") {
		cfg.DialTimeout = flagDialTimeout
	}
	if flags.Changed("ping-interval") {
		cfg.PingInterval = flagPingInterval
	}
	return cfg, cfg.validate()
}

// setupLogger configures the global logger. While the terminal UI owns the
// screen, logs only go to a file.
func setupLogger(cfg config) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
		return f, nil
	case cfg.Headless:
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	default:
		log.Logger = zerolog.Nop()
	}
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	opener := chat.WSOpener{PingInterval: cfg.PingInterval}
	d := chat.NewDispatcher(cfg.ServerURL, opener,
		chat.WithLogger(log.Logger),
		chat.WithIdentity(cfg.Name),
		chat.WithAutoConnect(cfg.AutoConnect),
		chat.WithDialTimeout(cfg.DialTimeout),
		chat.WithRegisterer(reg),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })

	if cfg.BridgeAddr != "" {
		srv := &http.Server{
			Addr:              cfg.BridgeAddr,
			Handler:           NewBridge(d, reg),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		log.Info().Msgf("[chat] bridge listening at http://%s", cfg.BridgeAddr)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("bridge: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("[chat] bridge shutdown error")
			}
			return nil
		})
	}

	if !cfg.Headless {
		g.Go(func() error {
			defer stop()
			return runUI(gctx, d, cfg.ServerURL)
		})
	}

	err = g.Wait()
	log.Info().Msg("[chat] shutdown complete")
	return err
}
