// Command scannerbot bridges an rtl_tcp SDR front-end into a Discord
// voice channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"hz.tools/rf"

	"github.com/brvfd/scannerbot/internal/config"
	discordbot "github.com/brvfd/scannerbot/internal/discord"
	"github.com/brvfd/scannerbot/internal/discord/commands"
	"github.com/brvfd/scannerbot/internal/health"
	"github.com/brvfd/scannerbot/internal/observe"
	"github.com/brvfd/scannerbot/internal/radio"
	"github.com/brvfd/scannerbot/internal/rtltcp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Configuration (hot-reloading watcher) ─────────────────────────────────
	logLevel := new(slog.LevelVar)

	// The reload callback needs the supervisor, which does not exist yet;
	// it is registered via SetOnChange once startup is complete.
	watcher, err := config.NewWatcher(*configPath, nil)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scannerbot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scannerbot: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("scannerbot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"driver", cfg.Radio.DriverAddr,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "scannerbot",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── SDR front-end ─────────────────────────────────────────────────────────
	sdr, err := rtltcp.Dial(ctx, cfg.Radio.DriverAddr)
	if err != nil {
		slog.Error("failed to connect to rtl_tcp", "addr", cfg.Radio.DriverAddr, "err", err)
		return 1
	}
	defer sdr.Close()
	slog.Info("sdr connected", "source", sdr.Name(), "tuner_type", sdr.TunerType())

	if err := sdr.SetSampleRate(radio.CaptureRate); err != nil {
		slog.Error("failed to set sample rate", "err", err)
		return 1
	}
	if err := sdr.SetGain(cfg.Radio.DefaultGain); err != nil {
		slog.Warn("failed to set initial gain", "err", err)
	}

	// ── Receiver ──────────────────────────────────────────────────────────────
	mode, err := radio.ParseMode(cfg.Radio.Mode)
	if err != nil {
		slog.Error("invalid startup mode", "err", err)
		return 1
	}
	sup, err := radio.NewSupervisor(sdr, sdr, radio.SupervisorConfig{
		Mode:           mode,
		Squelch:        cfg.Radio.DefaultSquelch,
		MaxBufferBytes: cfg.Radio.MaxBufferBytes,
		Chain:          chainParams(cfg.Radio),
		Tuning:         tuningConfig(cfg.Tuning),
	}, logger, metrics)
	if err != nil {
		slog.Error("failed to build receiver", "err", err)
		return 1
	}
	defer sup.Stop()

	watcher.SetOnChange(func(old, new *config.Config) {
		applyReload(config.Diff(old, new), logLevel, sup)
	})

	// ── Discord bot ───────────────────────────────────────────────────────────
	playback := discordbot.NewPlayback(sup, metrics)
	bot, err := discordbot.New(ctx, discordbot.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	}, playback)
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}
	commands.NewRadioCommands(bot, sup, watcher.Current)
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	// ── HTTP server (metrics + health) ────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(
		health.Receiver(sup.Running),
		health.Gateway(bot.Connected),
	).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("discord bot: %w", err)
		}
		return nil
	})

	if srv.Addr != "" {
		g.Go(func() error {
			slog.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shCtx)
		})
	}

	slog.Info("scannerbot ready — press Ctrl+C to shut down")

	err = g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down")
	if closeErr := bot.Close(); closeErr != nil {
		slog.Warn("discord bot close error", "err", closeErr)
	}
	sup.Stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyReload pushes the hot-reloadable parts of a config change into the
// running process. Everything else (driver address, credentials, tuning
// constants) needs a restart.
func applyReload(d config.ConfigDiff, logLevel *slog.LevelVar, sup *radio.Supervisor) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SquelchChanged {
		sup.SetSquelch(d.NewSquelch)
		slog.Info("default squelch changed", "threshold", d.NewSquelch)
	}
	if d.GainChanged {
		sup.SetGain(context.Background(), d.NewGain)
		slog.Info("default gain changed", "db", d.NewGain)
	}
	if d.PresetsChanged {
		for _, p := range d.PresetChanges {
			slog.Info("preset table changed",
				"name", p.Name, "added", p.Added, "removed", p.Removed, "modified", p.Modified)
		}
	}
}

// chainParams maps the radio config onto the demodulation chain knobs,
// keeping the defaults where the config is silent.
func chainParams(rc config.RadioConfig) radio.ChainParams {
	p := radio.DefaultChainParams()
	if rc.NFMDeviationHz > 0 {
		p.NFMDeviation = rf.Hz(rc.NFMDeviationHz)
	}
	if rc.WXDeviationHz > 0 {
		p.WXDeviation = rf.Hz(rc.WXDeviationHz)
	}
	return p
}

// tuningConfig maps the YAML tuning section onto the controller config,
// keeping the defaults where the config is silent.
func tuningConfig(tc config.TuningConfig) radio.TuningConfig {
	c := radio.DefaultTuningConfig()
	if tc.OffsetHz > 0 {
		c.Offset = rf.Hz(tc.OffsetHz)
	}
	if tc.NudgeUpHz > 0 {
		c.NudgeUp = rf.Hz(tc.NudgeUpHz)
	}
	if tc.NudgeDownHz > 0 {
		c.NudgeDown = rf.Hz(tc.NudgeDownHz)
	}
	if tc.Settle > 0 {
		c.Settle = tc.Settle.Std()
	}
	if tc.SettleLong > 0 {
		c.SettleLong = tc.SettleLong.Std()
	}
	if tc.RetrySettle > 0 {
		c.RetrySettle = tc.RetrySettle.Std()
	}
	if tc.Retries > 0 {
		c.Retries = tc.Retries
	}
	if tc.ToleranceHz > 0 {
		c.Tolerance = rf.Hz(tc.ToleranceHz)
	}
	if tc.BandwidthHz > 0 {
		c.Bandwidth = rf.Hz(tc.BandwidthHz)
	}
	return c
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
