package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/five82/roost/internal/config"
	"github.com/five82/roost/internal/controller"
	"github.com/five82/roost/internal/engine"
	"github.com/five82/roost/internal/logging"
	"github.com/five82/roost/internal/metrics"
	"github.com/five82/roost/internal/prefs"
	"github.com/five82/roost/internal/ui"
	"github.com/five82/roost/internal/version"
)

// Options configure roost. Non-zero fields override config.toml.
type Options struct {
	ConfigPath    string
	PrefsPath     string // empty uses ~/.config/roost/prefs.toml
	ControllerURL string
	PollInterval  time.Duration
	LogLevel      string
}

// Run boots the dashboard until the operator quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := startMetrics(ctx, cfg.MetricsAddr, logger)

	bridge := ui.NewBridge()
	ctrl, err := engine.New(engine.Options{
		Client:         client,
		View:           bridge,
		Notifier:       bridge,
		Logger:         logger,
		Metrics:        m,
		PollInterval:   cfg.PollInterval,
		MaxPollBackoff: cfg.MaxPollBackoff,
		OfflineAfter:   cfg.OfflineAfter,
		CascadeSkipOff: cfg.CascadeSkipOff,
	})
	if err != nil {
		return fmt.Errorf("init sync engine: %w", err)
	}
	defer ctrl.Dispose()

	logger.Info("roost starting",
		zap.String("version", version.Full()),
		zap.String("controller", client.BaseURL()),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	// The initial poll runs behind the UI so an unreachable controller
	// shows up as an offline header rather than a blank terminal.
	go func() {
		if err := ctrl.Init(ctx); err != nil {
			logger.Warn("sync engine init failed", zap.Error(err))
		}
	}()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	userPrefs := prefs.Load(prefsPath)
	theme := cfg.Theme
	if userPrefs.Theme != "" {
		theme = userPrefs.Theme
	}

	return ui.Run(ctx, ui.Options{
		Context:       ctx,
		Controller:    ctrl,
		ControllerURL: client.BaseURL(),
		ThemeName:     theme,
		Selected:      userPrefs.Selected,
		PrefsPath:     prefsPath,
		NotifyTimeout: cfg.NotifyTimeout,
	}, bridge)
}

// loadConfig reads config.toml and applies command-line overrides.
func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.ControllerURL); v != "" {
		cfg.ControllerURL = v
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
		if cfg.MaxPollBackoff < cfg.PollInterval {
			cfg.MaxPollBackoff = cfg.PollInterval
		}
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newClient(cfg config.Config, logger *zap.Logger) (*controller.Client, error) {
	policy := controller.Policy{
		Timeout:   cfg.RequestTimeout,
		Retries:   cfg.Retries,
		BaseDelay: cfg.RetryBase,
		MaxDelay:  cfg.RetryMax,
	}
	client, err := controller.NewClient(cfg.ControllerURL, policy, logger,
		controller.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("init controller client: %w", err)
	}
	return client, nil
}

// startMetrics registers collectors and serves them when addr is set.
// Without an address the engine runs with nil metrics.
func startMetrics(ctx context.Context, addr string, logger *zap.Logger) *metrics.Metrics {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go func() {
		if err := metrics.Serve(ctx, addr, reg, logger.Named("metrics")); err != nil {
			logger.Warn("metrics endpoint failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return m
}
