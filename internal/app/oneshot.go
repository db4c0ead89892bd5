package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/five82/roost/internal/engine"
	"github.com/five82/roost/internal/logging"
	"github.com/five82/roost/internal/logtail"
	"github.com/five82/roost/internal/state"
)

// Status fetches one snapshot and writes it to w, as aligned text or as a
// JSON object keyed by target name.
func Status(ctx context.Context, opts Options, w io.Writer, asJSON bool) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	snap, err := client.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch state: %w", err)
	}

	if asJSON {
		out := make(map[string]bool, len(state.Devices)+1)
		for _, t := range state.Targets() {
			out[t.String()] = snap.Value(t)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, t := range state.Targets() {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", t.Label(), onOff(snap.Value(t))); err != nil {
			return err
		}
	}
	return nil
}

// Toggle sends one command through the sync engine, so the automation
// policy and the disable cascade apply exactly as they do in the
// dashboard. Non-error notices are written to w.
func Toggle(ctx context.Context, opts Options, target state.Target, desired bool, w io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	notify := engine.NotifierFunc(func(message string, severity engine.Severity) {
		if severity != engine.SeverityError {
			fmt.Fprintln(w, message)
		}
	})
	ctrl, err := engine.New(engine.Options{
		Client:         client,
		Notifier:       notify,
		Logger:         logger,
		CascadeSkipOff: cfg.CascadeSkipOff,
	})
	if err != nil {
		return fmt.Errorf("init sync engine: %w", err)
	}
	defer ctrl.Dispose()

	// The automation policy needs a confirmed snapshot.
	if err := ctrl.PollOnce(ctx); err != nil {
		return fmt.Errorf("fetch state: %w", err)
	}
	_, err = ctrl.Dispatch(ctx, target, desired)
	return err
}

// ParseSwitch accepts on/off and the usual boolean spellings.
func ParseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q (want on or off)", s)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Logs writes the last n entries of the configured log file at or above
// level to w.
func Logs(opts Options, n int, level string, w io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	minLevel := zapcore.DebugLevel
	if level = strings.TrimSpace(level); level != "" {
		if err := minLevel.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid level %q", level)
		}
	}
	lines, err := logtail.Tail(cfg.LogFile, n, minLevel)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		_, err := fmt.Fprintf(w, "no log entries in %s\n", cfg.LogFile)
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
