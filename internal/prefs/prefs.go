// Package prefs persists dashboard preferences that the operator changes
// at runtime. They live apart from config.toml so the dashboard never
// rewrites a hand-edited config file.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds runtime-chosen dashboard settings. Empty fields defer to
// config.toml.
type Prefs struct {
	Theme    string `toml:"theme"`
	Selected string `toml:"selected,omitempty"` // last focused tile, e.g. "fan"
}

const defaultPrefsPath = "~/.config/roost/prefs.toml"

// DefaultPath returns the expanded default preferences path.
func DefaultPath() string {
	resolved, err := expandPath(defaultPrefsPath)
	if err != nil {
		return defaultPrefsPath
	}
	return resolved
}

// Load reads preferences from path. A missing or unreadable file yields
// empty Prefs; preferences are never worth failing startup over.
func Load(path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Prefs{}
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Prefs{}
	}
	var p Prefs
	if err := toml.Unmarshal(data, &p); err != nil {
		return Prefs{}
	}
	p.Theme = strings.TrimSpace(p.Theme)
	p.Selected = strings.ToLower(strings.TrimSpace(p.Selected))
	return p
}

// Save writes p to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
