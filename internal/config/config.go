// Package config is the layered configuration singleton: flags,
// environment, and config.toml, resolved through viper the way the
// teacher's internal/config resolves its own BD_* settings, but over
// this module's own key set (spec §9 ambient config, SPEC_FULL §9).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper singleton. Should be called once at
// startup, before any Get* call.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	configFileSet := false

	// 1. Walk up from CWD looking for a project-local moobase.toml.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, "moobase.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	// 2. User config directory.
	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "moobase", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// 3. Home directory.
	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".moobase", "config.toml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("MOOBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("home", defaultHome())
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("socket.path", "")
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("clone.timeout", "30s")
	v.SetDefault("clone.remote_url", "")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	return nil
}

func defaultHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".moobase")
	}
	return ".moobase"
}

// Path returns the config.toml path viper loaded, or "" if none was
// found (defaults/env only). serve uses this to arm a fsnotify watch.
func Path() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value, used for hot-reload and
// command-line flag precedence.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns every resolved setting.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// Reload re-reads the config file at path (the fsnotify watcher's
// callback), updating only the live-reloadable keys: log.level and
// socket.path. Other keys require a process restart to take effect.
func Reload(path string) error {
	if v == nil {
		return nil
	}
	var doc struct {
		Log struct {
			Level string `toml:"level"`
		} `toml:"log"`
		Socket struct {
			Path string `toml:"path"`
		} `toml:"socket"`
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reload %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc.Log.Level != "" {
		v.Set("log.level", doc.Log.Level)
	}
	if doc.Socket.Path != "" {
		v.Set("socket.path", doc.Socket.Path)
	}
	return nil
}
