package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			SourceApp:          "com.linecorp.line.android",
			GroupName:          "工作接單群組",
			StartHour:          7,
			EndHour:            19,
			MaxEventsPerMinute: 120,
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Port: 18791,
		},
		Stats: StatsConfig{
			Backend: "file",
			Path:    "~/.grabbot/stats.json",
		},
		Report: ReportConfig{
			Enabled: true,
			Cron:    "0 19 * * *",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("GRABBOT_SOURCE_APP", &c.Watch.SourceApp)
	envStr("GRABBOT_GROUP_NAME", &c.Watch.GroupName)
	envStr("GRABBOT_BRIDGE_HOST", &c.Bridge.Host)
	envStr("GRABBOT_BRIDGE_TOKEN", &c.Bridge.Token)
	envStr("GRABBOT_STATS_BACKEND", &c.Stats.Backend)
	envStr("GRABBOT_STATS_PATH", &c.Stats.Path)

	if v := os.Getenv("GRABBOT_BRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Bridge.Port = port
		}
	}
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
