package config

// Config is the root configuration for the grabbot daemon.
type Config struct {
	Watch  WatchConfig  `json:"watch"`
	Bridge BridgeConfig `json:"bridge"`
	Stats  StatsConfig  `json:"stats"`
	Report ReportConfig `json:"report,omitempty"`
}

// WatchConfig controls which notifications qualify and when replies may fire.
type WatchConfig struct {
	// SourceApp is the package name of the observed messaging app.
	SourceApp string `json:"source_app"`
	// GroupName must appear in the notification title (case-sensitive).
	// The persisted value in the stats store takes precedence when set.
	GroupName string `json:"group_name"`
	// StartHour/EndHour bound the eligibility window [start, end).
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
	// MaxEventsPerMinute caps notification intake; floods beyond it are
	// dropped before filtering. 0 disables the limiter.
	MaxEventsPerMinute int `json:"max_events_per_minute,omitempty"`
}

// BridgeConfig configures the WebSocket endpoint the device shim connects to.
// Token is never persisted to config.json; set it via GRABBOT_BRIDGE_TOKEN.
type BridgeConfig struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"-"`
}

// StatsConfig selects the stats persistence backend.
type StatsConfig struct {
	// Backend is "file" (default) or "sqlite".
	Backend string `json:"backend"`
	// Path is the backing file (JSON document or SQLite database).
	Path string `json:"path"`
}

// ReportConfig configures the end-of-window summary log line.
type ReportConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	// Cron is a standard 5-field cron expression.
	Cron string `json:"cron,omitempty"`
}
