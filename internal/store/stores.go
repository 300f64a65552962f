// Package store defines the stats persistence contract. Backends live in
// subpackages: file (JSON document, the default) and sqlite.
package store

// Persisted keys. The counters have dedicated Load/Save accessors; string
// keys go through GetString/SetString.
const (
	KeyTotalAttempts = "totalAttempts"
	KeySuccessCount  = "successCount"
	KeyGroupName     = "groupName"
)

// Stats is the persisted counter pair. SuccessCount never exceeds
// TotalAttempts.
type Stats struct {
	TotalAttempts int `json:"totalAttempts"`
	SuccessCount  int `json:"successCount"`
}

// StatsStore persists the session counters and auxiliary string settings.
// Implementations are safe for concurrent use.
type StatsStore interface {
	// Load returns the persisted counters; zero values if never saved.
	Load() (Stats, error)
	// Save persists the counters durably before returning.
	Save(Stats) error
	// GetString returns the value for key, or def when unset.
	GetString(key, def string) string
	// SetString persists a string setting.
	SetString(key, value string) error
	// Close releases the backend.
	Close() error
}
