// Package analytics keeps a local SQLite journal of settled mutations: what kind
// they were, whether they succeeded, how long the round trip took and, on
// failure, a coarse error category.
package analytics

import "os"

// Event represents a single settled mutation
type Event struct {
	ID         int64
	Timestamp  int64
	Kind       string
	MutationID string
	ItemID     int64
	Success    bool
	DurationMs int64
	ErrorType  string
	Status     int
}

// KindSummary aggregates the events of one mutation kind
type KindSummary struct {
	Kind          string
	Total         int
	Succeeded     int
	Failed        int
	AvgDurationMs float64
	LastErrorType string
}

// SuccessRate returns the fraction of successful mutations, 0 when there are none.
func (s KindSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// IsEnabledFromEnv checks the TODOQ_ANALYTICS_ENABLED environment variable
// and returns the effective enabled state. Environment variable overrides the
// config value.
func IsEnabledFromEnv(configEnabled bool) bool {
	envVal := os.Getenv("TODOQ_ANALYTICS_ENABLED")
	if envVal == "" {
		return configEnabled
	}
	return envVal == "true" || envVal == "1"
}
