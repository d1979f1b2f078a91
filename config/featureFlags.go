package config

import (
	"os"
	"strings"
)

// LifecycleEventsEnabled gates publishing of expired-entry facts to Pub/Sub.
// Deployments without a notifier can leave this off and the sweep still runs.
//
// Set via env:
// - LIFECYCLE_EVENTS_ENABLED=true
func LifecycleEventsEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LIFECYCLE_EVENTS_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// TrendCacheEnabled gates the Redis cache in front of the budget trend read path.
// When off, every read recomputes the projection from the database.
//
// Set via env:
// - TREND_CACHE_ENABLED=true (default true when Redis is connected)
func TrendCacheEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TREND_CACHE_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
