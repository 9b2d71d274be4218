// Package openflag interprets the environment toggle that keeps the launcher
// from opening a browser when a detached service starts.
package openflag

import (
	"os"
	"strings"
)

// NoBrowserEnv suppresses automatic browser launches when truthy.
const NoBrowserEnv = "WWT_ALIGNER_NO_BROWSER"

// Suppressed reports whether WWT_ALIGNER_NO_BROWSER asks the launcher not
// to open the service URL.
func Suppressed() bool {
	value, ok := os.LookupEnv(NoBrowserEnv)
	if !ok {
		return false
	}
	return IsTruthy(value)
}

// IsTruthy returns true when the provided value matches an accepted truthy
// form for boolean environment toggles.
func IsTruthy(value string) bool {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
