package runner

import (
	"fmt"
	"io"
	"strings"
)

var (
	productVersion = "dev"
	productCommit  = "unknown"
	productBuilt   = "unknown"
)

// SetVersion records build metadata printed by --version.
func SetVersion(version, commit, buildDate string) {
	if v := strings.TrimSpace(version); v != "" {
		productVersion = v
	}
	if c := strings.TrimSpace(commit); c != "" {
		productCommit = c
	}
	if d := strings.TrimSpace(buildDate); d != "" {
		productBuilt = d
	}
}

func versionTag() string {
	v := strings.TrimSpace(productVersion)
	if v == "" {
		return "dev"
	}
	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "v") || lower == "dev" {
		return v
	}
	return "v" + v
}

func writeVersion(w io.Writer) {
	shortHash := productCommit
	if len(shortHash) > 7 {
		shortHash = shortHash[:7]
	}
	fmt.Fprintf(w, "version: %s\n", versionTag())
	fmt.Fprintf(w, "git hash: %s\n", shortHash)
	fmt.Fprintf(w, "build date: %s\n", productBuilt)
}
