package configstore

// Config is the persisted launcher configuration. Zero values mean "not
// set"; callers apply their own defaults.
type Config struct {
	// Image is the agent image reference.
	Image string

	// Docker is the container CLI binary.
	Docker string

	// SELinuxRelabel appends ",z" to every bind mount mode.
	SELinuxRelabel bool

	// MountPrefix is the container directory host directories mount under.
	MountPrefix string

	// OpenBrowser is nil when the file does not mention it.
	OpenBrowser *bool

	// Env holds extra variables passed to the agent, after $VAR expansion.
	Env map[string]string
}

// New returns an empty Config with initialized maps.
func New() Config {
	return Config{Env: make(map[string]string)}
}

// BrowserEnabled reports whether detached services should open a browser.
func (c Config) BrowserEnabled() bool {
	if c.OpenBrowser == nil {
		return true
	}
	return *c.OpenBrowser
}
