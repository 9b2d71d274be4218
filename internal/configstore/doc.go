// Package configstore loads the launcher's persisted settings from an
// XDG-compliant config.toml. Values found here sit below environment
// variables and command-line flags in precedence; a missing file yields the
// built-in defaults.
package configstore
