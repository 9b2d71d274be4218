package configstore

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads the persisted config from disk. Missing files result in an
// empty configuration.
func Load() (Config, error) {
	cfg := New()
	_, file, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(data, file, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeConfig(data []byte, path string, cfg *Config) error {
	if cfg.Env == nil {
		cfg.Env = make(map[string]string)
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			return &ParseError{Path: path, Err: decodeErr}
		}
		return err
	}

	if launcher, ok := raw["launcher"].(map[string]any); ok {
		for key, value := range launcher {
			switch key {
			case "image", "docker", "mount_prefix":
				s, err := toString(value)
				if err != nil {
					return fmt.Errorf("parse launcher.%s: %w", key, err)
				}
				s = strings.TrimSpace(s)
				switch key {
				case "image":
					cfg.Image = s
				case "docker":
					cfg.Docker = s
				case "mount_prefix":
					if s != "" && !strings.HasPrefix(s, "/") {
						return fmt.Errorf("parse launcher.mount_prefix: %q must be an absolute container path", s)
					}
					cfg.MountPrefix = s
				}
			case "selinux_relabel":
				b, err := toBool(value)
				if err != nil {
					return fmt.Errorf("parse launcher.%s: %w", key, err)
				}
				cfg.SELinuxRelabel = b
			case "open_browser":
				b, err := toBool(value)
				if err != nil {
					return fmt.Errorf("parse launcher.%s: %w", key, err)
				}
				cfg.OpenBrowser = &b
			}
		}
	}

	if env, ok := raw["env"].(map[string]any); ok {
		for key, value := range env {
			s, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse env.%s: %w", key, err)
			}
			trimmedKey := strings.TrimSpace(key)
			if trimmedKey == "" {
				continue
			}
			if strings.Contains(trimmedKey, "=") {
				return fmt.Errorf("parse env.%s: variable names cannot contain '='", key)
			}
			cfg.Env[trimmedKey] = expandConfigValue(s)
		}
	}

	return nil
}

// expandConfigValue substitutes $VAR and ${VAR} from the environment; $$
// yields a literal dollar sign.
func expandConfigValue(raw string) string {
	if !strings.Contains(raw, "$") {
		return raw
	}
	return os.Expand(raw, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", value)
	}
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}
