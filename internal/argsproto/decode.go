package argsproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrUpgradeRequired matches any VersionError via errors.Is.
var ErrUpgradeRequired = errors.New("launcher upgrade required")

// VersionError reports a payload newer than this launcher implements.
type VersionError struct {
	Version   int
	Supported int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("the agent speaks args protocol version %d but this launcher only supports up to version %d; please upgrade the launcher", e.Version, e.Supported)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrUpgradeRequired
}

// DecodeError reports a payload that does not match the wire schema.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed args protocol payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// payloadSchema describes version 1. Additional properties are allowed
// everywhere so newer agents can add fields without breaking old launchers.
const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "pieces"],
  "properties": {
    "version": {"type": "integer", "minimum": 0},
    "pieces": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text"],
        "properties": {
          "text": {"type": "string"},
          "incomplete": {"type": "boolean"},
          "path_pre_exists": {"type": "boolean"},
          "path_created": {"type": "boolean"}
        }
      }
    },
    "published_ports": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["host_port", "container_port"],
        "properties": {
          "host_ip": {"type": "string"},
          "host_port": {"type": "integer", "minimum": 0, "maximum": 65535},
          "container_port": {"type": "integer", "minimum": 0, "maximum": 65535}
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
})

// Decode parses analyze-mode stdout. The version gate runs before schema
// validation: a newer agent may legitimately emit a shape this launcher
// cannot validate, and the user needs the upgrade hint rather than a parse
// failure.
func Decode(data []byte) (Payload, error) {
	var header struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return Payload{}, &DecodeError{Err: err}
	}
	if header.Version == nil {
		return Payload{}, &DecodeError{Err: errors.New("missing version")}
	}
	if *header.Version > SupportedVersion {
		return Payload{}, &VersionError{Version: *header.Version, Supported: SupportedVersion}
	}

	schema, err := compiledSchema()
	if err != nil {
		return Payload{}, fmt.Errorf("compile args protocol schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Payload{}, &DecodeError{Err: err}
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
		}
		return Payload{}, &DecodeError{Err: errors.New(strings.Join(details, "; "))}
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, &DecodeError{Err: err}
	}
	for i := range payload.PublishedPorts {
		if strings.TrimSpace(payload.PublishedPorts[i].HostIP) == "" {
			payload.PublishedPorts[i].HostIP = DefaultHostIP
		}
	}
	return payload, nil
}
