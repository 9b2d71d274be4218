// Package argsproto decodes the payload the containerized agent prints in
// analyze mode. The payload tells the launcher which argument pieces are
// plain text and which are host paths, and which ports the real invocation
// must publish.
package argsproto

import (
	"fmt"
	"net"
	"strings"
)

// SupportedVersion is the highest payload version this launcher understands.
const SupportedVersion = 1

// DefaultHostIP is used for published ports that omit host_ip.
const DefaultHostIP = "127.0.0.1"

// Reserved agent flags. They precede the subcommand on the agent command line.
const (
	AnalyzeFlag       = "--x-analyze-args-mode"
	HostPathFlag      = "--x-host-path"
	ContainerPathFlag = "--x-container-path"
)

// Piece is one fragment of a forwarded argument.
type Piece struct {
	Text string `json:"text"`

	// Incomplete joins this piece to the next one without a separator, which
	// is how `--output=<path>` style arguments are expressed.
	Incomplete bool `json:"incomplete"`

	// PathPreExists marks a host path that must exist before the agent runs.
	PathPreExists bool `json:"path_pre_exists"`

	// PathCreated marks a host path the agent will create; its directory has
	// to be mounted writable.
	PathCreated bool `json:"path_created"`
}

// IsPath reports whether the piece names a host filesystem path.
func (p Piece) IsPath() bool {
	return p.PathPreExists || p.PathCreated
}

// PublishedPort maps a host interface port to a container port.
type PublishedPort struct {
	HostIP        string `json:"host_ip"`
	HostPort      uint16 `json:"host_port"`
	ContainerPort uint16 `json:"container_port"`
}

// DockerPublish renders the value for `docker run -p`.
func (p PublishedPort) DockerPublish() string {
	return fmt.Sprintf("%s:%d:%d", bracketHost(p.hostIP()), p.HostPort, p.ContainerPort)
}

// URL is the address a browser on the host uses to reach the port.
func (p PublishedPort) URL() string {
	host := strings.TrimSuffix(strings.TrimPrefix(p.hostIP(), "["), "]")
	switch host {
	case "0.0.0.0", "::":
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprint(p.HostPort)))
}

func (p PublishedPort) hostIP() string {
	if host := strings.TrimSpace(p.HostIP); host != "" {
		return host
	}
	return DefaultHostIP
}

func bracketHost(host string) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		return "[" + host + "]"
	}
	return host
}

// Payload is the decoded analyze-mode output.
type Payload struct {
	Version        int             `json:"version"`
	Pieces         []Piece         `json:"pieces"`
	PublishedPorts []PublishedPort `json:"published_ports"`
}

// PathPieces counts pieces that carry a host path.
func (p Payload) PathPieces() int {
	n := 0
	for _, piece := range p.Pieces {
		if piece.IsPath() {
			n++
		}
	}
	return n
}
