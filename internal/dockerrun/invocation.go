// Package dockerrun talks to the container CLI: it runs the agent in
// analyze mode, builds the real `docker run` invocation and executes it.
package dockerrun

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/WorldWideTelescope/wwt-aligner/internal/argsproto"
	"github.com/WorldWideTelescope/wwt-aligner/internal/translate"
)

const (
	// DefaultProgram is the container CLI used when none is configured.
	DefaultProgram = "docker"

	// DefaultImage is the agent image used when none is configured.
	DefaultImage = "aasworldwidetelescope/aligner:latest"

	// AgentCommand is the inner command run inside the image.
	AgentCommand = "wwt-aligner-agent"

	containerNamePrefix = "wwt-aligner-"
)

// Environment variables carrying the host user's identity, so files the
// agent creates on writable mounts belong to that user.
const (
	EnvHostUID = "HOST_UID"
	EnvHostGID = "HOST_GID"
)

var (
	hostIdentity     = hostIdentityImpl
	newContainerName = func() string {
		return containerNamePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
)

// Invocation is one fully specified `docker run`. It is built once and
// handed to an Invoker; nothing mutates it afterwards.
type Invocation struct {
	Program        string
	Name           string
	Interactive    bool
	SELinuxRelabel bool
	Image          string
	Mounts         []translate.Mount
	Ports          []argsproto.PublishedPort
	Env            []string
	Args           []string
}

// CommandLine renders the arguments passed to Program.
func (inv Invocation) CommandLine() []string {
	args := []string{"run", "--rm"}
	if inv.Name != "" {
		args = append(args, "--name", inv.Name)
	}
	if inv.Interactive {
		args = append(args, "-i", "-t")
	}
	for _, m := range inv.Mounts {
		mode := m.Mode()
		if inv.SELinuxRelabel {
			mode += ",z"
		}
		args = append(args, "-v", fmt.Sprintf("%s:%s:%s", m.HostDir, m.ContainerDir, mode))
	}
	for _, p := range inv.Ports {
		args = append(args, "-p", p.DockerPublish())
	}
	for _, env := range inv.Env {
		args = append(args, "-e", env)
	}
	args = append(args, inv.Image)
	args = append(args, inv.Args...)
	return args
}

// Builder holds the launcher-level settings shared by every invocation.
type Builder struct {
	Program        string
	Image          string
	Interactive    bool
	SELinuxRelabel bool

	// Env holds extra variables for the agent, keyed by name.
	Env map[string]string
}

// Build composes the real invocation from a translated payload.
func (b Builder) Build(result translate.Result, ports []argsproto.PublishedPort) Invocation {
	mounts := make([]translate.Mount, len(result.Mounts))
	copy(mounts, result.Mounts)
	sort.SliceStable(mounts, func(i, j int) bool {
		return mounts[i].HostDir < mounts[j].HostDir
	})

	published := make([]argsproto.PublishedPort, len(ports))
	copy(published, ports)

	forwarded := make([]string, 0, 1+len(result.SideChannel)+len(result.Args))
	forwarded = append(forwarded, AgentCommand)
	forwarded = append(forwarded, result.SideChannel...)
	forwarded = append(forwarded, result.Args...)

	return Invocation{
		Program:        b.program(),
		Name:           newContainerName(),
		Interactive:    b.Interactive,
		SELinuxRelabel: b.SELinuxRelabel,
		Image:          b.image(),
		Mounts:         mounts,
		Ports:          published,
		Env:            b.environment(),
		Args:           forwarded,
	}
}

func (b Builder) environment() []string {
	var env []string
	if uid, gid, ok := hostIdentity(); ok {
		env = append(env,
			fmt.Sprintf("%s=%d", EnvHostUID, uid),
			fmt.Sprintf("%s=%d", EnvHostGID, gid),
		)
	}
	keys := make([]string, 0, len(b.Env))
	for k := range b.Env {
		if k == EnvHostUID || k == EnvHostGID || strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+b.Env[k])
	}
	return env
}

func (b Builder) program() string {
	if p := strings.TrimSpace(b.Program); p != "" {
		return p
	}
	return DefaultProgram
}

func (b Builder) image() string {
	if img := strings.TrimSpace(b.Image); img != "" {
		return img
	}
	return DefaultImage
}
