// Package translate rewrites analyze-mode argument pieces into arguments that
// are valid inside the container, collecting the bind mounts they need.
package translate

import (
	"github.com/WorldWideTelescope/wwt-aligner/internal/argsproto"
)

// Result is the outcome of translating one payload.
type Result struct {
	// Mounts are sorted by host directory.
	Mounts []Mount

	// SideChannel holds the --x-host-path / --x-container-path pairs, one
	// pair per path piece in piece order.
	SideChannel []string

	// Args are the assembled forwarded arguments, led by the subcommand.
	Args []string
}

// Translate maps every piece of payload through m and assembles the result.
// The first failing path piece aborts translation.
func Translate(m *Mapper, payload argsproto.Payload) (Result, error) {
	fragments := make([]Fragment, 0, len(payload.Pieces))
	for _, piece := range payload.Pieces {
		text, err := m.Map(piece)
		if err != nil {
			return Result{}, err
		}
		fragments = append(fragments, Fragment{Text: text, Incomplete: piece.Incomplete})
	}

	return Result{
		Mounts:      m.Mounts(),
		SideChannel: SideChannelArgs(m.Pairs()),
		Args:        Assemble(fragments),
	}, nil
}

// SideChannelArgs renders pairs as agent flags: host path first, then the
// container path, for each pair in order.
func SideChannelArgs(pairs []PathPair) []string {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		out = append(out,
			argsproto.HostPathFlag+"="+p.Host,
			argsproto.ContainerPathFlag+"="+p.Container,
		)
	}
	return out
}
