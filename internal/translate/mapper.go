package translate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/WorldWideTelescope/wwt-aligner/internal/argsproto"
)

// DefaultMountPrefix is the container directory under which host
// directories are mounted.
const DefaultMountPrefix = "/hostdirs"

// PathError is a host path argument that cannot be conveyed into the
// container.
type PathError struct {
	Arg    string
	Reason string
	Err    error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("path argument %q: %s: %v", e.Arg, e.Reason, e.Err)
	}
	return fmt.Sprintf("path argument %q: %s", e.Arg, e.Reason)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Mount is one bind mount of a host directory.
type Mount struct {
	HostDir      string
	ContainerDir string
	ReadWrite    bool
}

// Mode returns the docker access mode for the mount.
func (m Mount) Mode() string {
	if m.ReadWrite {
		return "rw"
	}
	return "ro"
}

// PathPair records the host text and the container path of one path piece.
type PathPair struct {
	Host      string
	Container string
}

// Mapper resolves path pieces for a single invocation. It owns the
// host-directory map; a Mapper must not be reused across invocations.
type Mapper struct {
	prefix  string
	workDir string

	mounts map[string]*Mount
	pairs  []PathPair
}

// NewMapper returns a Mapper resolving relative paths against workDir. The
// working directory is canonicalized up front so relative pieces land on
// their physical location even when the caller's cwd is reached through a
// symlink.
func NewMapper(workDir, prefix string) (*Mapper, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultMountPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("mount prefix %q must be an absolute container path", prefix)
	}
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		workDir = wd
	}
	abs := workDir
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		abs = joinUncleaned(wd, abs)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory %q: %w", workDir, err)
	}
	return &Mapper{
		prefix:  path.Clean(prefix),
		workDir: canon,
		mounts:  make(map[string]*Mount),
	}, nil
}

// Map returns the text forwarded for piece. Plain pieces pass through
// unchanged; path pieces are resolved, mounted and rewritten to their
// container path.
func (m *Mapper) Map(piece argsproto.Piece) (string, error) {
	if !piece.IsPath() {
		return piece.Text, nil
	}

	var (
		resolved string
		err      error
	)
	if piece.PathCreated {
		resolved, err = m.resolveCreated(piece.Text)
	} else {
		resolved, err = m.resolveExisting(piece.Text)
	}
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(resolved) {
		return "", &PathError{Arg: piece.Text, Reason: "resolved path is not valid UTF-8"}
	}

	hostDir := filepath.Dir(resolved)
	name := filepath.Base(resolved)
	if resolved == hostDir {
		return "", &PathError{Arg: piece.Text, Reason: "cannot convey a filesystem root into the container"}
	}
	if runtime.GOOS != "windows" && strings.Contains(hostDir, ":") {
		return "", &PathError{Arg: piece.Text, Reason: fmt.Sprintf("directory %s contains ':', which cannot be bind-mounted", hostDir)}
	}

	mount := m.mountFor(hostDir)
	if piece.PathCreated {
		mount.ReadWrite = true
	}

	containerPath := path.Join(mount.ContainerDir, name)
	m.pairs = append(m.pairs, PathPair{Host: piece.Text, Container: containerPath})
	return containerPath, nil
}

// resolveExisting follows every symlink in p, including the final
// component, so the physical directory is the one mounted.
func (m *Mapper) resolveExisting(p string) (string, error) {
	if p == "" {
		return "", &PathError{Arg: p, Reason: "empty path"}
	}
	canon, err := m.canonicalize(p)
	if err != nil {
		return "", &PathError{Arg: p, Reason: "could not determine canonical path", Err: err}
	}
	return canon, nil
}

// resolveCreated canonicalizes only the directory of p; the final
// component does not exist yet and is appended unresolved.
func (m *Mapper) resolveCreated(p string) (string, error) {
	dir, base := filepath.Split(p)
	switch base {
	case "", ".", "..":
		return "", &PathError{Arg: p, Reason: "path lacks a filename component"}
	}
	if dir == "" {
		dir = "."
	}
	canonDir, err := m.canonicalize(dir)
	if err != nil {
		return "", &PathError{Arg: p, Reason: "could not determine canonical path of containing directory", Err: err}
	}
	info, err := os.Stat(canonDir)
	if err != nil {
		return "", &PathError{Arg: p, Reason: "could not access containing directory", Err: err}
	}
	if !info.IsDir() {
		return "", &PathError{Arg: p, Reason: fmt.Sprintf("%s is not a directory", canonDir)}
	}
	return filepath.Join(canonDir, base), nil
}

func (m *Mapper) canonicalize(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = joinUncleaned(m.workDir, p)
	}
	return filepath.EvalSymlinks(p)
}

// joinUncleaned appends rel to dir without lexical cleaning. A ".." in rel
// must apply to whatever its preceding component resolves to, which only
// EvalSymlinks knows.
func joinUncleaned(dir, rel string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir + rel
	}
	return dir + string(filepath.Separator) + rel
}

func (m *Mapper) mountFor(hostDir string) *Mount {
	if existing, ok := m.mounts[hostDir]; ok {
		return existing
	}
	mount := &Mount{
		HostDir:      hostDir,
		ContainerDir: ContainerDir(m.prefix, hostDir),
	}
	m.mounts[hostDir] = mount
	return mount
}

// Mounts returns the accumulated mounts sorted by host directory.
func (m *Mapper) Mounts() []Mount {
	out := make([]Mount, 0, len(m.mounts))
	for _, mount := range m.mounts {
		out = append(out, *mount)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].HostDir < out[j].HostDir
	})
	return out
}

// Pairs returns the host/container pairs in the order pieces were mapped.
func (m *Mapper) Pairs() []PathPair {
	out := make([]PathPair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// maxSanitizedLen bounds the readable part of a container directory name so
// that, with the digest suffix, it stays well under NAME_MAX.
const maxSanitizedLen = 200

// ContainerDir derives the mount point for hostDir. Bytes outside
// [A-Za-z0-9] become '_', and a short digest of the original string keeps
// directories that sanitize identically apart. Long directories keep only
// their trailing maxSanitizedLen bytes in the readable part.
func ContainerDir(prefix, hostDir string) string {
	tail := hostDir
	if len(tail) > maxSanitizedLen {
		tail = tail[len(tail)-maxSanitizedLen:]
	}
	var b strings.Builder
	b.Grow(len(tail) + 9)
	for i := 0; i < len(tail); i++ {
		c := tail[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	sum := sha256.Sum256([]byte(hostDir))
	b.WriteByte('-')
	b.WriteString(hex.EncodeToString(sum[:4]))
	return path.Join(prefix, b.String())
}
