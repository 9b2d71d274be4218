//go:build !unix

package dockerrun

// Containers on these hosts run inside a VM that owns its own identities;
// there is no host user to map onto.
func hostIdentityImpl() (uid, gid int, ok bool) {
	return 0, 0, false
}
