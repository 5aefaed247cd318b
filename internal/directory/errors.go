package directory

import "github.com/arborfs/arbor/internal/wireerr"

// asWireErr unwraps err to a *wireerr.Error, falling back to a generic
// Internal error for anything that didn't originate in this package.
func asWireErr(err error) (*wireerr.Error, bool) {
	if werr, ok := wireerr.As(err); ok {
		return werr, true
	}
	return wireerr.NewInternal(err.Error()), false
}

var (
	errFileNotFound     = func(name string) *wireerr.Error { return wireerr.NewNotFound("file", name) }
	errDuplicateFile    = func(name string) *wireerr.Error { return wireerr.NewConflict("file already exists: " + name) }
	errPermissionDenied = wireerr.NewUnauthorized("permission denied")
	errNotOwner         = wireerr.NewUnauthorized("only the owner may perform this operation")
	errSlotInactive     = wireerr.NewInternal("node slot is inactive")
	errNoNodesAvailable = wireerr.NewInternal("no nodes registered")
	errExecDisabled     = wireerr.NewUnauthorized("exec is disabled")
	errDuplicateNode    = func(addr string) *wireerr.Error { return wireerr.NewConflict("node already registered: " + addr) }
	errRegistryFull     = wireerr.NewInternal("node registry is full")
	errACLFull          = wireerr.NewConflict("ACL already holds the maximum number of entries")
)
