package node

import "github.com/arborfs/arbor/internal/wireerr"

var errWordIndexOutOfRange = wireerr.NewNotFound("word index", "")

var (
	errFileNotFound     = func(name string) *wireerr.Error { return wireerr.NewNotFound("file", name) }
	errCheckpointExists = func(tag string) *wireerr.Error { return wireerr.NewConflict("checkpoint tag already exists: " + tag) }
	errNoCheckpoint     = func(tag string) *wireerr.Error { return wireerr.NewNotFound("checkpoint", tag) }
	errNoHistory        = wireerr.NewNotFound("undo history", "")
	errSentenceLocked   = wireerr.NewConflict("sentence is locked")
	errFileHasLocks     = wireerr.NewConflict("file has locked sentences")
	errPermissionDenied = wireerr.NewUnauthorized("permission denied")
	errNoPendingRequest = wireerr.NewNotFound("access request", "")
	errDuplicateRequest = wireerr.NewConflict("duplicate pending access request")
)
