package snapshot

import "github.com/zeebo/errs"

var (
	// ErrSnapshotWrite means the snapshot object was not written; the pointer was left untouched.
	ErrSnapshotWrite = errs.Class("snapshot write failed")
	// ErrPointerWrite means the snapshot exists but the latest pointer still names the previous one.
	ErrPointerWrite = errs.Class("pointer write failed")
	// ErrDanglingPointer means the latest pointer names a snapshot that cannot be found.
	ErrDanglingPointer = errs.Class("dangling latest pointer")
	// ErrInvalidRequest covers malformed ids, keys and section names.
	ErrInvalidRequest = errs.Class("invalid request")
)
