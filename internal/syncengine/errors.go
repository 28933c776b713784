package syncengine

import (
	"errors"
	"fmt"

	"github.com/mvail/odsync/internal/graph"
)

// Kind classifies a SyncError so callers can decide whether a pass should
// abort, retry, or continue past a single item.
type Kind int

// Kind values.
const (
	// KindRemoteTransport covers network failures, throttling, and server
	// errors talking to the remote API. Externally indistinguishable from
	// KindPreconditionStale: both abort the current item the same way.
	KindRemoteTransport Kind = iota
	// KindDecode covers a remote response missing a field the engine
	// requires (e.g. a delta item with no id).
	KindDecode
	// KindFilesystem covers local I/O failures: permission denied, disk
	// full, path too long.
	KindFilesystem
	// KindPreconditionStale covers an If-Match rejection: the item changed
	// remotely since the caller last read its etag.
	KindPreconditionStale
	// KindLogicalViolation covers a detected invariant break that the
	// engine cannot safely route around (e.g. a cycle in ParentID).
	KindLogicalViolation
)

// String implements fmt.Stringer for log output.
func (k Kind) String() string {
	switch k {
	case KindRemoteTransport:
		return "remote-transport"
	case KindDecode:
		return "decode"
	case KindFilesystem:
		return "filesystem"
	case KindPreconditionStale:
		return "precondition-stale"
	case KindLogicalViolation:
		return "logical-violation"
	default:
		return "unknown"
	}
}

// SyncError wraps an underlying cause with a Kind, the way graph.GraphError
// wraps a sentinel with an HTTP status.
type SyncError struct {
	Kind Kind
	Op   string // short description of what was being attempted
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncengine: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsTransportLike reports whether err should be handled the way the engine
// handles remote-transport failures: a stale precondition is, externally,
// just another reason the remote rejected the call — precondition-stale is
// surfaced as remote-transport.
func IsTransportLike(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind == KindRemoteTransport || syncErr.Kind == KindPreconditionStale
	}

	return false
}

// newSyncError wraps err as a SyncError of the given kind.
func newSyncError(kind Kind, op string, err error) *SyncError {
	return &SyncError{Kind: kind, Op: op, Err: err}
}

// IsLogicalViolation reports whether err is a SyncError of KindLogicalViolation.
func IsLogicalViolation(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind == KindLogicalViolation
	}

	return false
}

// errNotIndexed is the underlying cause for a KindLogicalViolation raised
// when a caller names a path or id the index has no row for.
func errNotIndexed(name string) error {
	return fmt.Errorf("not indexed: %s", name)
}

// wrapRemoteErr classifies an error returned by a RemoteAPI call, routing a
// stale If-Match precondition to KindPreconditionStale and everything else
// to KindRemoteTransport.
func wrapRemoteErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, graph.ErrPreconditionFailed) {
		return newSyncError(KindPreconditionStale, op, err)
	}

	return newSyncError(KindRemoteTransport, op, err)
}
