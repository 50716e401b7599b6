package store

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Data Model
// --------------------------------------------------------------------------

// VersionTag identifies one committed version of a key. Seq is assigned by
// the authority and strictly increases per key; zero means "not assigned yet".
type VersionTag struct {
	RequestID string `json:"request_id"`
	Seq       uint64 `json:"seq"`
}

// Assigned reports whether the authority has stamped a sequence number
func (v VersionTag) Assigned() bool {
	return v.Seq > 0
}

func (v VersionTag) String() string {
	return fmt.Sprintf("%s@%d", v.RequestID, v.Seq)
}

// EntryState is the replication state of a key on one node
type EntryState uint8

const (
	StateClean EntryState = iota // the local value is known to be committed by the authority
	StateDirty                   // at least one newer write is still in flight for the key
)

func (s EntryState) String() string {
	if s == StateDirty {
		return "dirty"
	}
	return "clean"
}

// KeyEntry is the committed value of a key as seen by one node
type KeyEntry struct {
	Value string
	Tag   VersionTag
	State EntryState
}

// PendingWrite is a write seen on its way down the chain but not yet
// confirmed by the authority
type PendingWrite struct {
	Key       string
	RequestID string
	Tag       VersionTag
	Value     string
}

// Stats is a point in time summary of a store, used for metrics
type Stats struct {
	Keys    uint64
	Pending uint64
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the per node replica state: the committed value of every key
// plus the buffer of writes still in flight. Implementations must be safe
// for concurrent use, and operations on different keys should not block
// each other.
type IStore interface {
	// Get returns the committed entry of a key. The boolean reports whether
	// a committed value exists. State is StateDirty while any pending write
	// for the key is buffered, even when no committed value exists yet.
	Get(key string) (entry KeyEntry, found bool)

	// ApplyCommitted stores value under tag if tag.Seq is greater than the
	// committed sequence number and returns whether it did. Older or equal
	// versions are ignored. Pending writes superseded by the commit are pruned.
	ApplyCommitted(key string, tag VersionTag, value string) (applied bool)

	// BufferPending records a write in flight. A second write with the same
	// request id replaces the first one. Of the writes with an assigned
	// version only the highest per key is kept, and none at or below the
	// committed version.
	BufferPending(key, requestID string, tag VersionTag, value string)

	// ResolvePending removes and returns the pending write for (key, requestID).
	// A *Error with RetCNotFound is returned if no such write is buffered.
	ResolvePending(key, requestID string) (PendingWrite, error)

	// HasPendingFor reports whether any write for key is in flight
	HasPendingFor(key string) bool

	// CommitPending atomically resolves the pending write (key, requestID)
	// and commits its value with the given sequence number (only if newer).
	// A *Error with RetCNotFound is returned if no such write is buffered;
	// the store is left untouched in that case.
	CommitPending(key, requestID string, seq uint64) (write PendingWrite, applied bool, err error)

	// Stats returns the number of committed keys and buffered writes
	Stats() Stats
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CRAQError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// HasCode reports whether err is (or wraps) an *Error with the given code
func HasCode(err error, code RetCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Request executed successfully.
	RetCInternalError                    // 1: Request failed due to an internal error.
	RetCNotFound                         // 2: The referenced pending write or key does not exist.
	RetCProtocolViolation                // 3: The message breaks the replication protocol.
	RetCTransportFailure                 // 4: A peer could not be reached or did not answer.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCNotFound:
		return "NotFound"
	case RetCProtocolViolation:
		return "ProtocolViolation"
	case RetCTransportFailure:
		return "TransportFailure"
	default:
		return "Unknown"
	}
}
