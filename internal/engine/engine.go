// Package engine drives copy and move operations item by item: resolving
// destination names, checking conflicts, invoking the transfer backend,
// recording manifest outcomes, and aggregating results across a pool of
// concurrent workers.
package engine

import (
	"context"
	"time"

	"objcp/storageurl"
)

// Mode selects between plain copy semantics and move semantics
// (copy followed by deletion of the source on confirmed success).
type Mode string

const (
	// ModeCopy transfers items and leaves sources in place
	ModeCopy Mode = "copy"

	// ModeMove transfers items and deletes each source after its copy succeeds
	ModeMove Mode = "move"
)

// ItemRef describes one enumerated source item: the naming-shape facts the
// resolver needs plus the concrete expanded URL. Values are immutable once
// produced by the enumerator.
type ItemRef struct {
	// Src is the literal source token the caller named
	Src storageurl.URL

	// Expanded is the concrete item the token expanded to; it differs
	// from Src when wildcards or recursion were involved
	Expanded storageurl.URL

	// NamesContainer reports whether the original token denoted a
	// container (directory, bucket, or bucket subdirectory)
	NamesContainer bool

	// IsMultiSource reports whether the overall request references more
	// than one source item
	IsMultiSource bool

	// Size is the item's size in bytes, when the enumerator knows it
	Size int64
}

// Status tags the terminal state of one item.
type Status string

const (
	// StatusSuccess means the item was transferred
	StatusSuccess Status = "success"

	// StatusSkip means the item was intentionally not transferred
	StatusSkip Status = "skip"

	// StatusFail means the transfer was attempted and failed
	StatusFail Status = "fail"
)

// Outcome is the terminal result of one item. Exactly one Outcome is
// produced per enumerated item that reaches the task.
type Outcome struct {
	// Status is the terminal state
	Status Status

	// Reason describes why the item was skipped (StatusSkip only)
	Reason string

	// Err is the failure detail (StatusFail only)
	Err error

	// Bytes is the number of bytes transferred
	Bytes int64

	// Elapsed is the wall time spent in the backend transfer
	Elapsed time.Duration

	// Result identifies the created object; it may be version-qualified
	Result storageurl.URL

	// MD5 is the content checksum, when the backend produced one
	MD5 string
}

// TransferOptions carries per-run policy into the backend.
type TransferOptions struct {
	// NoClobber rejects the transfer with ErrItemExists when the
	// destination already exists
	NoClobber bool

	// PreserveACL carries source ACLs through in-cloud copies
	PreserveACL bool
}

// TransferResult reports a completed backend transfer.
type TransferResult struct {
	// Bytes is the number of bytes moved
	Bytes int64

	// MD5 is the content checksum, empty when unavailable
	MD5 string

	// Result identifies the created object, version-qualified when the
	// destination bucket assigns versions
	Result storageurl.URL

	// SessionID is the resumable-session (multipart upload) identifier,
	// empty for single-shot transfers
	SessionID string
}

// Backend performs the actual data movement between storage locations.
// Implementations classify failures with the module's sentinel errors:
// ErrItemExists for no-clobber rejections, ErrObjectNotFound /
// ErrBucketNotFound for missing sources or containers, ErrAccessDenied
// for authorization failures.
type Backend interface {
	// Transfer moves one item from src to dst
	Transfer(ctx context.Context, src, dst storageurl.URL, opts TransferOptions) (*TransferResult, error)

	// Delete removes the item named by u (any version qualifier included)
	Delete(ctx context.Context, u storageurl.URL) error

	// BucketVersioning reports whether the bucket has versioning enabled
	BucketVersioning(ctx context.Context, bucket string) (bool, error)
}

// Enumerator lazily yields one ItemRef per logical source item. The
// sequence is single-pass and finite; Next returns io.EOF when exhausted.
type Enumerator interface {
	Next(ctx context.Context) (*ItemRef, error)
}

// AclApplier applies a canned ACL to a destination object. It is invoked
// as a black box after a successful transfer, addressed by the destination
// URL only.
type AclApplier interface {
	Apply(ctx context.Context, dst storageurl.URL, acl string) error
}

// Recorder is the persisted manifest consulted for restart and appended to
// as items complete. Implementations serialize their own writes.
type Recorder interface {
	// WasHandled reports whether src already has a successful or skipped entry
	WasHandled(src string) bool

	// Initialize registers an item before its transfer is attempted
	Initialize(src, dst string, sourceSize int64)

	// SetChecksum records the content checksum for an initialized item
	SetChecksum(src, md5 string)

	// SetSessionID records the resumable-session identifier for an item
	SetSessionID(src, id string)

	// SetResult finalizes an item with an outcome tag and optional detail
	SetResult(src string, bytesTransferred int64, result, description string) error
}

// Manifest result tags understood by Recorder implementations.
const (
	resultOK    = "OK"
	resultSkip  = "skip"
	resultError = "error"
)
