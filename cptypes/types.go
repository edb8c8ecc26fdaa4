// Package cptypes provides shared type definitions for the objcp module.
package cptypes

import (
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// CannedACL represents a predefined access control list applied to
// destination objects after a successful copy.
type CannedACL string

// Predefined canned ACLs
const (
	// ACLPrivate grants private access (default)
	ACLPrivate CannedACL = "private"

	// ACLPublicRead grants public read access
	ACLPublicRead CannedACL = "public-read"

	// ACLPublicReadWrite grants public read and write access
	ACLPublicReadWrite CannedACL = "public-read-write"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead CannedACL = "authenticated-read"

	// ACLOwnerRead grants bucket owner read access
	ACLOwnerRead CannedACL = "bucket-owner-read"

	// ACLOwnerFullControl grants bucket owner full control
	ACLOwnerFullControl CannedACL = "bucket-owner-full-control"
)

// RunResult summarizes one copy or move invocation across all items.
type RunResult struct {
	// BytesTransferred is the total bytes moved by all items
	BytesTransferred int64

	// Elapsed is the wall-clock duration of the run. It is floored to a
	// small positive value when the platform clock resolution rounds it
	// to zero, so throughput stays finite.
	Elapsed time.Duration

	// TaskTime is the sum of per-item transfer durations across all
	// workers. With concurrent workers it normally exceeds Elapsed.
	TaskTime time.Duration

	// Copied is the number of items transferred successfully
	Copied int

	// Skipped is the number of items skipped (already handled, no-clobber)
	Skipped int

	// Failures is the number of items that failed to transfer
	Failures int

	// Throughput is BytesTransferred divided by Elapsed, in bytes per second
	Throughput float64
}

// ClientConfig holds configuration for the objcp client.
type ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	MaxRetries      int
	Concurrency     int
	PartSize        int64
	ForcePathStyle  bool
	CustomAWSConfig *aws.Config
	Filesystem      fs.Filesystem // Filesystem abstraction for local-side operations
	Logger          *slog.Logger
}

// RunConfig holds per-invocation configuration for a copy or move run.
type RunConfig struct {
	// Recursive enables container (directory / bucket subdirectory) copies
	Recursive bool

	// NoClobber skips items whose destination already exists
	NoClobber bool

	// ContinueOnError tolerates per-item failures, deferring overall
	// failure signaling to run completion
	ContinueOnError bool

	// ManifestPath names a durable per-item outcome log; re-running with
	// the same manifest skips items it already records as handled
	ManifestPath string

	// CannedACL is applied to each destination object after a successful
	// copy. Mutually exclusive with PreserveACL.
	CannedACL CannedACL

	// PreserveACL carries source ACLs through in-cloud copies. Mutually
	// exclusive with CannedACL.
	PreserveACL bool

	// PrintVersions surfaces the version-specific URL of each created object
	PrintVersions bool

	// DaisyChain routes in-cloud copies through this machine instead of the
	// server-side copy call
	DaisyChain bool

	// Parallelism bounds the number of concurrently executing item copies
	Parallelism int
}

// Option is a functional option for configuring the objcp client.
type Option func(*ClientConfig)

// RunOption is a functional option for configuring a single copy or move run.
type RunOption func(*RunConfig)
