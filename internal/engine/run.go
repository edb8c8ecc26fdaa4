package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	cperrors "objcp/errors"
	"objcp/storageurl"
)

// minElapsed substitutes for a total elapsed time that rounds to zero on
// platforms with coarse clocks, keeping reported throughput finite.
const minElapsed = 10 * time.Millisecond

// defaultParallelism bounds the worker pool when the caller does not.
const defaultParallelism = 4

// Config holds the run-level policy threaded through every task.
type Config struct {
	// Mode selects copy or move semantics
	Mode Mode

	// NoClobber skips items whose destination already exists
	NoClobber bool

	// ContinueOnError tolerates per-item failures instead of aborting
	ContinueOnError bool

	// PrintVersions surfaces the version-specific URL of each created object
	PrintVersions bool

	// PreserveACL carries source ACLs through in-cloud copies
	PreserveACL bool

	// CannedACL is applied to each destination object after success
	CannedACL string

	// Parallelism bounds the number of concurrently executing items
	Parallelism int
}

// Result is the aggregate outcome of one run.
type Result struct {
	// Bytes is the total bytes transferred by all items
	Bytes int64

	// Elapsed is the wall-clock duration of the run, floored to a small
	// positive value when clock resolution rounds it to zero
	Elapsed time.Duration

	// TaskTime is the sum of per-item transfer durations
	TaskTime time.Duration

	// Copied, Skipped and Failures count items by terminal status
	Copied   int
	Skipped  int
	Failures int

	// Throughput is Bytes divided by Elapsed, in bytes per second
	Throughput float64
}

// Runner owns the worker pool and aggregate state for the lifetime of one
// invocation. It is not reusable across runs.
type Runner struct {
	backend  Backend
	fsys     fs.Filesystem
	acl      AclApplier
	manifest Recorder
	log      *slog.Logger
	cfg      Config
}

// RunnerOption configures optional collaborators of a Runner.
type RunnerOption func(*Runner)

// WithManifest attaches a persisted manifest consulted for restart and
// appended to as items complete.
func WithManifest(rec Recorder) RunnerOption {
	return func(r *Runner) { r.manifest = rec }
}

// WithACLApplier attaches the applier used for canned-ACL propagation.
func WithACLApplier(a AclApplier) RunnerOption {
	return func(r *Runner) { r.acl = a }
}

// WithLogger sets the structured logger for per-item and run-level lines.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a runner over the given backend and filesystem.
func NewRunner(backend Backend, fsys fs.Filesystem, cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend: backend,
		fsys:    fsys,
		cfg:     cfg,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IncludeAllVersions reports whether enumeration should include historical
// object versions for the given destination. A versioned destination bucket
// means all source versions are copied; when the versioning state cannot be
// read for lack of permission, all versions are included rather than
// guessed about. A missing destination bucket is a run-fatal error.
func IncludeAllVersions(ctx context.Context, b Backend, dst storageurl.URL) (bool, error) {
	if !dst.IsCloud() || dst.Bucket == "" {
		return false, nil
	}
	enabled, err := b.BucketVersioning(ctx, dst.Bucket)
	switch {
	case err == nil:
		return enabled, nil
	case cperrors.IsAccessDenied(err):
		// Cannot check; over-include rather than silently drop versions.
		return true, nil
	case cperrors.IsNotFound(err):
		return false, cperrors.New("versioning", err).
			WithDst(dst.String()).
			WithMessage("destination bucket does not exist")
	default:
		return false, cperrors.New("versioning", err).WithDst(dst.String())
	}
}

// Run drains the enumerator through a bounded pool of workers and returns
// the aggregate result. dst and haveExistingDstContainer come from the
// caller's one-time destination expansion; they are not re-derived per
// item because repeated probes would race against concurrent writers.
//
// A run-fatal error stops the scheduling of new items but lets
// already-dispatched items finish. The returned error is non-nil when the
// run aborted or when any item failed.
func (r *Runner) Run(ctx context.Context, enum Enumerator, dst storageurl.URL, haveExistingDstContainer bool) (*Result, error) {
	log := r.log.With("run", uuid.NewString())
	parallelism := r.cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	task := &Task{
		backend:                  r.backend,
		fsys:                     r.fsys,
		acl:                      r.acl,
		manifest:                 r.manifest,
		log:                      log,
		cfg:                      r.cfg,
		dst:                      dst,
		haveExistingDstContainer: haveExistingDstContainer,
	}

	outcomes := make(chan *Outcome, parallelism)
	done := make(chan totals, 1)
	go aggregate(outcomes, done)

	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, parallelism)
		aborted atomic.Bool
		errMu   sync.Mutex
		runErr  error
	)
	setRunErr := func(err error) {
		errMu.Lock()
		if runErr == nil {
			runErr = err
		}
		errMu.Unlock()
		aborted.Store(true)
	}

	start := time.Now()
	for !aborted.Load() {
		item, err := enum.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			setRunErr(err)
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(item *ItemRef) {
			defer func() {
				<-sem
				wg.Done()
			}()

			out, fatal := task.Process(ctx, item)
			if fatal != nil {
				setRunErr(fatal)
				return
			}
			switch out.Status {
			case StatusSuccess:
				log.Info("copied", "src", item.Expanded.String(), "dst", out.Result.String(), "bytes", out.Bytes)
			case StatusSkip:
				log.Info("skipped", "src", item.Expanded.String(), "reason", out.Reason)
			case StatusFail:
				log.Error("transfer failed", "src", item.Expanded.String(), "error", out.Err)
				if !r.cfg.ContinueOnError {
					setRunErr(out.Err)
				}
			}
			outcomes <- out
		}(item)
	}

	wg.Wait()
	close(outcomes)
	t := <-done

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = minElapsed
	}
	result := &Result{
		Bytes:      t.bytes,
		Elapsed:    elapsed,
		TaskTime:   t.taskTime,
		Copied:     t.copied,
		Skipped:    t.skipped,
		Failures:   t.failures,
		Throughput: float64(t.bytes) / elapsed.Seconds(),
	}
	log.Debug("run complete",
		"bytes", result.Bytes,
		"copied", result.Copied,
		"skipped", result.Skipped,
		"failures", result.Failures,
		"elapsed", result.Elapsed)

	errMu.Lock()
	err := runErr
	errMu.Unlock()
	if err != nil {
		return result, err
	}
	if result.Failures > 0 {
		// Individual errors were reported as they occurred; the run-level
		// error only carries the count.
		return result, fmt.Errorf("%d file(s)/object(s) could not be transferred", result.Failures)
	}
	return result, nil
}
