package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	cperrors "objcp/errors"
	"objcp/internal/naming"
	"objcp/storageurl"
)

// Task processes a single enumerated item to a terminal outcome. It holds
// no per-item state; one Task value is shared by all workers of a run.
type Task struct {
	backend  Backend
	fsys     fs.Filesystem
	acl      AclApplier
	manifest Recorder
	log      *slog.Logger
	cfg      Config

	dst                      storageurl.URL
	haveExistingDstContainer bool
}

// Process drives one item through resolve, conflict checks, transfer,
// classification and post-success side effects.
//
// A non-nil error return is a run-fatal configuration problem detected
// before any transfer for this item; the orchestrator aborts the whole run.
// All other paths yield an Outcome, which the orchestrator combines with
// the continue-on-error policy.
func (t *Task) Process(ctx context.Context, item *ItemRef) (*Outcome, error) {
	src := item.Src
	expSrc := item.Expanded

	// A bare provider with no bucket is never a valid transfer source.
	if src.IsProvider() || expSrc.IsProvider() {
		return t.fail(item, storageurl.URL{},
			cperrors.New(string(t.cfg.Mode), cperrors.ErrInvalidInput).
				WithSrc(src.String()).
				WithMessage("provider-only URL is not a valid source")), nil
	}

	if item.IsMultiSource {
		if err := t.insistDstNamesContainer(); err != nil {
			return nil, err
		}
	}

	// Re-run support: an item the manifest already records as copied or
	// skipped is satisfied without contacting the backend.
	if t.manifest != nil && t.manifest.WasHandled(expSrc.String()) {
		return &Outcome{Status: StatusSkip, Reason: "already recorded in manifest"}, nil
	}

	if t.cfg.Mode == ModeMove && item.NamesContainer {
		// Renaming through a wildcard is ambiguous and dangerous; refuse
		// rather than guess.
		if storageurl.ContainsWildcard(src.String()) {
			return nil, cperrors.New("move", cperrors.ErrConfig).
				WithSrc(src.String()).
				WithMessage("moving directories named by wildcards is not allowed")
		}
	}

	if t.dst.IsLocal() && item.IsMultiSource {
		// A concurrently created directory is fine; MkdirAll treats an
		// existing directory as success.
		if err := t.fsys.MkdirAll(t.dst.Key, 0o755); err != nil {
			return nil, cperrors.New(string(t.cfg.Mode), err).
				WithDst(t.dst.String()).
				WithMessage("cannot create destination directory")
		}
	}

	dst := naming.Resolve(src, expSrc, item.NamesContainer, item.IsMultiSource, t.dst, t.haveExistingDstContainer)

	if err := t.checkDirFileConflict(dst); err != nil {
		return t.fail(item, dst, err), nil
	}
	if sameObject(expSrc, dst) {
		return t.fail(item, dst,
			cperrors.NewItemError(string(t.cfg.Mode), expSrc.String(), dst.String(), cperrors.ErrSameObject)), nil
	}
	if dst.HasVersion() {
		return t.fail(item, dst,
			cperrors.New(string(t.cfg.Mode), cperrors.ErrVersionedDest).WithDst(dst.String())), nil
	}

	if t.manifest != nil {
		t.manifest.Initialize(expSrc.String(), dst.String(), item.Size)
	}

	start := time.Now()
	res, err := t.backend.Transfer(ctx, expSrc, dst, TransferOptions{
		NoClobber:   t.cfg.NoClobber,
		PreserveACL: t.cfg.PreserveACL,
	})
	elapsed := time.Since(start)

	if err != nil {
		if cperrors.IsItemExists(err) {
			reason := "skipping existing item: " + dst.String()
			t.log.Info(reason)
			if t.manifest != nil {
				if merr := t.manifest.SetResult(expSrc.String(), 0, resultSkip, reason); merr != nil {
					return nil, merr
				}
			}
			return &Outcome{Status: StatusSkip, Reason: reason, Elapsed: elapsed}, nil
		}
		return t.fail(item, dst,
			cperrors.NewItemError(string(t.cfg.Mode), expSrc.String(), dst.String(), err)), nil
	}

	out := &Outcome{
		Status:  StatusSuccess,
		Bytes:   res.Bytes,
		Elapsed: elapsed,
		Result:  res.Result,
		MD5:     res.MD5,
	}
	if t.manifest != nil {
		if res.MD5 != "" {
			t.manifest.SetChecksum(expSrc.String(), res.MD5)
		}
		if res.SessionID != "" {
			t.manifest.SetSessionID(expSrc.String(), res.SessionID)
		}
		if merr := t.manifest.SetResult(expSrc.String(), res.Bytes, resultOK, ""); merr != nil {
			return nil, merr
		}
	}

	if t.cfg.PrintVersions {
		t.log.Info("created", "url", res.Result.String())
	}

	// ACL propagation addresses the destination alone; the naming-shape
	// facts of the source item are irrelevant to it.
	if t.cfg.CannedACL != "" && t.acl != nil && dst.IsCloud() {
		if aerr := t.acl.Apply(ctx, dst, t.cfg.CannedACL); aerr != nil {
			out.Status = StatusFail
			out.Err = cperrors.New("acl", aerr).WithDst(dst.String())
			return out, nil
		}
	}

	// Move deletes the source only after its copy is confirmed; a skipped
	// item never loses its source.
	if t.cfg.Mode == ModeMove {
		t.log.Info("removing source", "url", expSrc.String())
		if derr := t.backend.Delete(ctx, expSrc); derr != nil {
			out.Status = StatusFail
			out.Err = cperrors.New("delete", derr).WithSrc(expSrc.String())
			return out, nil
		}
	}

	return out, nil
}

// fail logs and wraps a per-item failure, recording it in the manifest
// when one is in use.
func (t *Task) fail(item *ItemRef, dst storageurl.URL, err error) *Outcome {
	t.log.Error("item failed", "src", item.Src.String(), "error", err)
	if t.manifest != nil {
		// Recording best-effort; the failure itself takes precedence.
		_ = t.manifest.SetResult(item.Expanded.String(), 0, resultError, err.Error())
	}
	return &Outcome{Status: StatusFail, Err: err, Result: dst}
}

// insistDstNamesContainer verifies the run destination can hold multiple
// items. Violations are configuration errors that abort the whole run.
func (t *Task) insistDstNamesContainer() error {
	if t.dst.IsCloud() {
		if t.dst.IsBucket() || t.haveExistingDstContainer || hasDirSuffix(t.dst.Key) {
			return nil
		}
		return cperrors.New(string(t.cfg.Mode), cperrors.ErrConfig).
			WithDst(t.dst.String()).
			WithMessage("destination for multiple sources must be a bucket or existing bucket subdirectory")
	}
	if st, err := t.fsys.Stat(t.dst.Key); err == nil && !st.IsDir() {
		return cperrors.New(string(t.cfg.Mode), cperrors.ErrConfig).
			WithDst(t.dst.String()).
			WithMessage("destination for multiple sources exists but is not a directory")
	}
	return nil
}

// checkDirFileConflict rejects a resolved local destination that collides
// with an existing filesystem entry of the wrong kind: a directory at the
// target name, or a file where a parent directory is needed.
func (t *Task) checkDirFileConflict(dst storageurl.URL) error {
	if dst.IsCloud() {
		return nil
	}
	if st, err := t.fsys.Stat(dst.Key); err == nil && st.IsDir() {
		return cperrors.New(string(t.cfg.Mode), cperrors.ErrDirFileConflict).
			WithDst(dst.String()).
			WithMessage("a directory exists at the destination name")
	}
	parent := filepath.Dir(dst.Key)
	if st, err := t.fsys.Stat(parent); err == nil && !st.IsDir() {
		return cperrors.New(string(t.cfg.Mode), cperrors.ErrDirFileConflict).
			WithDst(dst.String()).
			WithMessage("a file exists where a destination directory is needed")
	}
	return nil
}

func sameObject(a, b storageurl.URL) bool {
	if a.IsCloud() != b.IsCloud() {
		return false
	}
	if a.IsLocal() {
		return filepath.Clean(a.Key) == filepath.Clean(b.Key)
	}
	return a.String() == b.String()
}

func hasDirSuffix(key string) bool {
	return key != "" && key[len(key)-1] == '/'
}
