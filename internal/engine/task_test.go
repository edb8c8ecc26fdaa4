package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cperrors "objcp/errors"
	"objcp/storageurl"
)

// fakeBackend is a function-field Backend for task tests. Unset fields
// succeed with an empty result.
type fakeBackend struct {
	mu            sync.Mutex
	transferFunc  func(ctx context.Context, src, dst storageurl.URL, opts TransferOptions) (*TransferResult, error)
	deleteFunc    func(ctx context.Context, u storageurl.URL) error
	versioningFn  func(ctx context.Context, bucket string) (bool, error)
	transferCalls []storageurl.URL
	deleteCalls   []storageurl.URL
}

func (f *fakeBackend) Transfer(ctx context.Context, src, dst storageurl.URL, opts TransferOptions) (*TransferResult, error) {
	f.mu.Lock()
	f.transferCalls = append(f.transferCalls, src)
	f.mu.Unlock()
	if f.transferFunc != nil {
		return f.transferFunc(ctx, src, dst, opts)
	}
	return &TransferResult{Result: dst}, nil
}

func (f *fakeBackend) Delete(ctx context.Context, u storageurl.URL) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, u)
	f.mu.Unlock()
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, u)
	}
	return nil
}

func (f *fakeBackend) BucketVersioning(ctx context.Context, bucket string) (bool, error) {
	if f.versioningFn != nil {
		return f.versioningFn(ctx, bucket)
	}
	return false, nil
}

// fakeRecorder is an in-memory Recorder capturing finalized rows.
type fakeRecorder struct {
	mu      sync.Mutex
	handled map[string]bool
	results map[string]string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{handled: make(map[string]bool), results: make(map[string]string)}
}

func (f *fakeRecorder) WasHandled(src string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handled[src]
}

func (f *fakeRecorder) Initialize(src, dst string, sourceSize int64) {}

func (f *fakeRecorder) SetChecksum(src, md5 string) {}

func (f *fakeRecorder) SetSessionID(src, id string) {}

func (f *fakeRecorder) SetResult(src string, bytesTransferred int64, result, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[src] = result
	return nil
}

func newTask(backend Backend, cfg Config, dst string, dstExisting bool) *Task {
	return &Task{
		backend:                  backend,
		fsys:                     billy.NewInMemoryFS(),
		log:                      slog.New(slog.DiscardHandler),
		cfg:                      cfg,
		dst:                      storageurl.MustParse(dst),
		haveExistingDstContainer: dstExisting,
	}
}

func item(src string) *ItemRef {
	u := storageurl.MustParse(src)
	return &ItemRef{Src: u, Expanded: u}
}

func TestProcessRejectsProviderOnlySource(t *testing.T) {
	task := newTask(&fakeBackend{}, Config{Mode: ModeCopy}, "s3://bucket", true)

	out, err := task.Process(context.Background(), item("s3://"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrInvalidInput)
}

func TestProcessSkipsManifestHandledItem(t *testing.T) {
	backend := &fakeBackend{}
	rec := newFakeRecorder()
	rec.handled["s3://bucket/a"] = true

	task := newTask(backend, Config{Mode: ModeCopy}, "out", true)
	task.manifest = rec

	out, err := task.Process(context.Background(), item("s3://bucket/a"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkip, out.Status)
	assert.Empty(t, backend.transferCalls, "no backend contact for handled items")
	assert.Empty(t, rec.results, "no second row for handled items")
}

func TestProcessNoClobberSkip(t *testing.T) {
	backend := &fakeBackend{
		transferFunc: func(context.Context, storageurl.URL, storageurl.URL, TransferOptions) (*TransferResult, error) {
			return nil, cperrors.ErrItemExists
		},
	}
	rec := newFakeRecorder()
	task := newTask(backend, Config{Mode: ModeCopy, NoClobber: true}, "s3://bucket", true)
	task.manifest = rec

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkip, out.Status)
	assert.Contains(t, out.Reason, "skipping existing item")
	assert.Equal(t, resultSkip, rec.results["a.txt"])
}

func TestProcessTransferFailure(t *testing.T) {
	backend := &fakeBackend{
		transferFunc: func(context.Context, storageurl.URL, storageurl.URL, TransferOptions) (*TransferResult, error) {
			return nil, cperrors.ErrAccessDenied
		},
	}
	rec := newFakeRecorder()
	task := newTask(backend, Config{Mode: ModeCopy}, "s3://bucket", true)
	task.manifest = rec

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrAccessDenied)
	assert.Equal(t, resultError, rec.results["a.txt"])
}

func TestProcessSameObject(t *testing.T) {
	task := newTask(&fakeBackend{}, Config{Mode: ModeCopy}, "s3://bucket/key", false)

	out, err := task.Process(context.Background(), item("s3://bucket/key"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrSameObject)
}

func TestProcessVersionedDestination(t *testing.T) {
	task := newTask(&fakeBackend{}, Config{Mode: ModeCopy}, "s3://bucket/key#v7", false)

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrVersionedDest)
}

func TestProcessMultiSourceNeedsContainerDst(t *testing.T) {
	task := newTask(&fakeBackend{}, Config{Mode: ModeCopy}, "s3://bucket/object", false)

	ref := item("a.txt")
	ref.IsMultiSource = true
	_, err := task.Process(context.Background(), ref)
	require.Error(t, err, "run-fatal, not a per-item outcome")
	assert.ErrorIs(t, err, cperrors.ErrConfig)
}

func TestProcessMoveDeletesSourceOnSuccess(t *testing.T) {
	backend := &fakeBackend{}
	task := newTask(backend, Config{Mode: ModeMove}, "s3://bucket", true)

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	require.Len(t, backend.deleteCalls, 1)
	assert.Equal(t, "a.txt", backend.deleteCalls[0].String())
}

func TestProcessMoveKeepsSourceOnSkip(t *testing.T) {
	backend := &fakeBackend{
		transferFunc: func(context.Context, storageurl.URL, storageurl.URL, TransferOptions) (*TransferResult, error) {
			return nil, cperrors.ErrItemExists
		},
	}
	task := newTask(backend, Config{Mode: ModeMove, NoClobber: true}, "s3://bucket", true)

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkip, out.Status)
	assert.Empty(t, backend.deleteCalls, "a skipped item never loses its source")
}

func TestProcessMoveDeleteFailureFlipsOutcome(t *testing.T) {
	backend := &fakeBackend{
		deleteFunc: func(context.Context, storageurl.URL) error {
			return cperrors.ErrAccessDenied
		},
	}
	task := newTask(backend, Config{Mode: ModeMove}, "s3://bucket", true)

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrAccessDenied)
}

func TestProcessMoveRejectsWildcardContainer(t *testing.T) {
	task := newTask(&fakeBackend{}, Config{Mode: ModeMove}, "s3://bucket", true)

	ref := &ItemRef{
		Src:            storageurl.MustParse("dir*"),
		Expanded:       storageurl.MustParse("dir1/f.txt"),
		NamesContainer: true,
		IsMultiSource:  true,
	}
	_, err := task.Process(context.Background(), ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, cperrors.ErrConfig)
}

type recordingApplier struct {
	calls []string
	err   error
}

func (r *recordingApplier) Apply(_ context.Context, dst storageurl.URL, acl string) error {
	r.calls = append(r.calls, dst.String()+" "+acl)
	return r.err
}

func TestProcessAppliesCannedACL(t *testing.T) {
	applier := &recordingApplier{}
	task := newTask(&fakeBackend{}, Config{Mode: ModeCopy, CannedACL: "public-read"}, "s3://bucket", true)
	task.acl = applier

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, out.Status)
	require.Len(t, applier.calls, 1)
	assert.Equal(t, "s3://bucket/a.txt public-read", applier.calls[0])
}

func TestProcessACLFailureFlipsOutcome(t *testing.T) {
	applier := &recordingApplier{err: cperrors.ErrAccessDenied}
	task := newTask(&fakeBackend{}, Config{Mode: ModeCopy, CannedACL: "private"}, "s3://bucket", true)
	task.acl = applier

	out, err := task.Process(context.Background(), item("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrAccessDenied)
}

func TestProcessDirFileConflict(t *testing.T) {
	backend := &fakeBackend{}
	task := newTask(backend, Config{Mode: ModeCopy}, "out", true)
	require.NoError(t, task.fsys.MkdirAll("out/a.txt", 0o755))

	out, err := task.Process(context.Background(), item("s3://bucket/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, StatusFail, out.Status)
	assert.ErrorIs(t, out.Err, cperrors.ErrDirFileConflict)
	assert.Empty(t, backend.transferCalls)
}
