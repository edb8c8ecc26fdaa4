package engine

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cperrors "objcp/errors"
	"objcp/storageurl"
)

// sliceEnumerator serves a fixed item list, counting how far the runner
// drained it.
type sliceEnumerator struct {
	items []ItemRef
	next  atomic.Int64
}

func (s *sliceEnumerator) Next(_ context.Context) (*ItemRef, error) {
	i := int(s.next.Add(1)) - 1
	if i >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[i]
	return &item, nil
}

func localItems(n int, size int64) []ItemRef {
	items := make([]ItemRef, 0, n)
	for i := range n {
		u := storageurl.MustParse(fmt.Sprintf("f%03d.dat", i))
		items = append(items, ItemRef{Src: u, Expanded: u, IsMultiSource: n > 1, Size: size})
	}
	return items
}

func TestRunAggregatesAcrossWorkers(t *testing.T) {
	const n = 50
	backend := &fakeBackend{
		transferFunc: func(_ context.Context, _, dst storageurl.URL, _ TransferOptions) (*TransferResult, error) {
			return &TransferResult{Bytes: 10, Result: dst}, nil
		},
	}
	runner := NewRunner(backend, billy.NewInMemoryFS(), Config{Mode: ModeCopy, Parallelism: 8})

	enum := &sliceEnumerator{items: localItems(n, 10)}
	res, err := runner.Run(context.Background(), enum, storageurl.MustParse("s3://bucket"), true)
	require.NoError(t, err)

	assert.Equal(t, n, res.Copied, "no outcome may be lost to a concurrent update")
	assert.Equal(t, int64(n*10), res.Bytes)
	assert.Zero(t, res.Skipped)
	assert.Zero(t, res.Failures)
}

func TestRunContinueOnError(t *testing.T) {
	var calls atomic.Int64
	backend := &fakeBackend{
		transferFunc: func(_ context.Context, src, dst storageurl.URL, _ TransferOptions) (*TransferResult, error) {
			if calls.Add(1)%3 == 0 {
				return nil, cperrors.ErrAccessDenied
			}
			return &TransferResult{Bytes: 1, Result: dst}, nil
		},
	}
	runner := NewRunner(backend, billy.NewInMemoryFS(), Config{
		Mode:            ModeCopy,
		ContinueOnError: true,
		Parallelism:     4,
	})

	enum := &sliceEnumerator{items: localItems(30, 1)}
	res, err := runner.Run(context.Background(), enum, storageurl.MustParse("s3://bucket"), true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be transferred")
	assert.Equal(t, 10, res.Failures)
	assert.Equal(t, 20, res.Copied)
	assert.Equal(t, 30, res.Copied+res.Failures, "every item was attempted")
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	backend := &fakeBackend{
		transferFunc: func(_ context.Context, _, _ storageurl.URL, _ TransferOptions) (*TransferResult, error) {
			return nil, cperrors.ErrAccessDenied
		},
	}
	runner := NewRunner(backend, billy.NewInMemoryFS(), Config{Mode: ModeCopy, Parallelism: 1})

	enum := &sliceEnumerator{items: localItems(100, 1)}
	res, err := runner.Run(context.Background(), enum, storageurl.MustParse("s3://bucket"), true)

	require.Error(t, err)
	assert.ErrorIs(t, err, cperrors.ErrAccessDenied)
	assert.Less(t, int(enum.next.Load()), 100, "scheduling stops once the run aborts")
	assert.GreaterOrEqual(t, res.Failures, 1)
}

func TestRunFatalEnumerationError(t *testing.T) {
	runner := NewRunner(&fakeBackend{}, billy.NewInMemoryFS(), Config{Mode: ModeCopy})

	enum := errorEnumerator{err: cperrors.ErrObjectNotFound}
	_, err := runner.Run(context.Background(), enum, storageurl.MustParse("s3://bucket"), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, cperrors.ErrObjectNotFound)
}

type errorEnumerator struct{ err error }

func (e errorEnumerator) Next(context.Context) (*ItemRef, error) { return nil, e.err }

func TestRunEmptyEnumeration(t *testing.T) {
	runner := NewRunner(&fakeBackend{}, billy.NewInMemoryFS(), Config{Mode: ModeCopy})

	enum := &sliceEnumerator{}
	res, err := runner.Run(context.Background(), enum, storageurl.MustParse("s3://bucket"), true)
	require.NoError(t, err)

	assert.Zero(t, res.Copied)
	assert.Positive(t, res.Elapsed, "elapsed time is floored above zero")
	assert.False(t, res.Throughput != res.Throughput, "throughput is never NaN")
}

func TestIncludeAllVersions(t *testing.T) {
	t.Run("local destination never includes versions", func(t *testing.T) {
		got, err := IncludeAllVersions(context.Background(), &fakeBackend{}, storageurl.MustParse("out"))
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("follows the bucket versioning state", func(t *testing.T) {
		backend := &fakeBackend{
			versioningFn: func(context.Context, string) (bool, error) { return true, nil },
		}
		got, err := IncludeAllVersions(context.Background(), backend, storageurl.MustParse("s3://bucket"))
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("over-includes when the state is unreadable", func(t *testing.T) {
		backend := &fakeBackend{
			versioningFn: func(context.Context, string) (bool, error) {
				return false, cperrors.ErrAccessDenied
			},
		}
		got, err := IncludeAllVersions(context.Background(), backend, storageurl.MustParse("s3://bucket"))
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("missing destination bucket is fatal", func(t *testing.T) {
		backend := &fakeBackend{
			versioningFn: func(context.Context, string) (bool, error) {
				return false, cperrors.ErrBucketNotFound
			},
		}
		_, err := IncludeAllVersions(context.Background(), backend, storageurl.MustParse("s3://bucket"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "destination bucket does not exist")
	})
}
