package objcp

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cperrors "objcp/errors"
	"objcp/internal/testutil"
)

// uploadRecorder captures every object the mock receives, keyed by object key.
type uploadRecorder struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newUploadRecorder() *uploadRecorder {
	return &uploadRecorder{objects: make(map[string][]byte)}
}

func (u *uploadRecorder) put(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	u.objects[aws.ToString(params.Key)] = data
	u.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (u *uploadRecorder) keys() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	keys := make([]string, 0, len(u.objects))
	for k := range u.objects {
		keys = append(keys, k)
	}
	return keys
}

func TestCopyDirectoryUploadWithManifest(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("dir/a.txt", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("dir/sub/b.txt", []byte("bb"), 0o644))

	rec := newUploadRecorder()
	api := &testutil.MockS3Client{PutObjectFunc: rec.put}
	client := NewWithClient(api, WithFilesystem(fsys))

	res, err := client.Copy(context.Background(), []string{"dir"}, "s3://bucket",
		WithRecursive(),
		WithManifest("transfer.log"))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, int64(3), res.BytesTransferred)
	assert.ElementsMatch(t, []string{"dir/a.txt", "dir/sub/b.txt"}, rec.keys())

	data, err := fsys.ReadFile("transfer.log")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), ",OK,"))

	// A re-run with the same manifest transfers nothing.
	res, err = client.Copy(context.Background(), []string{"dir"}, "s3://bucket",
		WithRecursive(),
		WithManifest("transfer.log"))
	require.NoError(t, err)
	assert.Zero(t, res.Copied)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, rec.keys(), 2, "no new uploads on the re-run")
}

func TestCopyDownloadIntoNewDirectory(t *testing.T) {
	bodies := map[string]string{
		"logs/a.log":      "alpha",
		"logs/deep/b.log": "beta",
	}
	api := &testutil.MockS3Client{
		ListObjectsV2Func: func(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			var objs []types.Object
			for key, body := range bodies {
				objs = append(objs, types.Object{Key: aws.String(key), Size: aws.Int64(int64(len(body)))})
			}
			return &s3.ListObjectsV2Output{Contents: objs}, nil
		},
		GetObjectFunc: func(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			body := bodies[aws.ToString(params.Key)]
			return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
		},
	}
	fsys := billy.NewInMemoryFS()
	client := NewWithClient(api, WithFilesystem(fsys))

	res, err := client.Copy(context.Background(), []string{"s3://bucket/logs/"}, "out", WithRecursive())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)

	got, err := fsys.ReadFile("out/a.log")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))
	got, err = fsys.ReadFile("out/deep/b.log")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(got))
}

func TestMoveDeletesLocalSource(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("a.txt", []byte("payload"), 0o644))

	rec := newUploadRecorder()
	api := &testutil.MockS3Client{PutObjectFunc: rec.put}
	client := NewWithClient(api, WithFilesystem(fsys))

	res, err := client.Move(context.Background(), []string{"a.txt"}, "s3://bucket/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Copied)

	exists, err := fsys.Exists("a.txt")
	require.NoError(t, err)
	assert.False(t, exists, "move removes the source after a confirmed copy")
}

func TestMoveDirectoryImpliesRecursive(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("dir/a.txt", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("dir/sub/b.txt", []byte("bb"), 0o644))

	rec := newUploadRecorder()
	api := &testutil.MockS3Client{PutObjectFunc: rec.put}
	client := NewWithClient(api, WithFilesystem(fsys))

	// No recursive option: moving a directory descends into it anyway.
	res, err := client.Move(context.Background(), []string{"dir"}, "s3://bucket")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Copied)
	assert.ElementsMatch(t, []string{"dir/a.txt", "dir/sub/b.txt"}, rec.keys())

	for _, name := range []string{"dir/a.txt", "dir/sub/b.txt"} {
		exists, eerr := fsys.Exists(name)
		require.NoError(t, eerr)
		assert.False(t, exists, "moved files are removed from the source")
	}
}

func TestMoveKeepsSourceWhenSkipped(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("a.txt", []byte("payload"), 0o644))

	// The default mock HeadObject succeeds, so the destination "exists".
	client := NewWithClient(&testutil.MockS3Client{}, WithFilesystem(fsys))

	res, err := client.Move(context.Background(), []string{"a.txt"}, "s3://bucket/a.txt", WithNoClobber())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	exists, err := fsys.Exists("a.txt")
	require.NoError(t, err)
	assert.True(t, exists, "a skipped move leaves the source alone")
}

func TestRunRejectsConflictingACLOptions(t *testing.T) {
	client := NewWithClient(&testutil.MockS3Client{}, WithFilesystem(billy.NewInMemoryFS()))

	_, err := client.Copy(context.Background(), []string{"a.txt"}, "s3://bucket",
		WithPreserveACL(),
		WithCannedACL("public-read"))
	require.Error(t, err)
	assert.ErrorIs(t, err, cperrors.ErrConfig)
}

func TestCopyContinueOnError(t *testing.T) {
	fsys := billy.NewInMemoryFS()
	require.NoError(t, fsys.WriteFile("data/ok.txt", []byte("fine"), 0o644))
	require.NoError(t, fsys.WriteFile("data/bad.txt", []byte("nope"), 0o644))

	api := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			if strings.Contains(aws.ToString(params.Key), "bad") {
				return nil, &types.NoSuchBucket{}
			}
			return &s3.PutObjectOutput{}, nil
		},
	}
	client := NewWithClient(api, WithFilesystem(fsys))

	res, err := client.Copy(context.Background(), []string{"data/*.txt"}, "s3://bucket",
		WithContinueOnError())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 file(s)/object(s) could not be transferred")
	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, 1, res.Failures)
}
