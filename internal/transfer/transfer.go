// Package transfer performs the actual data movement behind the copy
// engine: uploads, downloads, in-cloud copies and local file copies, plus
// the delete and versioning operations the engine needs around them.
package transfer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	cperrors "objcp/errors"
	"objcp/internal/engine"
	"objcp/internal/s3api"
	"objcp/storageurl"
)

const (
	// defaultContentType is used when content type detection fails
	defaultContentType = "application/octet-stream"

	// sniffSize is how many leading bytes feed content-type detection
	sniffSize = 3072

	// defaultPartSize is the multipart upload part size when unset
	defaultPartSize = 8 * 1024 * 1024
)

// Config tunes the byte-transfer layer.
type Config struct {
	// PartSize is the multipart upload part size in bytes
	PartSize int64

	// Concurrency bounds the parallel parts of one multipart upload
	Concurrency int

	// DaisyChain routes in-cloud copies through this machine instead of
	// the server-side copy call, for copies between providers or
	// endpoints that cannot reach each other
	DaisyChain bool
}

// Mover implements engine.Backend (and engine.AclApplier) over an S3 API
// client and a local filesystem abstraction. A single Mover is shared
// read-only by all workers of a run.
type Mover struct {
	api  s3api.API
	fsys fs.Filesystem
	cfg  Config
}

// NewMover creates a transfer backend over the given clients.
func NewMover(api s3api.API, fsys fs.Filesystem, cfg Config) *Mover {
	if cfg.PartSize <= 0 {
		cfg.PartSize = defaultPartSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &Mover{api: api, fsys: fsys, cfg: cfg}
}

var (
	_ engine.Backend    = (*Mover)(nil)
	_ engine.AclApplier = (*Mover)(nil)
)

// Transfer moves one item from src to dst, dispatching on the four route
// shapes: upload, download, in-cloud copy, and local copy.
func (m *Mover) Transfer(
	ctx context.Context,
	src, dst storageurl.URL,
	opts engine.TransferOptions,
) (*engine.TransferResult, error) {
	if opts.NoClobber {
		exists, err := m.exists(ctx, dst)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, cperrors.ErrItemExists
		}
	}

	switch {
	case src.IsLocal() && dst.IsCloud():
		return m.upload(ctx, src, dst)
	case src.IsCloud() && dst.IsLocal():
		return m.download(ctx, src, dst)
	case src.IsCloud() && dst.IsCloud():
		var res *engine.TransferResult
		var err error
		if m.cfg.DaisyChain {
			res, err = m.daisyChain(ctx, src, dst)
		} else {
			res, err = m.copyInCloud(ctx, src, dst)
		}
		if err != nil {
			return nil, err
		}
		if opts.PreserveACL {
			if aerr := m.preserveACL(ctx, src, res.Result); aerr != nil {
				return nil, aerr
			}
		}
		return res, nil
	default:
		return m.copyLocal(src, dst)
	}
}

// upload streams a local file to object storage, using multipart upload
// above the part size threshold. The content MD5 is computed on the way
// through so it reflects exactly the bytes sent.
func (m *Mover) upload(ctx context.Context, src, dst storageurl.URL) (*engine.TransferResult, error) {
	file, err := m.fsys.Open(src.Key)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", src.Key, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", src.Key, err)
	}

	sniff := make([]byte, sniffSize)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read %q: %w", src.Key, err)
	}
	sniff = sniff[:n]

	hash := md5.New()
	body := io.TeeReader(io.MultiReader(bytes.NewReader(sniff), file), hash)

	uploader := manager.NewUploader(m.api, func(u *manager.Uploader) {
		u.PartSize = m.cfg.PartSize
		u.Concurrency = m.cfg.Concurrency
	})
	out, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(dst.Bucket),
		Key:         aws.String(dst.Key),
		Body:        body,
		ContentType: aws.String(m.contentType(src.Key, sniff)),
	})
	if err != nil {
		return nil, classify(err)
	}

	result := dst
	if out.VersionID != nil {
		result = result.WithVersion(*out.VersionID)
	}
	return &engine.TransferResult{
		Bytes:     info.Size(),
		MD5:       hex.EncodeToString(hash.Sum(nil)),
		Result:    result,
		SessionID: out.UploadID,
	}, nil
}

// download streams an object to a local file, creating parent directories
// as needed.
func (m *Mover) download(ctx context.Context, src, dst storageurl.URL) (*engine.TransferResult, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	}
	if src.HasVersion() {
		input.VersionId = aws.String(src.Version)
	}
	out, err := m.api.GetObject(ctx, input)
	if err != nil {
		return nil, classify(err)
	}
	defer out.Body.Close()

	if dir := filepath.Dir(dst.Key); dir != "." {
		if err := m.fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dir, err)
		}
	}
	file, err := m.fsys.Create(dst.Key)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", dst.Key, err)
	}
	defer file.Close()

	hash := md5.New()
	n, err := io.Copy(io.MultiWriter(file, hash), out.Body)
	if err != nil {
		return nil, fmt.Errorf("write %q: %w", dst.Key, err)
	}

	return &engine.TransferResult{
		Bytes:  n,
		MD5:    hex.EncodeToString(hash.Sum(nil)),
		Result: dst,
	}, nil
}

// copyInCloud copies between object-storage locations server side, without
// routing the bytes through this machine.
func (m *Mover) copyInCloud(ctx context.Context, src, dst storageurl.URL) (*engine.TransferResult, error) {
	head, err := m.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	})
	if err != nil {
		return nil, classify(err)
	}

	source := src.Bucket + "/" + src.Key
	if src.HasVersion() {
		source += "?versionId=" + src.Version
	}
	out, err := m.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dst.Bucket),
		Key:        aws.String(dst.Key),
		CopySource: aws.String(source),
	})
	if err != nil {
		return nil, classify(err)
	}

	result := dst
	if out.VersionId != nil {
		result = result.WithVersion(*out.VersionId)
	}
	res := &engine.TransferResult{
		Bytes:  aws.ToInt64(head.ContentLength),
		Result: result,
	}
	if out.CopyObjectResult != nil {
		if etag := strings.Trim(aws.ToString(out.CopyObjectResult.ETag), `"`); !strings.Contains(etag, "-") {
			// A multipart ETag is not a content MD5; only plain ones count.
			res.MD5 = etag
		}
	}
	return res, nil
}

// preserveACL copies the source object's access control list onto the
// just-created destination object.
func (m *Mover) preserveACL(ctx context.Context, src, dst storageurl.URL) error {
	input := &s3.GetObjectAclInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	}
	if src.HasVersion() {
		input.VersionId = aws.String(src.Version)
	}
	acl, err := m.api.GetObjectAcl(ctx, input)
	if err != nil {
		return classify(err)
	}

	put := &s3.PutObjectAclInput{
		Bucket: aws.String(dst.Bucket),
		Key:    aws.String(dst.Key),
		AccessControlPolicy: &types.AccessControlPolicy{
			Grants: acl.Grants,
			Owner:  acl.Owner,
		},
	}
	if dst.HasVersion() {
		put.VersionId = aws.String(dst.Version)
	}
	if _, err := m.api.PutObjectAcl(ctx, put); err != nil {
		return classify(err)
	}
	return nil
}

// daisyChain streams an object down and straight back up through this
// machine, re-uploading with the manager so large objects go multipart.
func (m *Mover) daisyChain(ctx context.Context, src, dst storageurl.URL) (*engine.TransferResult, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(src.Bucket),
		Key:    aws.String(src.Key),
	}
	if src.HasVersion() {
		input.VersionId = aws.String(src.Version)
	}
	obj, err := m.api.GetObject(ctx, input)
	if err != nil {
		return nil, classify(err)
	}
	defer obj.Body.Close()

	hash := md5.New()
	uploader := manager.NewUploader(m.api, func(u *manager.Uploader) {
		u.PartSize = m.cfg.PartSize
		u.Concurrency = m.cfg.Concurrency
	})
	out, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(dst.Bucket),
		Key:         aws.String(dst.Key),
		Body:        io.TeeReader(obj.Body, hash),
		ContentType: obj.ContentType,
	})
	if err != nil {
		return nil, classify(err)
	}

	result := dst
	if out.VersionID != nil {
		result = result.WithVersion(*out.VersionID)
	}
	return &engine.TransferResult{
		Bytes:     aws.ToInt64(obj.ContentLength),
		MD5:       hex.EncodeToString(hash.Sum(nil)),
		Result:    result,
		SessionID: out.UploadID,
	}, nil
}

// copyLocal copies a file within the local filesystem.
func (m *Mover) copyLocal(src, dst storageurl.URL) (*engine.TransferResult, error) {
	in, err := m.fsys.Open(src.Key)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", src.Key, err)
	}
	defer in.Close()

	if dir := filepath.Dir(dst.Key); dir != "." {
		if err := m.fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dir, err)
		}
	}
	out, err := m.fsys.Create(dst.Key)
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", dst.Key, err)
	}
	defer out.Close()

	hash := md5.New()
	n, err := io.Copy(io.MultiWriter(out, hash), in)
	if err != nil {
		return nil, fmt.Errorf("copy to %q: %w", dst.Key, err)
	}
	return &engine.TransferResult{
		Bytes:  n,
		MD5:    hex.EncodeToString(hash.Sum(nil)),
		Result: dst,
	}, nil
}

// Delete removes the item named by u, including its version qualifier for
// cloud URLs.
func (m *Mover) Delete(ctx context.Context, u storageurl.URL) error {
	if u.IsLocal() {
		return m.fsys.Remove(u.Key)
	}
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Key),
	}
	if u.HasVersion() {
		input.VersionId = aws.String(u.Version)
	}
	if _, err := m.api.DeleteObject(ctx, input); err != nil {
		return classify(err)
	}
	return nil
}

// BucketVersioning reports whether the bucket has versioning enabled.
func (m *Mover) BucketVersioning(ctx context.Context, bucket string) (bool, error) {
	out, err := m.api.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return false, classify(err)
	}
	return out.Status == types.BucketVersioningStatusEnabled, nil
}

// Apply sets a canned ACL on an existing destination object.
func (m *Mover) Apply(ctx context.Context, dst storageurl.URL, acl string) error {
	_, err := m.api.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(dst.Bucket),
		Key:    aws.String(dst.Key),
		ACL:    types.ObjectCannedACL(acl),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// exists probes whether the destination already holds an entry, for the
// client-side no-clobber check.
func (m *Mover) exists(ctx context.Context, u storageurl.URL) (bool, error) {
	if u.IsLocal() {
		return m.fsys.Exists(u.Key)
	}
	_, err := m.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.Bucket),
		Key:    aws.String(u.Key),
	})
	if err == nil {
		return true, nil
	}
	cerr := classify(err)
	if cperrors.IsNotFound(cerr) {
		return false, nil
	}
	return false, cerr
}

// contentType picks a content type from the path extension, falling back
// to sniffing the leading bytes.
func (m *Mover) contentType(path string, sniff []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if len(sniff) > 0 {
		return mimetype.Detect(sniff).String()
	}
	return defaultContentType
}

// classify maps storage-service errors onto the module's sentinel errors
// so callers can branch with errors.Is.
func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %v", cperrors.ErrObjectNotFound, err)
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %v", cperrors.ErrBucketNotFound, err)
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", cperrors.ErrObjectNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied":
			return fmt.Errorf("%w: %v", cperrors.ErrAccessDenied, err)
		case "NoSuchKey", "NotFound", "404":
			return fmt.Errorf("%w: %v", cperrors.ErrObjectNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %v", cperrors.ErrBucketNotFound, err)
		case "PreconditionFailed":
			return fmt.Errorf("%w: %v", cperrors.ErrItemExists, err)
		}
	}
	return err
}
