// Package enumerate expands source tokens into the concrete items a run
// will transfer, and probes destination tokens for their container shape.
// Expansion is lazy: cloud listings are paged on demand so very large
// prefixes never have to fit in memory at once.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	cperrors "objcp/errors"
	"objcp/internal/engine"
	"objcp/internal/s3api"
	"objcp/storageurl"
)

// listPageSize bounds one cloud listing page.
const listPageSize = 1000

// Config controls how source tokens expand.
type Config struct {
	// Recursive descends into directories and bucket subdirectories
	Recursive bool

	// AllVersions enumerates every object generation, not just the live one
	AllVersions bool
}

// SourceEnumerator implements engine.Enumerator over a set of source
// tokens. It is single-pass: each call to Next yields the next concrete
// item, and io.EOF ends the sequence.
type SourceEnumerator struct {
	api  s3api.API
	fsys fs.Filesystem
	cfg  Config

	tokens []token
	multi  bool

	idx  int
	buf  []engine.ItemRef
	page pageFunc
}

type token struct {
	raw string
	url storageurl.URL
}

// pageFunc fetches the next listing page for the in-progress token,
// appending items to the buffer. done means the token is exhausted.
type pageFunc func(ctx context.Context) (done bool, err error)

// New parses the raw source tokens and returns a lazy enumerator over
// them. Parse failures surface immediately; expansion failures surface
// from Next.
func New(api s3api.API, fsys fs.Filesystem, rawTokens []string, cfg Config) (*SourceEnumerator, error) {
	if len(rawTokens) == 0 {
		return nil, cperrors.New("enumerate", cperrors.ErrInvalidInput).
			WithMessage("at least one source is required")
	}
	tokens := make([]token, 0, len(rawTokens))
	multi := len(rawTokens) > 1 || cfg.Recursive
	for _, raw := range rawTokens {
		u, err := storageurl.Parse(raw)
		if err != nil {
			return nil, err
		}
		if storageurl.ContainsWildcard(raw) {
			multi = true
		}
		tokens = append(tokens, token{raw: raw, url: u})
	}
	return &SourceEnumerator{api: api, fsys: fsys, cfg: cfg, tokens: tokens, multi: multi}, nil
}

// MultiSource reports whether the request references, or may reference,
// more than one source item.
func (e *SourceEnumerator) MultiSource() bool { return e.multi }

// Next returns the next concrete source item, or io.EOF when the token
// set is exhausted. A token that matches nothing is an error, not a
// silent empty expansion.
func (e *SourceEnumerator) Next(ctx context.Context) (*engine.ItemRef, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(e.buf) > 0 {
			ref := e.buf[0]
			e.buf = e.buf[1:]
			return &ref, nil
		}
		if e.page != nil {
			done, err := e.page(ctx)
			if err != nil {
				return nil, err
			}
			if done {
				e.page = nil
			}
			continue
		}
		if e.idx >= len(e.tokens) {
			return nil, io.EOF
		}
		tok := e.tokens[e.idx]
		e.idx++
		if err := e.expand(ctx, tok); err != nil {
			return nil, err
		}
	}
}

// expand starts the expansion of one token, filling the buffer and, for
// cloud listings, installing a pager for the remaining pages.
func (e *SourceEnumerator) expand(ctx context.Context, tok token) error {
	if tok.url.IsCloud() {
		return e.expandCloud(tok)
	}
	return e.expandLocal(ctx, tok)
}

func (e *SourceEnumerator) ref(tok token, expanded storageurl.URL, namesContainer bool, size int64) engine.ItemRef {
	return engine.ItemRef{
		Src:            tok.url,
		Expanded:       expanded,
		NamesContainer: namesContainer,
		IsMultiSource:  e.multi,
		Size:           size,
	}
}

// --- local expansion ---

func (e *SourceEnumerator) expandLocal(_ context.Context, tok token) error {
	key := tok.url.Key
	if storageurl.ContainsWildcard(key) {
		return e.expandLocalWildcard(tok)
	}

	info, err := e.fsys.Stat(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return noMatch(tok.raw)
		}
		return fmt.Errorf("stat %q: %w", key, err)
	}
	if !info.IsDir() {
		e.buf = append(e.buf, e.ref(tok, tok.url, false, info.Size()))
		return nil
	}
	if !e.cfg.Recursive {
		return cperrors.New("enumerate", cperrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("%q is a directory (expected recursive copy)", tok.raw))
	}
	return e.walkDir(tok, key)
}

// expandLocalWildcard matches a wildcard in the final path component
// against the directory's entries.
func (e *SourceEnumerator) expandLocalWildcard(tok token) error {
	dir, pattern := filepath.Split(tok.url.Key)
	if dir == "" {
		dir = "."
	} else {
		dir = filepath.Clean(dir)
	}
	if storageurl.ContainsWildcard(dir) {
		return cperrors.New("enumerate", cperrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("%q: wildcards are only supported in the final path component", tok.raw))
	}

	entries, err := e.fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return noMatch(tok.raw)
		}
		return fmt.Errorf("readdir %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	matched := false
	for _, entry := range entries {
		ok, merr := filepath.Match(pattern, entry.Name())
		if merr != nil {
			return cperrors.New("enumerate", cperrors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("bad pattern %q", pattern))
		}
		if !ok {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if !e.cfg.Recursive {
				continue
			}
			if err := e.walkDir(tok, full); err != nil {
				return err
			}
			matched = true
			continue
		}
		e.buf = append(e.buf, e.ref(tok, tok.url.WithKey(full), false, entry.Size()))
		matched = true
	}
	if !matched {
		return noMatch(tok.raw)
	}
	return nil
}

// walkDir emits every regular file under root as a container-derived item.
func (e *SourceEnumerator) walkDir(tok token, root string) error {
	return e.fsys.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		e.buf = append(e.buf, e.ref(tok, tok.url.WithKey(p), true, info.Size()))
		return nil
	})
}

// --- cloud expansion ---

func (e *SourceEnumerator) expandCloud(tok token) error {
	u := tok.url
	if u.IsProvider() {
		// The task layer rejects provider-only sources per item.
		e.buf = append(e.buf, e.ref(tok, u, false, 0))
		return nil
	}

	switch {
	case storageurl.ContainsWildcard(u.Key):
		dir := path.Dir(strings.TrimSuffix(u.Key, "/"))
		if dir != "." && storageurl.ContainsWildcard(dir) {
			return cperrors.New("enumerate", cperrors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("%q: wildcards are only supported in the final path component", tok.raw))
		}
		prefix := u.Key[:strings.IndexAny(u.Key, "*?[")]
		e.page = e.listPager(tok, prefix, false, u.Key)
	case u.IsBucket(), strings.HasSuffix(u.Key, "/"):
		if !e.cfg.Recursive {
			return cperrors.New("enumerate", cperrors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("%q is a bucket or subdirectory (expected recursive copy)", tok.raw))
		}
		prefix := u.Key
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		e.page = e.listPager(tok, prefix, true, "")
	default:
		e.page = e.objectOrPrefixPager(tok)
	}
	return nil
}

// objectOrPrefixPager resolves a bare key: an exact object wins; otherwise
// the key is retried as a subdirectory prefix when recursion is on.
func (e *SourceEnumerator) objectOrPrefixPager(tok token) pageFunc {
	return func(ctx context.Context) (bool, error) {
		u := tok.url
		input := &s3.HeadObjectInput{Bucket: aws.String(u.Bucket), Key: aws.String(u.Key)}
		if u.HasVersion() {
			input.VersionId = aws.String(u.Version)
		}
		head, err := e.api.HeadObject(ctx, input)
		if err == nil {
			e.buf = append(e.buf, e.ref(tok, u, false, aws.ToInt64(head.ContentLength)))
			return true, nil
		}
		if !e.cfg.Recursive {
			return true, noMatch(tok.raw)
		}
		e.page = e.listPager(tok, u.Key+"/", true, "")
		return false, nil
	}
}

// listPager pages through a prefix listing, optionally filtering keys
// against a wildcard pattern. With AllVersions on, every generation of
// each matching object is emitted as a version-qualified item.
func (e *SourceEnumerator) listPager(tok token, prefix string, namesContainer bool, pattern string) pageFunc {
	if e.cfg.AllVersions {
		return e.versionPager(tok, prefix, namesContainer, pattern)
	}

	var continuation *string
	matched := false
	return func(ctx context.Context) (bool, error) {
		out, err := e.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(tok.url.Bucket),
			Prefix:            aws.String(prefix),
			MaxKeys:           aws.Int32(listPageSize),
			ContinuationToken: continuation,
		})
		if err != nil {
			return true, fmt.Errorf("list %q: %w", tok.raw, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			nc, ok := e.classifyMatch(key, pattern, namesContainer)
			if !ok {
				continue
			}
			e.buf = append(e.buf, e.ref(tok, tok.url.WithKey(key), nc, aws.ToInt64(obj.Size)))
			matched = true
		}
		if aws.ToBool(out.IsTruncated) {
			continuation = out.NextContinuationToken
			return false, nil
		}
		if !matched {
			return true, noMatch(tok.raw)
		}
		return true, nil
	}
}

// versionPager is listPager's all-versions counterpart, built on the
// versions listing API.
func (e *SourceEnumerator) versionPager(tok token, prefix string, namesContainer bool, pattern string) pageFunc {
	var keyMarker, versionMarker *string
	matched := false
	return func(ctx context.Context) (bool, error) {
		out, err := e.api.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(tok.url.Bucket),
			Prefix:          aws.String(prefix),
			MaxKeys:         aws.Int32(listPageSize),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			return true, fmt.Errorf("list versions %q: %w", tok.raw, err)
		}
		for _, ver := range out.Versions {
			key := aws.ToString(ver.Key)
			nc, ok := e.classifyMatch(key, pattern, namesContainer)
			if !ok {
				continue
			}
			expanded := tok.url.WithKey(key).WithVersion(aws.ToString(ver.VersionId))
			e.buf = append(e.buf, e.ref(tok, expanded, nc, aws.ToInt64(ver.Size)))
			matched = true
		}
		if aws.ToBool(out.IsTruncated) {
			keyMarker = out.NextKeyMarker
			versionMarker = out.NextVersionIdMarker
			return false, nil
		}
		if !matched {
			return true, noMatch(tok.raw)
		}
		return true, nil
	}
}

// classifyMatch decides whether a listed key belongs to the expansion and
// what naming shape it gets. Keys matched by the pattern itself are
// individually named and keep only their final path component; keys lying
// under a pattern-matched subdirectory are container-derived, and only
// count when recursion is on. Without a pattern the listing is a container
// expansion and every key is included as-is.
func (e *SourceEnumerator) classifyMatch(key, pattern string, namesContainer bool) (nc, ok bool) {
	if pattern == "" {
		return namesContainer, true
	}
	if matchKey(key, pattern) {
		return false, true
	}
	if e.cfg.Recursive && underMatchedDir(key, pattern) {
		return true, true
	}
	return false, false
}

// underMatchedDir reports whether some directory prefix of key matches the
// pattern, so the key is reached by recursing into a matched subdirectory.
func underMatchedDir(key, pattern string) bool {
	for i, r := range key {
		if r == '/' && matchKey(key[:i], pattern) {
			return true
		}
	}
	return false
}

// matchKey matches an object key against a wildcard pattern. A plain *
// does not cross slash boundaries; ** does.
func matchKey(key, pattern string) bool {
	if strings.Contains(pattern, "**") {
		parts := strings.SplitN(pattern, "**", 2)
		if !strings.HasPrefix(key, parts[0]) {
			return false
		}
		if parts[1] == "" {
			return true
		}
		return strings.HasSuffix(key, parts[1])
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}

func noMatch(raw string) error {
	return fmt.Errorf("%q matched no items: %w", raw, cperrors.ErrObjectNotFound)
}

// ExpandDst parses a destination token and probes whether it names an
// existing container: an existing local directory, a bucket, or a bucket
// subdirectory that already has entries under it.
func ExpandDst(ctx context.Context, api s3api.API, fsys fs.Filesystem, raw string) (storageurl.URL, bool, error) {
	if storageurl.ContainsWildcard(raw) {
		return storageurl.URL{}, false, cperrors.New("enumerate", cperrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("destination %q must not contain wildcards", raw))
	}
	u, err := storageurl.Parse(raw)
	if err != nil {
		return storageurl.URL{}, false, err
	}

	if u.IsLocal() {
		if strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, string(os.PathSeparator)) {
			return u, true, nil
		}
		info, statErr := fsys.Stat(u.Key)
		if statErr != nil {
			if errors.Is(statErr, os.ErrNotExist) {
				return u, false, nil
			}
			return storageurl.URL{}, false, fmt.Errorf("stat %q: %w", u.Key, statErr)
		}
		return u, info.IsDir(), nil
	}

	if u.IsProvider() {
		return storageurl.URL{}, false, cperrors.New("enumerate", cperrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("destination %q must name a bucket or object", raw))
	}
	if u.IsBucket() {
		return u, true, nil
	}
	if strings.HasSuffix(u.Key, "/") {
		return u, true, nil
	}

	// A bucket subdirectory "exists" when at least one object lives under it.
	out, listErr := api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(u.Bucket),
		Prefix:  aws.String(u.Key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if listErr != nil {
		return storageurl.URL{}, false, fmt.Errorf("probe destination %q: %w", raw, listErr)
	}
	return u, len(out.Contents) > 0, nil
}
