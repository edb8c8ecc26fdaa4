// Package storageurl parses and classifies the URL strings that name
// transfer sources and destinations: s3:// object URLs and local file paths.
package storageurl

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CloudScheme is the URL scheme for remote object storage.
const CloudScheme = "s3"

// versionSeparator splits an object key from its version qualifier,
// as in s3://bucket/key#versionId.
const versionSeparator = "#"

// URL identifies one storage location. The zero value is a local URL
// naming the empty path.
type URL struct {
	// Scheme is CloudScheme for object storage, empty for local paths.
	Scheme string

	// Bucket is the container name for cloud URLs. Empty for local URLs
	// and for provider-only URLs like "s3://".
	Bucket string

	// Key is the object key for cloud URLs, or the filesystem path for
	// local URLs.
	Key string

	// Version is the version qualifier, if the URL named one.
	Version string
}

// Parse interprets raw as a storage URL. Strings starting with "s3://"
// become cloud URLs; everything else is treated as a local path (with an
// optional "file://" prefix stripped).
func Parse(raw string) (URL, error) {
	if strings.HasPrefix(raw, CloudScheme+"://") {
		rest := strings.TrimPrefix(raw, CloudScheme+"://")
		bucket, key, _ := strings.Cut(rest, "/")
		if strings.ContainsAny(bucket, versionSeparator) {
			return URL{}, fmt.Errorf("storageurl: bucket name %q cannot carry a version qualifier", bucket)
		}
		u := URL{Scheme: CloudScheme, Bucket: bucket, Key: key}
		if key, version, ok := strings.Cut(u.Key, versionSeparator); ok {
			u.Key = key
			u.Version = version
		}
		return u, nil
	}
	return URL{Key: strings.TrimPrefix(raw, "file://")}, nil
}

// MustParse is Parse for known-good literals; it panics on error.
// Intended for tests and constants.
func MustParse(raw string) URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// IsCloud reports whether the URL names a remote object-storage location.
func (u URL) IsCloud() bool { return u.Scheme == CloudScheme }

// IsLocal reports whether the URL names a local filesystem location.
func (u URL) IsLocal() bool { return !u.IsCloud() }

// IsProvider reports whether the URL names only the storage provider,
// with no bucket (e.g. "s3://"). Provider-only URLs are never valid
// transfer sources or destinations.
func (u URL) IsProvider() bool { return u.IsCloud() && u.Bucket == "" }

// IsBucket reports whether the URL names a bucket root with no object key.
func (u URL) IsBucket() bool { return u.IsCloud() && u.Bucket != "" && u.Key == "" }

// HasVersion reports whether the URL carries a version qualifier.
func (u URL) HasVersion() bool { return u.Version != "" }

// Path returns the naming component used for destination construction:
// the object key for cloud URLs (forward slashes), the slash-normalized
// file path for local URLs.
func (u URL) Path() string {
	if u.IsCloud() {
		return u.Key
	}
	return filepath.ToSlash(u.Key)
}

// WithKey returns a copy of the URL naming a different key or path.
func (u URL) WithKey(key string) URL {
	u.Key = key
	return u
}

// WithVersion returns a copy of the URL carrying the given version qualifier.
func (u URL) WithVersion(version string) URL {
	u.Version = version
	return u
}

// String renders the URL back to its external form.
func (u URL) String() string {
	if u.IsCloud() {
		s := CloudScheme + "://" + u.Bucket
		if u.Key != "" || u.Version != "" {
			s += "/" + u.Key
		}
		if u.Version != "" {
			s += versionSeparator + u.Version
		}
		return s
	}
	return u.Key
}

// ContainsWildcard reports whether the raw URL string uses any of the
// glob metacharacters understood by source expansion. A bare "]" without
// an opening bracket is an ordinary key character, not a wildcard.
func ContainsWildcard(raw string) bool {
	return strings.ContainsAny(raw, "*?[")
}
