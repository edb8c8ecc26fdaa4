// Package naming computes the destination URL for each transferred item.
// It reproduces Unix cp naming behavior: recursive container copies mirror
// the source structure from the point where expansion began, while
// individually named items keep only their final path component.
package naming

import (
	"path"
	"path/filepath"
	"strings"

	"objcp/storageurl"
)

// Resolve computes the destination URL for one enumerated item.
//
// src is the literal source token the caller named; expSrc is the concrete
// item it expanded to. namesContainer reports whether the token denoted a
// container (directory, bucket, bucket subdirectory). haveMultipleSrcs
// reports whether the overall request names more than one item. dst is the
// expanded destination; haveExistingDstContainer reports whether it already
// existed as a container when the run started.
//
// Resolve is pure: it performs no I/O and always returns the same output
// for the same inputs. It does not detect collisions between distinct
// items resolving to the same destination; that is the caller's concern.
func Resolve(
	src, expSrc storageurl.URL,
	namesContainer, haveMultipleSrcs bool,
	dst storageurl.URL,
	haveExistingDstContainer bool,
) storageurl.URL {
	if !treatAsContainer(namesContainer, haveMultipleSrcs, dst, haveExistingDstContainer) {
		// Singleton destination: the item lands at exactly the name the
		// caller gave.
		return normalize(dst)
	}

	var suffix string
	if namesContainer {
		root := expansionRoot(src, expSrc)
		rel := strings.TrimPrefix(strings.TrimPrefix(expSrc.Path(), root), "/")
		if haveExistingDstContainer {
			// Mirror under the last segment of the source root, so
			// "cp -R dir1/dir2 existing" produces existing/dir2/...
			suffix = path.Join(path.Base(root), rel)
		} else {
			// The destination container itself plays the role of the
			// source root's last segment.
			suffix = rel
			if suffix == "" {
				suffix = path.Base(root)
			}
		}
	} else {
		// Individually named item: structure above the final component
		// is discarded.
		suffix = path.Base(expSrc.Path())
	}

	out := dst.WithKey(joinPath(dst.Path(), suffix))
	return normalize(out)
}

// treatAsContainer decides whether the destination names a container to
// copy into, rather than the exact item name to copy to.
func treatAsContainer(namesContainer, haveMultipleSrcs bool, dst storageurl.URL, haveExistingDstContainer bool) bool {
	if haveMultipleSrcs || namesContainer || haveExistingDstContainer {
		return true
	}
	if dst.IsBucket() {
		return true
	}
	return strings.HasSuffix(dst.Path(), "/")
}

// expansionRoot returns the container path at which recursive expansion of
// src began. For a plain token that is the token's own path; for a wildcard
// token it is the prefix of the expanded path with the same number of
// components as the token, so each matched container is its own root.
func expansionRoot(src, expSrc storageurl.URL) string {
	tokenPath := strings.TrimSuffix(src.Path(), "/")
	if !storageurl.ContainsWildcard(tokenPath) {
		return tokenPath
	}
	n := len(strings.Split(tokenPath, "/"))
	parts := strings.Split(expSrc.Path(), "/")
	if n > len(parts) {
		n = len(parts)
	}
	return strings.Join(parts[:n], "/")
}

func joinPath(base, suffix string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return suffix
	}
	return base + "/" + suffix
}

// normalize maps the forward slashes used by object keys to the platform
// separator when the destination is a local path.
func normalize(u storageurl.URL) storageurl.URL {
	if u.IsLocal() {
		return u.WithKey(filepath.FromSlash(u.Key))
	}
	return u
}
