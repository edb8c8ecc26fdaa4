// Package objcp copies and moves collections of files and objects between
// the local filesystem and S3-compatible object storage.
//
// A Client expands source tokens (files, directories, objects, buckets,
// bucket subdirectories, wildcards), resolves each item's destination
// name the way a recursive copy tool does, and drains the items through
// a bounded pool of concurrent workers. Runs can log a CSV manifest of
// per-item outcomes and resume from it, skip items that already exist at
// the destination, and continue past individual failures.
//
// Basic usage:
//
//	client, err := objcp.New(objcp.WithRegion("us-west-2"))
//	if err != nil {
//	    return err
//	}
//	res, err := client.Copy(ctx, []string{"data/"}, "s3://bucket/backup",
//	    objcp.WithRecursive(),
//	    objcp.WithManifest("transfer.log"))
//
// Move performs the same transfer and then deletes each source whose copy
// succeeded.
package objcp
