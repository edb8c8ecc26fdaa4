package objcp

import (
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"objcp/cptypes"
)

// Option configures a Client.
type Option = cptypes.Option

// RunOption configures a single copy or move run.
type RunOption = cptypes.RunOption

// WithRegion sets the AWS region for the client.
func WithRegion(region string) Option {
	return func(c *cptypes.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint points the client at a custom storage endpoint, such as a
// MinIO or LocalStack instance.
func WithEndpoint(endpoint string) Option {
	return func(c *cptypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithCredentials sets static credentials, bypassing the default chain.
func WithCredentials(accessKey, secretKey string) Option {
	return func(c *cptypes.ClientConfig) {
		c.AccessKey = accessKey
		c.SecretKey = secretKey
	}
}

// WithMaxRetries sets the retry limit for storage API calls.
func WithMaxRetries(retries int) Option {
	return func(c *cptypes.ClientConfig) {
		c.MaxRetries = retries
	}
}

// WithConcurrency bounds the parallel parts of one multipart upload.
func WithConcurrency(concurrency int) Option {
	return func(c *cptypes.ClientConfig) {
		c.Concurrency = concurrency
	}
}

// WithPartSize sets the multipart upload part size in bytes.
func WithPartSize(size int64) Option {
	return func(c *cptypes.ClientConfig) {
		c.PartSize = size
	}
}

// WithForcePathStyle forces path-style bucket addressing, required by most
// S3-compatible servers.
func WithForcePathStyle(force bool) Option {
	return func(c *cptypes.ClientConfig) {
		c.ForcePathStyle = force
	}
}

// WithAWSConfig supplies a pre-built AWS configuration, skipping the
// default credential chain entirely.
func WithAWSConfig(cfg aws.Config) Option {
	return func(c *cptypes.ClientConfig) {
		c.CustomAWSConfig = &cfg
	}
}

// WithFilesystem sets a custom filesystem for local-side operations.
func WithFilesystem(fsys fs.Filesystem) Option {
	return func(c *cptypes.ClientConfig) {
		c.Filesystem = fsys
	}
}

// WithLogger sets the structured logger. Logging is off by default.
func WithLogger(log *slog.Logger) Option {
	return func(c *cptypes.ClientConfig) {
		c.Logger = log
	}
}

// WithRecursive descends into directories and bucket subdirectories.
func WithRecursive() RunOption {
	return func(c *cptypes.RunConfig) {
		c.Recursive = true
	}
}

// WithNoClobber skips items whose destination already exists.
func WithNoClobber() RunOption {
	return func(c *cptypes.RunConfig) {
		c.NoClobber = true
	}
}

// WithContinueOnError keeps the run going past per-item failures and
// reports the failure count at the end.
func WithContinueOnError() RunOption {
	return func(c *cptypes.RunConfig) {
		c.ContinueOnError = true
	}
}

// WithManifest logs per-item outcomes to the CSV file at path, and skips
// items the file already records as handled.
func WithManifest(path string) RunOption {
	return func(c *cptypes.RunConfig) {
		c.ManifestPath = path
	}
}

// WithCannedACL applies a canned ACL to each created object.
func WithCannedACL(acl cptypes.CannedACL) RunOption {
	return func(c *cptypes.RunConfig) {
		c.CannedACL = acl
	}
}

// WithPreserveACL carries source ACLs through in-cloud copies.
func WithPreserveACL() RunOption {
	return func(c *cptypes.RunConfig) {
		c.PreserveACL = true
	}
}

// WithPrintVersions logs the version-qualified URL of each created object.
func WithPrintVersions() RunOption {
	return func(c *cptypes.RunConfig) {
		c.PrintVersions = true
	}
}

// WithDaisyChain copies cloud objects by downloading and re-uploading through
// this machine rather than a server-side copy, for endpoints that cannot reach
// each other directly.
func WithDaisyChain() RunOption {
	return func(c *cptypes.RunConfig) {
		c.DaisyChain = true
	}
}

// WithParallelism sets the number of concurrent item workers.
func WithParallelism(n int) RunOption {
	return func(c *cptypes.RunConfig) {
		c.Parallelism = n
	}
}
