package objcp

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"objcp/cptypes"
	cperrors "objcp/errors"
	"objcp/internal/s3api"
)

// Client executes copy and move requests against object storage and the
// local filesystem. A Client is safe for concurrent use.
type Client struct {
	api  s3api.API
	fsys fs.Filesystem
	cfg  cptypes.ClientConfig
	log  *slog.Logger
}

// New creates a new client with the provided options. Credentials resolve
// through the default AWS chain unless static credentials or a custom AWS
// configuration are supplied.
//
// Example:
//
//	client, err := objcp.New(
//	    objcp.WithRegion("us-west-2"),
//	    objcp.WithEndpoint("http://localhost:9000"),
//	)
func New(opts ...Option) (*Client, error) {
	clientCfg := cptypes.ClientConfig{
		MaxRetries:  3,
		Concurrency: 5,
		PartSize:    8 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(&clientCfg)
	}

	var cfg aws.Config
	var err error
	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, cperrors.New("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}
	if clientCfg.AccessKey != "" && clientCfg.SecretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(
			clientCfg.AccessKey, clientCfg.SecretKey, "")
	}

	var s3Opts []func(*s3.Options)
	if clientCfg.Endpoint != "" {
		endpoint := clientCfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if clientCfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newClient(s3.NewFromConfig(cfg, s3Opts...), clientCfg), nil
}

// NewWithClient creates a client backed by a custom storage API
// implementation. This is primarily used for testing with mocks.
func NewWithClient(api s3api.API, opts ...Option) *Client {
	clientCfg := cptypes.ClientConfig{
		Concurrency: 5,
		PartSize:    8 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(&clientCfg)
	}
	return newClient(api, clientCfg)
}

func newClient(api s3api.API, clientCfg cptypes.ClientConfig) *Client {
	fsys := clientCfg.Filesystem
	if fsys == nil {
		fsys = billy.NewBaseOSFS()
	}
	log := clientCfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{api: api, fsys: fsys, cfg: clientCfg, log: log}
}
