package objcp

import (
	"context"

	"objcp/cptypes"
	cperrors "objcp/errors"
	"objcp/internal/engine"
	"objcp/internal/enumerate"
	"objcp/internal/manifest"
	"objcp/internal/transfer"
)

// Copy transfers every item the source tokens expand to into dst. Source
// tokens may name local files, directories, objects, buckets or bucket
// subdirectories, with optional wildcards in the final path component.
//
// The returned result is non-nil even when the run failed partway, so
// callers can report partial progress.
func (c *Client) Copy(ctx context.Context, srcs []string, dst string, opts ...RunOption) (*cptypes.RunResult, error) {
	return c.run(ctx, engine.ModeCopy, srcs, dst, opts)
}

// Move behaves like Copy and then deletes each source item whose copy
// succeeded. Skipped and failed items keep their sources.
func (c *Client) Move(ctx context.Context, srcs []string, dst string, opts ...RunOption) (*cptypes.RunResult, error) {
	return c.run(ctx, engine.ModeMove, srcs, dst, opts)
}

func (c *Client) run(
	ctx context.Context,
	mode engine.Mode,
	srcs []string,
	dst string,
	opts []RunOption,
) (*cptypes.RunResult, error) {
	var runCfg cptypes.RunConfig
	for _, opt := range opts {
		opt(&runCfg)
	}
	if runCfg.PreserveACL && runCfg.CannedACL != "" {
		return nil, cperrors.New("run", cperrors.ErrConfig).
			WithMessage("specify either a canned ACL or ACL preservation, not both")
	}

	dstURL, haveExistingDstContainer, err := enumerate.ExpandDst(ctx, c.api, c.fsys, dst)
	if err != nil {
		return nil, err
	}

	mover := transfer.NewMover(c.api, c.fsys, transfer.Config{
		PartSize:    c.cfg.PartSize,
		Concurrency: c.cfg.Concurrency,
		DaisyChain:  runCfg.DaisyChain,
	})

	allVersions, err := engine.IncludeAllVersions(ctx, mover, dstURL)
	if err != nil {
		return nil, err
	}

	// Move always descends: a container source moves as a whole.
	enum, err := enumerate.New(c.api, c.fsys, srcs, enumerate.Config{
		Recursive:   runCfg.Recursive || mode == engine.ModeMove,
		AllVersions: allVersions,
	})
	if err != nil {
		return nil, err
	}

	runnerOpts := []engine.RunnerOption{
		engine.WithACLApplier(mover),
		engine.WithLogger(c.log),
	}
	if runCfg.ManifestPath != "" {
		man, manErr := manifest.Open(runCfg.ManifestPath, c.fsys)
		if manErr != nil {
			return nil, manErr
		}
		defer man.Close()
		runnerOpts = append(runnerOpts, engine.WithManifest(man))
	}

	runner := engine.NewRunner(mover, c.fsys, engine.Config{
		Mode:            mode,
		NoClobber:       runCfg.NoClobber,
		ContinueOnError: runCfg.ContinueOnError,
		PrintVersions:   runCfg.PrintVersions,
		PreserveACL:     runCfg.PreserveACL,
		CannedACL:       string(runCfg.CannedACL),
		Parallelism:     runCfg.Parallelism,
	}, runnerOpts...)

	res, runErr := runner.Run(ctx, enum, dstURL, haveExistingDstContainer)
	if res == nil {
		return nil, runErr
	}
	return &cptypes.RunResult{
		BytesTransferred: res.Bytes,
		Elapsed:          res.Elapsed,
		TaskTime:         res.TaskTime,
		Copied:           res.Copied,
		Skipped:          res.Skipped,
		Failures:         res.Failures,
		Throughput:       res.Throughput,
	}, runErr
}
