package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"objcp"
	"objcp/cptypes"
)

var cpCmd = &cobra.Command{
	Use:   "cp [flags] src... dst",
	Short: "Copy files and objects",
	Long: `Copy files and objects between the local filesystem and object
storage. With multiple sources, or a wildcard or recursive source, the
destination must name a directory, bucket or bucket subdirectory.`,
	Example: `  # Upload a file
  objcp cp report.pdf s3://bucket/reports/

  # Download a bucket subdirectory
  objcp cp -r s3://bucket/logs/ ./logs

  # Copy with a resumable manifest, continuing past failures
  objcp cp -r -c -L transfer.log data/ s3://bucket/backup`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args, false)
	},
}

func runTransfer(cmd *cobra.Command, args []string, move bool) error {
	srcs, dst := args[:len(args)-1], args[len(args)-1]

	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}

	var res *cptypes.RunResult
	if move {
		res, err = client.Move(cmd.Context(), srcs, dst, opts...)
	} else {
		res, err = client.Copy(cmd.Context(), srcs, dst, opts...)
	}
	if res != nil {
		printSummary(cmd, res)
	}
	if err != nil {
		cmd.PrintErrf("Error: %v\n", err)
	}
	return err
}

func runOptions(cmd *cobra.Command) ([]objcp.RunOption, error) {
	var opts []objcp.RunOption
	flags := cmd.Flags()

	if recursive, _ := flags.GetBool("recursive"); recursive {
		opts = append(opts, objcp.WithRecursive())
	}
	if noClobber, _ := flags.GetBool("no-clobber"); noClobber {
		opts = append(opts, objcp.WithNoClobber())
	}
	if cont, _ := flags.GetBool("continue-on-error"); cont {
		opts = append(opts, objcp.WithContinueOnError())
	}
	if manifestPath, _ := flags.GetString("log-file"); manifestPath != "" {
		opts = append(opts, objcp.WithManifest(manifestPath))
	}
	if acl, _ := flags.GetString("acl"); acl != "" {
		opts = append(opts, objcp.WithCannedACL(cptypes.CannedACL(acl)))
	}
	if preserve, _ := flags.GetBool("preserve-acl"); preserve {
		opts = append(opts, objcp.WithPreserveACL())
	}
	if versions, _ := flags.GetBool("print-versions"); versions {
		opts = append(opts, objcp.WithPrintVersions())
	}
	if daisy, _ := flags.GetBool("daisy-chain"); daisy {
		opts = append(opts, objcp.WithDaisyChain())
	}
	parallelism, _ := flags.GetInt("parallelism")
	if parallelism < 0 {
		return nil, fmt.Errorf("parallelism must not be negative, got %d", parallelism)
	}
	if parallelism > 0 {
		opts = append(opts, objcp.WithParallelism(parallelism))
	}
	if cfg.Parallelism > 0 && parallelism == 0 {
		opts = append(opts, objcp.WithParallelism(cfg.Parallelism))
	}
	return opts, nil
}

func printSummary(cmd *cobra.Command, res *cptypes.RunResult) {
	cmd.Printf("Copied %d item(s), skipped %d, failed %d\n", res.Copied, res.Skipped, res.Failures)
	cmd.Printf("Transferred %d bytes in %s (%.1f B/s)\n",
		res.BytesTransferred, res.Elapsed.Round(10*time.Millisecond), res.Throughput)
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolP("recursive", "r", false, "Descend into directories and bucket subdirectories")
	flags.BoolP("no-clobber", "n", false, "Skip items whose destination already exists")
	flags.BoolP("continue-on-error", "c", false, "Continue past per-item failures and report the count at the end")
	flags.StringP("log-file", "L", "", "Manifest CSV file; reruns skip items it records as handled")
	flags.StringP("acl", "a", "", "Canned ACL to apply to each created object")
	flags.BoolP("preserve-acl", "p", false, "Preserve source ACLs on in-cloud copies")
	flags.BoolP("print-versions", "v", false, "Log the version-qualified URL of each created object")
	flags.BoolP("daisy-chain", "D", false, "Route in-cloud copies through this machine instead of a server-side copy")
	flags.IntP("parallelism", "m", 0, "Number of concurrent item workers")
}

func init() {
	addRunFlags(cpCmd)
}
