package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"objcp"
	"objcp/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "objcp",
	Short: "Copy and move files between local disk and object storage",
	Long: `objcp copies and moves collections of files and objects between the
local filesystem and S3-compatible object storage.

Sources may be files, directories, objects, buckets or bucket
subdirectories, with wildcards in the final path component.
Configuration is loaded from a .env file or environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command with the loaded configuration.
func Execute(cnf *config.Config) error {
	cfg = cnf
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)

	rootCmd.PersistentFlags().Bool("verbose", false, "Log per-item progress to stderr")
}

// newClient builds the library client from the environment configuration
// and the persistent flags.
func newClient(cmd *cobra.Command) (*objcp.Client, error) {
	opts := []objcp.Option{
		objcp.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, objcp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, objcp.WithCredentials(cfg.AccessKey, cfg.SecretKey))
	}
	if cfg.ForcePathStyle {
		opts = append(opts, objcp.WithForcePathStyle(true))
	}
	if cfg.PartSize > 0 {
		opts = append(opts, objcp.WithPartSize(cfg.PartSize))
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
		opts = append(opts, objcp.WithLogger(slog.New(handler)))
	}
	return objcp.New(opts...)
}
