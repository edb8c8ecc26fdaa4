package main

import (
	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv [flags] src... dst",
	Short: "Move files and objects",
	Long: `Move files and objects: each source is copied to the destination
and deleted once its copy is confirmed. Sources whose copy was skipped
or failed are left in place.`,
	Example: `  # Rename an object
  objcp mv s3://bucket/old.txt s3://bucket/new.txt

  # Move a directory into a bucket
  objcp mv -r staging/ s3://bucket/archive`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args, true)
	},
}

func init() {
	addRunFlags(mvCmd)
}
