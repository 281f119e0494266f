package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// stackServices are the containers the VaultAI binaries need.
var stackServices = []string{"postgres", "minio", "redis"}

// execCommand runs an external program with extra environment entries.
// Tests replace it to capture invocations.
var execCommand = func(ctx context.Context, cmd *cobra.Command, env []string, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Env = append(os.Environ(), env...)
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	c.Stdin = os.Stdin
	return c.Run()
}

func newStackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Manage the Postgres, MinIO and Redis containers",
	}
	cmd.PersistentFlags().StringVarP(&opts.composeFile, "file", "f", "docker-compose.yml", "Compose file")
	cmd.AddCommand(
		newStackUpCmd(opts),
		newStackDownCmd(opts),
		newStackLogsCmd(opts),
	)
	return cmd
}

func compose(opts *rootOptions, verb string, args ...string) []string {
	return append([]string{"compose", "-f", opts.composeFile, verb}, args...)
}

func newStackUpCmd(opts *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "up [service...]",
		Short: "Start the containers in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := []string{"-d"}
			if wait {
				flags = append(flags, "--wait")
			}
			if len(args) == 0 {
				args = stackServices
			}
			return execCommand(cmd.Context(), cmd, nil, "docker", compose(opts, "up", append(flags, args...)...)...)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait until the containers are running")
	return cmd
}

func newStackDownCmd(opts *rootOptions) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop the containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if purge {
				flags = append(flags, "-v")
			}
			return execCommand(cmd.Context(), cmd, nil, "docker", compose(opts, "down", flags...)...)
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the database and evidence volumes")
	return cmd
}

func newStackLogsCmd(opts *rootOptions) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Show container logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags []string
			if follow {
				flags = append(flags, "--follow")
			}
			return execCommand(cmd.Context(), cmd, nil, "docker", compose(opts, "logs", append(flags, args...)...)...)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream new log lines")
	return cmd
}
