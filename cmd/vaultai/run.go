package main

import (
	"github.com/spf13/cobra"
)

type service struct {
	name  string
	path  string
	short string
	// listens reports whether the binary takes VAULTAI_ADDRESS.
	listens bool
}

var services = []service{
	{name: "api", path: "./cmd/api", short: "Wizard and asset routes on Postgres and MinIO", listens: true},
	{name: "worker", path: "./cmd/worker", short: "Re-verification worker consuming the asynq queue"},
	{name: "server", path: "./cmd/server", short: "Wizard and asset routes on in-memory backends", listens: true},
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a VaultAI binary from source",
	}
	for _, svc := range services {
		cmd.AddCommand(newServiceCmd(opts, svc))
	}
	return cmd
}

func newServiceCmd(opts *rootOptions, svc service) *cobra.Command {
	var addr, logLevel string
	cmd := &cobra.Command{
		Use:   svc.name,
		Short: svc.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var env []string
			if opts.configFile != "" {
				env = append(env, configEnv+"="+opts.configFile)
			}
			if addr != "" {
				env = append(env, "VAULTAI_ADDRESS="+addr)
			}
			if logLevel != "" {
				env = append(env, "VAULTAI_LOG_LEVEL="+logLevel)
			}
			return execCommand(cmd.Context(), cmd, env, "go", "run", svc.path)
		},
	}
	if svc.listens {
		cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides VAULTAI_ADDRESS)")
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides VAULTAI_LOG_LEVEL)")
	return cmd
}
