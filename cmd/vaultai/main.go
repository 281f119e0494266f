// Command vaultai submits assets through the vault wizard and drives the
// local development stack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// configEnv names the YAML config file read by every VaultAI binary.
const configEnv = "VAULTAI_CONFIG"

type rootOptions struct {
	configFile  string
	composeFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vaultai: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vaultai",
		Short: "Submit assets to VaultAI and run its services",
		Long: `vaultai runs the asset wizard in-process (submit), lists the asset types a
vault accepts, starts the Postgres, MinIO and Redis containers the services
depend on, and launches the api, worker and server binaries against them.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", os.Getenv(configEnv),
		"YAML config file passed to the services as "+configEnv)
	cmd.AddCommand(
		newSubmitCmd(),
		newAssetTypesCmd(),
		newStackCmd(opts),
		newRunCmd(opts),
	)
	return cmd
}
