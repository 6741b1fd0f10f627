// Command tokenctl is the operator CLI: it validates compliance configuration,
// replays transfer scenarios offline and manages development access tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "Operate a secutoken compliance engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConfigCmd(), newCheckCmd(), newTokenCmd())
	return root
}
