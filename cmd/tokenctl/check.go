package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"secutoken/internal/scenario"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <scenario.yaml>",
		Short: "Replay a scenario and print the pre-transfer check results",
		Long: `Builds an in-memory engine from the scenario's configuration, registers
its investors, applies its issuances and transfers, then runs every check.
Exits non-zero when a check with an "expect" code returns a different code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sc, err := scenario.Parse(raw)
			if err != nil {
				return err
			}
			outcomes, err := scenario.Run(cmd.Context(), sc)
			if err != nil {
				return err
			}
			failed := 0
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				mark := "PASS"
				if !o.Passed() {
					mark = "FAIL"
					failed++
				} else if o.Expect == nil {
					mark = "----"
				}
				fmt.Fprintf(out, "%s %-28s %3d %s\n", mark, o.Name, o.Result.Code, o.Result.Reason)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks did not match", failed, len(outcomes))
			}
			return nil
		},
	}
}
