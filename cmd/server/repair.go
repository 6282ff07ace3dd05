package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair-links [email...]",
	Short: "Link farmer and customer rows that share an email but have no multi account",
	Long: `repair-links creates the missing multi account for every email that has
both a farmer and a customer row.  With arguments only those emails are
checked.  Running it twice is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, cfg, bootstrapOpts{})
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			n, err := a.accounts.RepairAll(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "linked %d account(s)\n", n)
			return err
		}
		for _, email := range args {
			m, created, err := a.accounts.Repair(ctx, email)
			if err != nil {
				return fmt.Errorf("%s: %w", email, err)
			}
			status := "already linked"
			if created {
				status = "linked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s as %s\n", email, status, m.ID)
		}
		return nil
	},
}
