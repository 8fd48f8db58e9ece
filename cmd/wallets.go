package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ticket-market/internal/services"
)

func newResetWalletsCmd(settlement *services.Settlement) *cobra.Command {
	return &cobra.Command{
		Use:   "wallets:reset <userId>",
		Short: "Zero every wallet of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wallets, err := settlement.ResetWallets(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WALLET\tBALANCE")
			for _, wallet := range wallets {
				fmt.Fprintf(w, "%s\t%s\n", wallet.WalletType, wallet.Balance.StringFixed(2))
			}
			return w.Flush()
		},
	}
}
