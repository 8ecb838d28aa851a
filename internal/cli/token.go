package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens for the HTTP surface",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for an account",
		Long:  "Issue a bearer token for POST /sync. The token is shown once; only its hash is stored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			accountID, err := resolveAccountID(ctx, e.db, accountFlag)
			if err != nil {
				return err
			}

			token, err := e.db.CreateAPIToken(ctx, accountID)
			if err != nil {
				return err
			}

			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), jsonToken{AccountID: accountID, Token: token})
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account ID (defaults to the only linked account)")
	return cmd
}
