package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage linked mailboxes",
	}
	cmd.AddCommand(newAccountLinkCmd())
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountRemoveCmd())
	return cmd
}

func newAccountLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Link a Gmail account via OAuth",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			fmt.Fprintln(os.Stderr, "Starting Gmail OAuth flow...")
			token, err := e.oauth().Authenticate(ctx, os.Stderr)
			if err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}

			email, err := e.gmailClient().Profile(ctx, token.AccessToken)
			if err != nil {
				return fmt.Errorf("failed to get profile email: %w", err)
			}

			// The mailbox address doubles as the account ID.
			if _, err := e.db.GetAccount(ctx, email); errors.Is(err, store.ErrNotFound) {
				if err := e.db.CreateAccount(ctx, &domain.Account{ID: email, Email: email, Provider: "gmail"}); err != nil {
					return fmt.Errorf("failed to store account: %w", err)
				}
			} else if err != nil {
				return err
			}

			cred := &domain.Credential{
				AccountID:    email,
				AccessToken:  token.AccessToken,
				RefreshToken: token.RefreshToken,
				EmailAddress: email,
			}
			if !token.Expiry.IsZero() {
				exp := token.Expiry.UTC()
				cred.ExpiresAt = &exp
			}
			if err := e.creds.SaveCredential(ctx, cred); err != nil {
				return fmt.Errorf("failed to save credential: %w", err)
			}

			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), jsonAction{OK: true, Action: "link", Email: email, AccountID: email})
			}

			fmt.Printf("Account linked: %s\n", email)
			return nil
		},
	}
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			accounts, err := e.db.ListAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			counts := make(map[string]int, len(accounts))
			for _, a := range accounts {
				n, err := e.db.CountMessages(cmd.Context(), a.ID)
				if err != nil {
					return err
				}
				counts[a.ID] = n
			}

			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), toJSONAccounts(accounts, counts))
			}

			if len(accounts) == 0 {
				fmt.Println("No accounts linked. Run 'inboxsync account link' to add one.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tPROVIDER\tMESSAGES\tCREATED")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					a.ID,
					a.Email,
					a.Provider,
					counts[a.ID],
					a.CreatedAt.Format(time.DateOnly),
				)
			}
			return w.Flush()
		},
	}
}

func newAccountRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [email]",
		Short: "Remove an account with its credential and stored messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]

			e, err := setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			accounts, err := e.db.ListAccounts(ctx)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			var target *domain.Account
			for i := range accounts {
				if accounts[i].Email == email || accounts[i].ID == email {
					target = &accounts[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("account not found: %s", email)
			}

			if err := e.db.DeleteAccount(ctx, target.ID); err != nil {
				return fmt.Errorf("failed to delete account: %w", err)
			}

			if kr, ok := e.creds.(*store.KeyringCredentialStore); ok {
				if err := kr.DeleteCredential(target.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
					// Non-fatal: the credential may already be gone.
					fmt.Fprintf(os.Stderr, "Warning: could not remove credential from keyring: %v\n", err)
				}
			}

			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), jsonAction{OK: true, Action: "remove", Email: target.Email})
			}

			fmt.Printf("Account removed: %s\n", target.Email)
			return nil
		},
	}
}
