package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/inboxsync/internal/classify"
	"github.com/lu-zhengda/inboxsync/internal/domain"
	"github.com/lu-zhengda/inboxsync/internal/store"
)

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Inspect stored messages",
	}
	cmd.AddCommand(newMessagesListCmd(), newMessagesShowCmd())
	return cmd
}

func newMessagesListCmd() *cobra.Command {
	var accountFlag string
	var categoryFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkCategory(categoryFlag); err != nil {
				return err
			}

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

			msgs, err := e.db.ListMessages(ctx, store.ListMessageOptions{
				AccountID: accountID,
				Category:  categoryFlag,
				Limit:     limitFlag,
			})
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}

			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), toJSONMessages(msgs))
			}

			if len(msgs) == 0 {
				fmt.Println("No messages found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "UNREAD\tPRIO\tCATEGORY\tFROM\tSUBJECT\tDATE\tID")
			for _, m := range msgs {
				unread := " "
				if !m.IsRead {
					unread = "*"
				}
				from := m.FromDisplayName
				if from == "" {
					from = m.FromEmail
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
					unread, m.Priority, m.Category,
					truncate(from, 30), truncate(m.Subject, 50),
					m.ReceivedAt.Format("Jan 2, 2006"), m.ProviderID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account ID (defaults to the only linked account)")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "only show this category ("+strings.Join(classify.Categories, ", ")+")")
	cmd.Flags().IntVar(&limitFlag, "limit", 25, "max messages to show")
	return cmd
}

func newMessagesShowCmd() *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "show [message-id]",
		Short: "Show one stored message with its text body",
		Args:  cobra.ExactArgs(1),
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

			m, err := e.db.GetMessage(ctx, accountID, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no stored message %s for %s", args[0], accountID)
			}
			if err != nil {
				return err
			}

			if jsonFlag {
				out := toJSONMessage(m)
				out.BodyText = m.BodyText
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printMessage(cmd.OutOrStdout(), m)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account ID (defaults to the only linked account)")
	return cmd
}

func printMessage(w io.Writer, m *domain.Message) {
	from := m.FromEmail
	if m.FromDisplayName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromDisplayName, m.FromEmail)
	}
	fmt.Fprintf(w, "From:     %s\n", from)
	fmt.Fprintf(w, "To:       %s\n", m.ToEmail)
	fmt.Fprintf(w, "Subject:  %s\n", m.Subject)
	fmt.Fprintf(w, "Date:     %s\n", m.ReceivedAt.Format("Mon, Jan 2, 2006 3:04 PM"))
	fmt.Fprintf(w, "Priority: %d  Category: %s  Inbox: %t\n", m.Priority, m.Category, m.HasLabel(domain.LabelInbox))
	fmt.Fprintln(w)
	body := m.BodyText
	if body == "" {
		body = m.Snippet
	}
	fmt.Fprintln(w, body)
}

// checkCategory accepts an empty filter or one of the classifier's
// categories.
func checkCategory(c string) error {
	if c == "" || slices.Contains(classify.Categories, c) {
		return nil
	}
	return fmt.Errorf("unknown category %q (use %s)", c, strings.Join(classify.Categories, ", "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
