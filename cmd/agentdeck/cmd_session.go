package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/agentdeck/internal/state"
	"github.com/user/agentdeck/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect persisted chat sessions",
}

// openSessionStore loads the persisted sessions without the daemon's
// in-memory prompt catalog; snapshot data on each session is self-contained.
func openSessionStore() (*state.SessionStore, error) {
	cfg := loadConfig()
	persister := state.NewFilePersister(cfg.DataDir)
	return state.NewSessionStore(state.NewPromptCatalog(), persister)
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := openSessionStore()
		if err != nil {
			return err
		}

		list, err := sessions.ListRecent(context.Background(), 0)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROMPT\tMESSAGES\tUPDATED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				s.ID,
				s.PromptSnapshot.Title,
				len(s.Messages),
				s.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := openSessionStore()
		if err != nil {
			return err
		}

		sess, err := sessions.Get(context.Background(), types.SessionID(args[0]))
		if err != nil {
			return err
		}

		fmt.Printf("Session %s\n", sess.ID)
		fmt.Printf("Prompt:  %s\n", sess.PromptSnapshot.Title)
		fmt.Printf("Created: %s\n\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
		for _, m := range sess.Messages {
			suffix := ""
			if m.Tokens != nil {
				suffix = fmt.Sprintf(" (%d tokens)", *m.Tokens)
			}
			fmt.Printf("[%s] %s%s\n%s\n\n",
				m.Timestamp.Format("15:04:05"), m.Role, suffix, m.Text)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Delete a session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := openSessionStore()
		if err != nil {
			return err
		}
		ctx := context.Background()

		if args[0] == "all" {
			list, err := sessions.ListRecent(ctx, 0)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, s := range list {
				if _, err := sessions.Delete(ctx, s.ID); err != nil {
					return fmt.Errorf("delete session %s: %w", s.ID, err)
				}
			}
			fmt.Println("All sessions cleared.")
			return nil
		}

		removed, err := sessions.Delete(ctx, types.SessionID(args[0]))
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("session not found: %s", args[0])
		}
		fmt.Printf("Session %s cleared.\n", args[0])
		return nil
	},
}
