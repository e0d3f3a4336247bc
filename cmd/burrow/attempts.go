package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/burrow/pkg/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Inspect recorded brokering attempts",
}

var attemptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List brokering attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		workspaceID, _ := cmd.Flags().GetString("workspace")
		attempts, err := store.ListAttempts()
		if workspaceID != "" {
			attempts, err = store.ListAttemptsByWorkspace(workspaceID)
		}
		if err != nil {
			return fmt.Errorf("failed to list attempts: %v", err)
		}

		if len(attempts) == 0 {
			fmt.Println("No brokering attempts recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWORKSPACE\tOWNER\tSTATE\tBROKERS\tPLUGINS\tSTARTED\tERROR")
		for _, a := range attempts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				a.ID, a.RuntimeID.WorkspaceID, a.RuntimeID.OwnerID, a.State,
				a.ExpectedBrokers, len(a.Plugins), a.StartedAt.Format(time.RFC3339),
				truncate(a.Error, 60))
		}
		return w.Flush()
	},
}

var attemptsInspectCmd = &cobra.Command{
	Use:   "inspect ID",
	Short: "Show one brokering attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		attempt, err := store.GetAttempt(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(attempt)
		if err != nil {
			return fmt.Errorf("failed to encode attempt: %v", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var attemptsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a brokering attempt record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.GetAttempt(args[0]); err != nil {
			return err
		}
		if err := store.DeleteAttempt(args[0]); err != nil {
			return fmt.Errorf("failed to delete attempt: %v", err)
		}
		fmt.Printf("✓ Deleted attempt %s\n", args[0])
		return nil
	},
}

func init() {
	attemptsCmd.AddCommand(attemptsListCmd)
	attemptsCmd.AddCommand(attemptsInspectCmd)
	attemptsCmd.AddCommand(attemptsDeleteCmd)

	attemptsCmd.PersistentFlags().String("data-dir", "", "Directory of the attempt store (default from config)")
	attemptsListCmd.Flags().String("workspace", "", "Only show attempts of this workspace")
}

func openStore(cmd *cobra.Command) (*storage.BoltStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewBoltStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %v", err)
	}
	return store, nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
