package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kj20000/kidscard/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local changes, then pull and merge remote state",
	Long: `Run a full sync against the cloud account.

Pending local changes are pushed first (categories before flashcards, in
batches), then remote state is pulled, merged by recency, deduplicated,
and persisted. A push failure skips the pull so local edits are never
overwritten by stale remote data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		start := time.Now()
		res := a.manager.FullSync(cmd.Context())
		printResult("Full sync", res, time.Since(start))
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Upload pending local changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		start := time.Now()
		res := a.manager.SyncToCloud(cmd.Context())
		printResult("Push", res, time.Since(start))
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Download and merge remote state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		start := time.Now()
		res := a.manager.PullFromCloud(cmd.Context())
		printResult("Pull", res, time.Since(start))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		state := a.manager.SyncState()
		settings := a.manager.Settings()

		fmt.Printf("Cloud sync:      %s\n", onOff(settings.CloudSync && a.cfg.Sync.Enabled))
		fmt.Printf("Pending changes: %d\n", state.PendingChanges)
		if state.LastSyncedAt != nil {
			fmt.Printf("Last synced:     %s\n", state.LastSyncedAt.Format(time.RFC1123))
		} else {
			fmt.Printf("Last synced:     never\n")
		}
		fmt.Printf("Categories:      %d\n", len(a.manager.Categories()))
		fmt.Printf("Flashcards:      %d\n", len(a.manager.Flashcards()))
		fmt.Printf("Database:        %s\n", a.cfg.Storage.Path)
		return nil
	},
}

func printResult(op string, res engine.Result, elapsed time.Duration) {
	if res.Success {
		fmt.Printf("%s complete in %v (%d rows)\n", op, elapsed.Round(time.Millisecond), res.Synced)
		return
	}
	fmt.Fprintf(os.Stderr, "%s did not complete: %s\n", op, res.Message)
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "  %v\n", res.Err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	rootCmd.AddCommand(syncCmd, pushCmd, pullCmd, statusCmd)
}
