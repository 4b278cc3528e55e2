package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kj20000/kidscard/internal/config"
	"github.com/Kj20000/kidscard/internal/data"
	"github.com/Kj20000/kidscard/internal/engine"
	"github.com/Kj20000/kidscard/internal/logging"
	"github.com/Kj20000/kidscard/internal/remote"
	"github.com/Kj20000/kidscard/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kidscard",
	Short: "Offline-first flashcard data manager",
	Long: `kidscard manages a local flashcard dataset (categories and cards)
that stays fully usable offline and reconciles with a cloud account
opportunistically.

All edits land in the local database immediately. When cloud sync is
enabled, pending changes are pushed in the background and remote state is
pulled and merged on demand or by the daemon.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.kidscard/config.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
	)
}

// app bundles the wired components behind every command.
type app struct {
	cfg     config.Config
	store   *store.Store
	engine  *engine.Engine
	manager *data.Manager
}

// openApp loads config and wires store, remote client, engine, and facade.
// The caller must invoke close() when done.
func openApp(cmd *cobra.Command) (*app, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.Storage.Path, logging.New("[store] ", cfg.Log))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	var client engine.RemoteStore
	if cfg.Remote.URL != "" {
		client = remote.NewClient(cfg.Remote.URL, cfg.Remote.Owner, cfg.Remote.Token,
			&http.Client{Timeout: 15 * time.Second})
	}

	eng := engine.New(st, client, engine.Config{
		Enabled:          cfg.Sync.Enabled,
		BatchSize:        cfg.Sync.BatchSize,
		PageSize:         cfg.Sync.PageSize,
		Debounce:         cfg.Sync.Debounce,
		Cooldown:         cfg.Sync.Cooldown,
		AutoSyncCooldown: cfg.Sync.AutoSyncCooldown,
		HydrateAttempts:  cfg.Sync.HydrateAttempts,
	}, logging.New("[engine] ", cfg.Log))

	mgr, err := data.New(cmd.Context(), st, eng, logging.New("[data] ", cfg.Log))
	if err != nil {
		eng.Close()
		_ = st.Close()
		return nil, nil, err
	}

	a := &app{cfg: cfg, store: st, engine: eng, manager: mgr}
	closeFn := func() {
		eng.Close()
		_ = st.Close()
	}
	return a, closeFn, nil
}
