package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var daemonInterval time.Duration

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon",
	Long: `Run kidscard as a background process that keeps the local dataset
reconciled with the cloud account.

The daemon hydrates once on startup (bounded retries, throttled by the
auto-sync cooldown), then runs a periodic full sync. Connectivity is
probed before each cycle so offline periods short-circuit without network
calls. Shuts down cleanly on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("kidscard daemon started (interval %v)\n", daemonInterval)

		a.engine.SetOnline(probeOnline(a.cfg.Remote.URL))
		if res := a.engine.Hydrate(ctx); !res.Success {
			fmt.Fprintf(os.Stderr, "Initial sync: %s\n", res.Message)
		}

		ticker := time.NewTicker(daemonInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("kidscard daemon stopped")
				return nil
			case <-ticker.C:
				a.engine.SetOnline(probeOnline(a.cfg.Remote.URL))
				res := a.manager.FullSync(ctx)
				if !res.Success && res.Err != nil {
					fmt.Fprintf(os.Stderr, "Sync: %s\n", res.Message)
				}
			}
		}
	},
}

// probeOnline is the daemon's stand-in for the host's network-status
// signal: a quick TCP dial against the remote endpoint.
func probeOnline(remoteURL string) bool {
	if remoteURL == "" {
		return false
	}
	u, err := url.Parse(remoteURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(host, port)
	}
	conn, err := net.DialTimeout("tcp", host, 3*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func init() {
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 5*time.Minute,
		"time between sync cycles")
	rootCmd.AddCommand(daemonCmd)
}
