// Command smoke runs an end-to-end check against a running BetEdge server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/betedge/internal/smoke"
	"github.com/okian/betedge/pkg/logger"
)

const runTimeout = 5 * time.Minute

func newRootCmd() *cobra.Command {
	cfg := smoke.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Smoke test a running BetEdge server",
		Long: `Smoke test a running BetEdge server.

The run checks health and status, reads picks, posts concurrent waitlist
signups, registers an account, places and replays a tracked bet and reads
the account's performance. With --admin-token it also settles the bet.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if !cfg.Verbose {
				_ = logger.SetLevelString("warn")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			report, err := smoke.Run(ctx, cfg)
			if report != nil {
				_ = report.Print(cmd.OutOrStdout())
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the server")
	f.IntVar(&cfg.Signups, "signups", cfg.Signups, "number of waitlist signups to post")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent signup requests")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	f.StringVar(&cfg.AccessCode, "access-code", cfg.AccessCode, "access code used to register")
	f.StringVar(&cfg.AdminToken, "admin-token", "", "admin token; enables the settle check")
	f.DurationVar(&cfg.WaitForPicks, "wait-picks", 30*time.Second, "how long to wait for the first picks")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every step")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
