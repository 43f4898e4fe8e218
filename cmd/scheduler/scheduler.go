// Package scheduler implements the live-monitoring scheduler command.
package scheduler

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sss97133/nuke-sub008/cmd/common"
	"github.com/sss97133/nuke-sub008/internal/scheduler"
)

// Command returns the scheduler command.
func Command(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the live-monitoring poll scheduler",
		Long: `Continuously claims monitored auctions that are due for a poll and
syncs them through a bounded worker pool, alongside a daily sweep that
turns monitors of concluded auctions dormant.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *cfgFile)
		},
	}
}

func run(ctx context.Context, cfgPath string) error {
	deps, err := common.Setup(cfgPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc := common.BuildServices(deps)

	cleanup := scheduler.NewCleanup(svc.Monitors, svc.FetchLog, deps.Log)
	if err := cleanup.Start(); err != nil {
		return err
	}
	defer cleanup.Stop()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(deps.Cfg.Scheduler, svc.Registry, svc.Syncer, deps.Log)
	return sched.Run(ctx)
}
