// Package serve implements the HTTP API server command.
package serve

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sss97133/nuke-sub008/cmd/common"
	"github.com/sss97133/nuke-sub008/internal/api"
)

// Command returns the serve command.
func Command(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
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

	handler := api.NewHandler(
		svc.Registry,
		svc.Syncer,
		svc.Monitors,
		svc.Listings,
		svc.Comments,
		svc.Fetcher,
		svc.Extractor,
		deps.Log,
	)
	server := api.NewServer(deps.Cfg.Server, handler, deps.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}
