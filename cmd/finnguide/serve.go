package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"finnguide/internal/adapter/gateway"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long:  "Serve POST /query/ (streamed answers), GET /health and, when enabled,\nthe /ws WebSocket and /mcp endpoints.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *cfgPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func runServe(ctx context.Context, cfgPath, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setupRuntime(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	if addr != "" {
		rt.cfg.Server.Addr = addr
	}

	comps, err := initAgent(ctx, rt.cfg, rt.log)
	if err != nil {
		return err
	}

	srv, err := gateway.NewServer(gateway.ServerDeps{
		Agent:   comps.Agent,
		Tools:   comps.Tools,
		Config:  rt.cfg.Server,
		Logger:  rt.log,
		Version: version,
	})
	if err != nil {
		return err
	}

	rt.log.Info("finnguide starting",
		"version", version,
		"llm", comps.LLM.DefaultLLM.Name(),
		"providers", comps.LLM.Registry.List(),
	)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	rt.log.Info("finnguide stopped")
	return nil
}
