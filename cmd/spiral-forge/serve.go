package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spiral-forge/internal/logging"
	"spiral-forge/internal/server"
	"spiral-forge/internal/trainer"
)

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.GetLogger(logging.ModuleServer)
	logCPU(log)

	session, err := trainer.NewSession(cfg.SessionParams())
	if err != nil {
		return err
	}
	gs, err := server.NewGRPCServer(cfg.ListenAddr, server.NewService(session, log), server.DefaultServerConfig())
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- gs.Start() }()
	log.Infof("serving %s on %s", server.ServiceName, gs.Address())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Infof("shutting down")
		gs.Stop()
		return nil
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve a training session over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
	attachFlags(cmd, append(commonFlags, "listen"))
	return cmd
}
