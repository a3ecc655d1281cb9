package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"spiral-forge/internal/logging"
	"spiral-forge/internal/render"
	"spiral-forge/internal/trainer"
)

func train(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.GetLogger(logging.ModuleCLI)
	logCPU(log)

	session, err := trainer.NewSession(cfg.SessionParams())
	if err != nil {
		return err
	}
	log.Infof("samples=%d classes=%d hidden=%d steps=%d", session.Samples(), cfg.NumClasses, cfg.HiddenSize, cfg.Steps)

	if _, err := trainer.Run(ctx, session, trainer.RunConfig{
		Steps:    cfg.Steps,
		LogEvery: cfg.LogEvery,
		Logger:   logging.GetLogger(logging.ModuleTrainer),
	}); err != nil {
		return errors.WithMessage(err, "training failed")
	}

	if cfg.RenderOut == "" {
		return nil
	}
	return writePNG(cfg.RenderOut, session.Snapshot(), cfg.Viewport(), log)
}

func writePNG(path string, src render.Source, vp render.Viewport, log logging.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create render output")
	}
	if err := render.RenderPNG(f, src, vp); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close render output")
	}
	log.Infof("wrote %dx%d decision boundary to %s", vp.Width, vp.Height, path)
	return nil
}

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "train on generated spiral data",
		Long:  "Generate a spiral dataset, run full-batch gradient descent and optionally render the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return train(ctx)
		},
	}
	attachFlags(cmd, append(commonFlags, "steps", "log-every", "render-out"))
	return cmd
}
