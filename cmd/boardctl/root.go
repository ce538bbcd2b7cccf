package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"boardcore/internal/config"
	"boardcore/internal/observability"
)

// app carries state shared by every subcommand.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	serverURL  string
	timeout    time.Duration

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Serve and edit category boards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&a.serverURL, "server", "", "board API base URL (overrides server.url)")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "deadline for client commands")

	root.AddCommand(newServeCmd(a), newCategoriesCmd(a), newArchiveCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.Server.URL = a.serverURL
	}
	logger, err := observability.NewLogger(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
