package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/quill/internal/config"
	"github.com/dshills/quill/internal/editor"
	"github.com/dshills/quill/internal/highlight"
	"github.com/dshills/quill/internal/host"
	"github.com/dshills/quill/internal/logging"
	"github.com/dshills/quill/internal/project/vfs"
	"github.com/dshills/quill/internal/project/watcher"
	"github.com/dshills/quill/internal/server"
	"github.com/dshills/quill/internal/toolchain"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve [workspace]",
		Short: "Serve the editor to a browser client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flagOverrides(cmd.Flags())
			if len(args) == 1 {
				overrides["workspace.path"] = args[0]
			}
			cfg, err := config.Load(config.Options{Path: configPath, Overrides: overrides})
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to configuration file (TOML or YAML)")
	flags.String("listen", "", "Address to listen on")
	flags.StringP("workspace", "w", "", "Workspace directory to open at startup")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("no-host", false, "Do not start the compiler host")
	flags.Bool("no-watch", false, "Do not watch the workspace for changes")
	return cmd
}

// flagOverrides maps the flags set on the command line to config paths.
func flagOverrides(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	strs := map[string]string{
		"listen":    "server.listen",
		"workspace": "workspace.path",
		"log-level": "logging.level",
	}
	for name, path := range strs {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			out[path] = v
		}
	}
	if flags.Changed("no-host") {
		v, _ := flags.GetBool("no-host")
		out["host.enabled"] = !v
	}
	if flags.Changed("no-watch") {
		v, _ := flags.GetBool("no-watch")
		out["watcher.enabled"] = !v
	}
	return out
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := logging.Configure(cfg.Logging); err != nil {
		return err
	}
	log := logging.NewLogger("quill")

	ed := newEditor(cfg)
	defer ed.Close()

	if cfg.Workspace.Path != "" {
		dir, err := filepath.Abs(cfg.Workspace.Path)
		if err != nil {
			return err
		}
		if err := ed.OpenWorkspace(ctx, dir); err != nil {
			return fmt.Errorf("open workspace: %w", err)
		}
	}

	srv := server.New(ed,
		server.WithLogger(logging.NewLogger("server")),
		server.WithPath(cfg.Server.Path),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(cfg.Server.Listen)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	return <-errc
}

func newEditor(cfg config.Config) *editor.Editor {
	fsys := vfs.NewOSFS()
	log := logging.NewLogger("editor")

	pipeline := highlight.NewPipeline(
		highlight.NewGoCompiler(fsys, highlight.WithGoLogger(logging.NewLogger("compiler"))),
		fsys,
		highlight.WithLogger(logging.NewLogger("highlight")),
		highlight.WithWorkers(cfg.Highlight.Workers),
	)

	opts := []editor.Option{
		editor.WithLogger(log),
		editor.WithPipeline(pipeline),
		editor.WithHighlightDelay(cfg.Highlight.Delay),
		editor.WithWatchDelay(cfg.Watcher.Delay),
	}
	if cfg.Workspace.BrowseRoot != "" {
		opts = append(opts, editor.WithBrowseRoot(cfg.Workspace.BrowseRoot))
	}
	if cfg.Host.Enabled {
		opts = append(opts, editor.WithHostFactory(hostFactory(cfg.Host)))
	}
	if cfg.Watcher.Enabled {
		ignore := cfg.Watcher.Ignore
		opts = append(opts, editor.WithWatcherFactory(func() (watcher.Watcher, error) {
			w, err := watcher.NewFSNotifyWatcher(watcher.WithIgnoreNames(ignore...))
			if err != nil {
				return nil, err
			}
			return w, nil
		}))
	}
	return editor.New(fsys, opts...)
}

func hostFactory(cfg config.HostConfig) editor.HostFactory {
	return func(workspace string) (editor.HostClient, error) {
		log := logging.NewLogger("host").WithField("workspace", workspace)
		launcher := host.ProcessLauncher{
			Config: host.ProcessConfig{
				Command: cfg.Command,
				Args:    cfg.Args,
				Env:     cfg.Env,
				WorkDir: workspace,
				Resolver: toolchain.EnvResolver{
					Var:      cfg.RuntimeEnv,
					Fallback: cfg.RuntimeDir,
				},
			},
			Log: log,
		}
		return host.New(launcher, host.WithLogger(log)), nil
	}
}

