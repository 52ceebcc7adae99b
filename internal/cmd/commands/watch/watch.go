package watch

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hashicorp-forge/sheetwatch/internal/cmd/base"
	"github.com/hashicorp-forge/sheetwatch/internal/config"
	"github.com/hashicorp-forge/sheetwatch/internal/server"
	"github.com/hashicorp-forge/sheetwatch/pkg/watcher"
)

const shutdownTimeout = 10 * time.Second

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Watch a workbook and assign identifiers to new rows"
}

func (c *Command) Help() string {
	return `Usage: sheetwatch watch [-config=sheetwatch.hcl]

  Poll the configured workbook for changes and append a zero-padded
  identifier to the name of every row that does not have one yet.

  Settings come from the optional config file and the environment
  (TENANT_ID, CLIENT_ID, CLIENT_SECRET, DRIVE_ID, ITEM_ID, POLL_INTERVAL,
  PORT, SHEETWATCH_STORE, ...). Environment variables win.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("watch", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[SHEETWATCH_CONFIG] Path to an HCL config file.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	configPath := c.flagConfig
	if val, ok := os.LookupEnv("SHEETWATCH_CONFIG"); ok && configPath == "" {
		configPath = val
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
		return 1
	}
	c.Log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.run(ctx, cfg); err != nil {
		c.Log.Error("sheetwatch stopped with error", "error", err)
		return 1
	}

	c.Log.Info("sheetwatch stopped gracefully")
	return 0
}

func (c *Command) run(ctx context.Context, cfg *config.Config) error {
	st, wake, err := newStore(ctx, cfg, c.Log)
	if err != nil {
		return fmt.Errorf("error initializing %s store: %w", cfg.Store, err)
	}

	w, err := newWatcher(cfg, st, c.Log)
	if err != nil {
		return err
	}

	svc, err := watcher.NewService(watcher.ServiceConfig{
		Watcher:  w,
		Interval: cfg.Interval(),
		Wake:     wake,
		Notifier: newNotifier(cfg, c.Log),
		Logger:   c.Log,
	})
	if err != nil {
		return fmt.Errorf("error creating sync service: %w", err)
	}

	mux := server.NewMux(server.Server{
		Status: svc,
		Logger: c.Log.Named("http"),
	})
	addr := ":" + strconv.Itoa(cfg.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := svc.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, addr, mux, shutdownTimeout, c.Log.Named("http"))
	})

	return g.Wait()
}
