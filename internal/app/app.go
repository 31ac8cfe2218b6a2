// Package app wires one context: config, logger, document store, change
// bridge, package repository and settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/wordbank/internal/bridge"
	"github.com/calvinalkan/wordbank/internal/config"
	"github.com/calvinalkan/wordbank/internal/docstore"
	"github.com/calvinalkan/wordbank/internal/logger"
	"github.com/calvinalkan/wordbank/internal/pack"
	"github.com/calvinalkan/wordbank/internal/settings"
)

// BridgeDir is the journal directory inside the data directory.
const BridgeDir = ".bridge"

// App is one running context.
type App struct {
	Config   config.Config
	Log      *logger.Logger
	Store    *docstore.Store
	Bridge   *bridge.Bridge
	Packages *pack.Repository
	Settings *settings.Service
}

// Open builds every component from cfg and initializes the package store.
// An initialization failure is returned; the caller must not continue.
func Open(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	store, err := docstore.New(cfg.DataDirAbs, docstore.Options{
		LockTimeout: time.Duration(cfg.LockTimeout),
	})
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	br, err := bridge.New(transport, bridge.Options{ID: cfg.Context, Logger: log})
	if err != nil {
		_ = transport.Close()

		return nil, err
	}

	a := &App{
		Config:   cfg,
		Log:      log.With("context", br.ID()),
		Store:    store,
		Bridge:   br,
		Packages: pack.New(store, pack.Options{Logger: log, Announcer: br}),
		Settings: settings.New(store, br, log),
	}

	if err := a.Packages.Initialize(ctx); err != nil {
		_ = br.Close()

		return nil, err
	}

	br.Subscribe(pack.EventPackagesChanged, a.onPackagesChanged)

	return a, nil
}

func newTransport(ctx context.Context, cfg config.Config, log *logger.Logger) (bridge.Transport, error) {
	switch cfg.Bridge {
	case config.BridgeRedis:
		return bridge.NewRedis(ctx, bridge.RedisOptions{
			Addr:   cfg.RedisAddr,
			Prefix: cfg.RedisPrefix,
			Logger: log,
		})
	default:
		return bridge.NewJournal(filepath.Join(cfg.DataDirAbs, BridgeDir), bridge.JournalOptions{
			Logger:       log,
			PollInterval: time.Duration(cfg.PollInterval),
			MaxBytes:     cfg.MaxJournalBytes,
			LockTimeout:  time.Duration(cfg.LockTimeout),
		})
	}
}

// onPackagesChanged reloads the catalog written by a peer context.
func (a *App) onPackagesChanged(_ context.Context, msg bridge.Message) {
	change, err := bridge.Decode[pack.ChangePayload](msg)
	if err != nil {
		a.Log.Warn("bad change payload", "error", err)
	}

	if err := a.Packages.Refresh(); err != nil {
		a.Log.Warn("refresh after peer change failed", "from", msg.Source, "op", change.Op, "error", err)

		return
	}

	a.Log.Debug("refreshed after peer change", "from", msg.Source, "op", change.Op, "uuid", change.UUID)
}

// Run starts receiving announcements and calls fn. Delivery stops when fn
// returns or ctx is done; the bridge is closed afterwards.
func (a *App) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Bridge.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()

		return fn(gctx)
	})

	// Stop the forwarders as soon as fn is done or ctx is cancelled.
	g.Go(func() error {
		<-gctx.Done()

		return a.Bridge.Close()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Close releases the bridge and flushes the logger.
func (a *App) Close() error {
	err := a.Bridge.Close()
	a.Log.Sync()

	if err != nil {
		return fmt.Errorf("closing bridge: %w", err)
	}

	return nil
}
