// Package app assembles a running bot from a Config: logger, store backend,
// account cache, ledger, consent manager, auto-reply registry and command
// router. Transports (the console in internal/cli, the scenario harness)
// build an App and feed messages to its Router.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/clock"
	"github.com/roach88/pairledger/internal/command"
	"github.com/roach88/pairledger/internal/config"
	"github.com/roach88/pairledger/internal/consent"
	"github.com/roach88/pairledger/internal/ledger"
	"github.com/roach88/pairledger/internal/logging"
	"github.com/roach88/pairledger/internal/store"
)

// App is a fully wired bot.
type App struct {
	Config  config.Config
	Log     *slog.Logger
	Clock   clock.Clock
	Store   store.Backend
	Cache   *ledger.Cache
	Ledger  *ledger.Ledger
	Consent *consent.Manager
	Replies *autoreply.Registry
	Router  *command.Router

	closers []io.Closer
}

type options struct {
	log     *slog.Logger
	stderr  io.Writer
	clock   clock.Clock
	source  ledger.Source
	ids     consent.IDGenerator
	notify  consent.Notifier
	backend store.Backend
	wrap    func(ledger.AccountStore) ledger.AccountStore
}

// Option customises New.
type Option func(*options)

// WithLogger uses l instead of building one from Config.Log.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithStderr sets where the log goes when Config.Log.File is empty.
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.stderr = w
	}
}

// WithClock sets the clock shared by the ledger and the consent manager.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithSource sets the wager outcome source.
func WithSource(s ledger.Source) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithIDGenerator sets the workflow id generator.
func WithIDGenerator(g consent.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithNotifier receives every workflow resolution.
func WithNotifier(n consent.Notifier) Option {
	return func(o *options) {
		o.notify = n
	}
}

// WithBackend uses an already open backend instead of Config.Store.
// The App takes ownership and closes it.
func WithBackend(b store.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithAccountStore wraps the account store seen by the cache.
func WithAccountStore(wrap func(ledger.AccountStore) ledger.AccountStore) Option {
	return func(o *options) {
		o.wrap = wrap
	}
}

// New wires an App. On error everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{stderr: os.Stderr, clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Clock: o.clock}

	a.Log = o.log
	if a.Log == nil {
		log, closer, err := logging.New(cfg.Log, o.stderr)
		if err != nil {
			return nil, err
		}
		a.Log = log
		a.closers = append(a.closers, closer)
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = store.OpenBackend(cfg.Store.Driver, cfg.Store.Path)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
		}
	}
	a.Store = backend
	a.closers = append([]io.Closer{backend}, a.closers...)

	var accounts ledger.AccountStore = backend
	if o.wrap != nil {
		accounts = o.wrap(accounts)
	}

	a.Cache = ledger.NewCache(accounts,
		ledger.WithCapacity(cfg.CacheCapacity),
		ledger.WithStartingBalance(cfg.StartingBalance),
		ledger.WithCacheLogger(a.Log.With("component", "cache")),
	)

	ledgerOpts := []ledger.Option{
		ledger.WithClock(o.clock),
		ledger.WithLogger(a.Log.With("component", "ledger")),
		ledger.WithAffection(cfg.AffectionStep, cfg.AffectionCooldown),
		ledger.WithDaily(cfg.DailyReward, cfg.DailyCooldown),
	}
	if o.source != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithSource(o.source))
	}
	a.Ledger = ledger.New(a.Cache, ledgerOpts...)

	consentOpts := []consent.Option{
		consent.WithClock(o.clock),
		consent.WithLogger(a.Log.With("component", "consent")),
	}
	if o.ids != nil {
		consentOpts = append(consentOpts, consent.WithIDGenerator(o.ids))
	}
	if o.notify != nil {
		consentOpts = append(consentOpts, consent.WithNotifier(o.notify))
	}
	a.Consent = consent.NewManager(a.Ledger, consentOpts...)

	replies, err := autoreply.Load(ctx, backend)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("load auto-replies: %w", err)
	}
	a.Replies = replies

	a.Router = command.New(a.Ledger, a.Consent, a.Replies, a.Settings(),
		command.WithLogger(a.Log.With("component", "router")))

	a.Log.Debug("app ready",
		"store", cfg.Store.Driver,
		"cache_capacity", cfg.CacheCapacity,
		"replies", len(replies.List()))
	return a, nil
}

// Settings returns the router settings derived from Config.
func (a *App) Settings() command.Settings {
	return command.Settings{
		Prefix:         a.Config.Prefix,
		MarriageCost:   a.Config.MarriageCost,
		DivorceCost:    a.Config.DivorceCost,
		ConsentTimeout: a.Config.ConsentTimeout,
	}
}

// Tick runs the consent sweep every interval until ctx is done. Workflow
// timers normally resolve deadlines first; the sweep catches anything a
// timer missed and prunes old resolutions.
func (a *App) Tick(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if res := a.Consent.OnTick(ctx, a.Clock.Now()); len(res) > 0 {
				a.Log.Debug("tick expired workflows", "count", len(res))
			}
		}
	}
}

// Close flushes unsaved accounts, then closes the store and the log.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Ledger.Flush(ctx); err != nil {
		a.Log.Error("flush on shutdown failed", "dirty", a.Cache.Dirty(), "error", err)
		errs = append(errs, err)
	}
	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
