// Package app wires the services together from configuration and hosts the
// operations that span more than one aggregate.
package app

import (
	"context"
	"database/sql"
	"errors"

	goredislib "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/rentalops/internal/activity"
	"github.com/matthewbaird/rentalops/internal/agenda"
	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/availability"
	"github.com/matthewbaird/rentalops/internal/clock"
	"github.com/matthewbaird/rentalops/internal/config"
	"github.com/matthewbaird/rentalops/internal/document"
	"github.com/matthewbaird/rentalops/internal/event"
	"github.com/matthewbaird/rentalops/internal/eventbus"
	"github.com/matthewbaird/rentalops/internal/financial"
	"github.com/matthewbaird/rentalops/internal/inspection"
	"github.com/matthewbaird/rentalops/internal/lock"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/maintenance"
	"github.com/matthewbaird/rentalops/internal/negotiation"
	"github.com/matthewbaird/rentalops/internal/notify"
	"github.com/matthewbaird/rentalops/internal/property"
	"github.com/matthewbaird/rentalops/internal/repository"
	"github.com/matthewbaird/rentalops/internal/store"
	"github.com/matthewbaird/rentalops/internal/worker"
)

type options struct {
	clock    clock.Clock
	log      *logger.Logger
	notifier notify.Notifier
	tracer   trace.TracerProvider
}

type Option func(*options)

func WithClock(clk clock.Clock) Option { return func(o *options) { o.clock = clk } }

func WithLogger(log *logger.Logger) Option { return func(o *options) { o.log = log } }

// WithNotifier replaces the default notifier, which writes to the log.
func WithNotifier(n notify.Notifier) Option { return func(o *options) { o.notifier = n } }

func WithTracerProvider(tp trace.TracerProvider) Option { return func(o *options) { o.tracer = tp } }

// App holds every service of a running instance.
type App struct {
	Config config.Config
	Log    *logger.Logger
	Clock  clock.Clock

	Repos        *repository.Set
	Activity     activity.Store
	Bus          *eventbus.Bus
	Availability *availability.Aggregator
	Properties   *property.Service
	Negotiations *negotiation.Service
	Financial    *financial.Service
	Documents    *document.Service
	Inspections  *inspection.Service
	Maintenance  *maintenance.Service
	Agenda       *agenda.Service
	Sweeper      *worker.ExpirySweeper

	closers []func() error
}

// New builds the application described by cfg. The caller must Close it.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{clock: clock.System()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l, err := logger.New(cfg.LogMode)
		if err != nil {
			return nil, apperr.Dependency("app.logger", err)
		}
		o.log = l
	}
	if o.notifier == nil {
		o.notifier = notify.NewLogNotifier(o.log)
	}

	a := &App{Config: cfg, Log: o.log, Clock: o.clock}
	if err := a.openStores(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	locks, err := a.openLocks()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Bus = eventbus.New(0, o.log)
	rec := event.NewActivityRecorder(a.Activity)
	rec.SetPublisher(a.Bus)
	a.Bus.Subscribe("log", eventbus.NewLogConsumer(o.log))
	a.Bus.Subscribe("notify", eventbus.NewNotifyConsumer(o.notifier, a.Activity, cfg.Notify.Recipient, cfg.Notify.MinWeight))
	events := event.NewEmitter(rec, o.log)

	var aggOpts []availability.Option
	var workerOpts []worker.Option
	if o.tracer != nil {
		aggOpts = append(aggOpts, availability.WithTracerProvider(o.tracer))
		workerOpts = append(workerOpts, worker.WithTracerProvider(o.tracer))
	}

	clk := o.clock
	a.Availability = availability.New(a.Repos, clk, events, o.log.With("component", "availability"), aggOpts...)
	a.Agenda = agenda.NewService(a.Repos, locks, clk, events, o.log.With("component", "agenda"))
	a.Properties = property.NewService(a.Repos, locks, a.Availability, clk, events, o.log.With("component", "property"))
	a.Negotiations = negotiation.NewService(a.Repos, locks, a.Availability, clk, events, o.log.With("component", "negotiation"), cfg.ProposalValidity(), cfg.DefaultCurrency)
	a.Financial = financial.NewService(a.Repos, a.Availability, clk, events, o.log.With("component", "financial"), cfg.DefaultCurrency)
	a.Documents = document.NewService(a.Repos, clk, events, o.log.With("component", "document"))
	a.Inspections = inspection.NewService(a.Repos, a.Agenda, a.Availability, clk, events, o.log.With("component", "inspection"), cfg.InspectionDuration())
	a.Maintenance = maintenance.NewService(a.Repos, a.Availability, clk, events, o.log.With("component", "maintenance"))

	a.Sweeper, err = worker.NewExpirySweeper(a.Negotiations, cfg.SweepSchedule, o.log.With("component", "worker"), workerOpts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	switch a.Config.Store.Driver {
	case "sqlite":
		db, err := store.OpenSQLite(a.Config.Store.DSN)
		if err != nil {
			return apperr.Dependency("app.store", err)
		}
		a.closers = append(a.closers, db.Close)
		return a.useSQL(ctx, db)
	case "memory", "":
		a.Repos = repository.NewMemorySet()
		a.Activity = activity.NewMemoryStore()
		return nil
	default:
		return apperr.Validation("app.store", "unknown store driver %q", a.Config.Store.Driver)
	}
}

func (a *App) useSQL(ctx context.Context, db *sql.DB) error {
	repos, err := repository.NewSQLSet(ctx, db)
	if err != nil {
		return apperr.Ensure("app.store", err)
	}
	history := activity.NewSQLStore(db)
	if err := history.CreateTable(ctx); err != nil {
		return apperr.Dependency("app.store", err)
	}
	a.Repos, a.Activity = repos, history
	return nil
}

func (a *App) openLocks() (lock.Manager, error) {
	switch a.Config.Lock.Driver {
	case "redis":
		client := goredislib.NewClient(&goredislib.Options{Addr: a.Config.Lock.RedisAddr})
		a.closers = append(a.closers, client.Close)
		return lock.NewRedis(client, lock.DefaultOptions(), a.Log.With("component", "lock")), nil
	case "local", "":
		return lock.NewLocal(), nil
	default:
		return nil, apperr.Validation("app.lock", "unknown lock driver %q", a.Config.Lock.Driver)
	}
}

// Run starts the event bus, catches up on proposals that expired while
// the process was down, then runs the sweep schedule until ctx is
// cancelled. Buffered events are drained before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.Bus.Start(ctx)
	defer a.Bus.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := a.Sweeper.RunOnce(gctx)
		if err != nil && gctx.Err() == nil {
			a.Log.Warn("startup expiry sweep failed", "error", err)
			return nil
		}
		a.Log.Info("startup expiry sweep", "expired", res.Expired, "skipped", res.Skipped, "failed", res.Failed)
		return nil
	})
	g.Go(func() error { return a.Sweeper.Run(gctx) })
	return g.Wait()
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
