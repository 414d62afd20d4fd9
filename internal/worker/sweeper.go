// Package worker contains background workers that keep time-driven state
// current.
package worker

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matthewbaird/rentalops/internal/apperr"
	"github.com/matthewbaird/rentalops/internal/logger"
	"github.com/matthewbaird/rentalops/internal/negotiation"
)

// ProposalExpirer cancels negotiations whose proposal validity has passed.
type ProposalExpirer interface {
	ExpireProposals(ctx context.Context) (negotiation.SweepResult, error)
}

type Option func(*ExpirySweeper)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(w *ExpirySweeper) { w.tracer = tp.Tracer("rentalops/worker") }
}

// ExpirySweeper runs the proposal expiry sweep on a cron schedule.
type ExpirySweeper struct {
	expirer  ProposalExpirer
	schedule cron.Schedule
	spec     string
	tracer   trace.Tracer
	log      *logger.Logger

	mu      sync.Mutex
	lastRun negotiation.SweepResult
	runs    int
}

// NewExpirySweeper parses spec with the standard cron parser, which also
// accepts descriptors such as "@every 15m" and "@hourly".
func NewExpirySweeper(expirer ProposalExpirer, spec string, log *logger.Logger, opts ...Option) (*ExpirySweeper, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, apperr.Validation("worker.sweeper", "invalid sweep schedule %q: %v", spec, err)
	}
	w := &ExpirySweeper{
		expirer:  expirer,
		schedule: sched,
		spec:     spec,
		tracer:   otel.Tracer("rentalops/worker"),
		log:      logger.OrNop(log),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// RunOnce performs a single sweep.
func (w *ExpirySweeper) RunOnce(ctx context.Context) (negotiation.SweepResult, error) {
	ctx, span := w.tracer.Start(ctx, "worker.expire_proposals")
	defer span.End()

	res, err := w.expirer.ExpireProposals(ctx)
	span.SetAttributes(
		attribute.Int("sweep.expired", res.Expired),
		attribute.Int("sweep.skipped", res.Skipped),
		attribute.Int("sweep.failed", res.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	w.mu.Lock()
	w.lastRun = res
	w.runs++
	w.mu.Unlock()
	return res, err
}

// Stats returns the number of completed sweeps and the last result.
func (w *ExpirySweeper) Stats() (int, negotiation.SweepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.lastRun
}

// Run schedules the sweep and blocks until ctx is cancelled. A sweep that
// is still running when the next tick fires causes that tick to be
// skipped. Run waits for an in-flight sweep before returning.
func (w *ExpirySweeper) Run(ctx context.Context) error {
	cl := cronLogger{w.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	c.Schedule(w.schedule, cron.FuncJob(func() {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("proposal expiry sweep failed", "error", err)
		}
	}))

	w.log.Info("expiry sweeper started", "schedule", w.spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info("expiry sweeper stopped")
	return nil
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
