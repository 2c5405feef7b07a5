package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Handler re-attempts delivery of one ledgered forward.
type Handler func(ctx context.Context, record Record) error

// Source yields pending records one at a time.
type Source interface {
	Consume(ctx context.Context, fn func(ctx context.Context, record Record) error) (bool, error)
}

// Replayer periodically drains the ledger in arrival order. A pass stops at
// the first record that still fails, so replay never reorders messages of the
// same identity.
type Replayer struct {
	source    Source
	handler   Handler
	schedule  string
	batchSize int
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewReplayer creates a replayer running on the given cron schedule,
// processing at most batchSize records per pass.
func NewReplayer(log *slog.Logger, source Source, handler Handler, schedule string, batchSize int) *Replayer {
	if log == nil {
		log = slog.Default()
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Replayer{
		source:    source,
		handler:   handler,
		schedule:  schedule,
		batchSize: batchSize,
		logger:    log.With(slog.String("component", "replayer")),
	}
}

// Start schedules the replay passes.
func (r *Replayer) Start() error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.schedule, r.runPass); err != nil {
		return fmt.Errorf("schedule replay: %w", err)
	}
	r.cron.Start()
	r.logger.Info("replay scheduled", slog.String("schedule", r.schedule))
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (r *Replayer) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *Replayer) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	replayed := 0
	for i := 0; i < r.batchSize; i++ {
		processed, err := r.source.Consume(ctx, r.handler)
		if err != nil {
			r.logger.Warn("replay pass stopped", slog.Int("replayed", replayed), slog.Any("error", err))
			return
		}
		if !processed {
			break
		}
		replayed++
	}
	if replayed > 0 {
		r.logger.Info("replay pass finished", slog.Int("replayed", replayed))
	}
}
