package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
)

// Entry is one scenario of a batch.
type Entry struct {
	ID      string
	Title   string
	Request schemas.RunRequest
}

// Observer receives a copy of a record after every status change.
type Observer func(rec schemas.RunRecord)

// Transition moves rec to next, stamping start and finish times. Any move
// the run lifecycle does not allow is an error and leaves rec untouched.
func Transition(rec *schemas.RunRecord, next schemas.RunStatus, log string, now time.Time) error {
	if !rec.Status.CanTransition(next) {
		return fmt.Errorf("run %s: illegal status transition %s -> %s", rec.ID, rec.Status, next)
	}
	rec.Status = next
	if next == schemas.StatusRunning {
		rec.StartedAt = &now
	}
	if next.Terminal() {
		rec.FinishedAt = &now
		rec.Log = log
	}
	return nil
}

// Batch runs entries strictly one after another: each run reaches its
// terminal state before the next is dispatched.
type Batch struct {
	run     func(ctx context.Context, req schemas.RunRequest) Result
	observe Observer
	logger  *zap.Logger
	now     func() time.Time
}

// NewBatch creates a batch runner over o. observe may be nil.
func NewBatch(o *Orchestrator, observe Observer) *Batch {
	return &Batch{run: o.Run, observe: observe, logger: o.logger.Named("batch"), now: time.Now}
}

// Run executes the entries and returns their final records in entry order.
// Entries not yet dispatched when ctx ends are marked error without running.
func (b *Batch) Run(ctx context.Context, entries []Entry) []schemas.RunRecord {
	records := make([]schemas.RunRecord, len(entries))
	for i, e := range entries {
		records[i] = schemas.RunRecord{ID: e.ID, Title: e.Title, Status: schemas.StatusPending}
		b.notify(records[i])
	}

	for i, e := range entries {
		rec := &records[i]
		if err := ctx.Err(); err != nil {
			b.move(rec, schemas.StatusError, "batch cancelled before this scenario was dispatched")
			continue
		}
		b.move(rec, schemas.StatusRunning, "")
		res := b.run(ctx, e.Request)
		b.move(rec, res.Status, res.Log)
	}
	return records
}

func (b *Batch) move(rec *schemas.RunRecord, next schemas.RunStatus, log string) {
	if err := Transition(rec, next, log, b.now()); err != nil {
		b.logger.Error("Dropped status change.", zap.Error(err))
		return
	}
	b.notify(*rec)
}

func (b *Batch) notify(rec schemas.RunRecord) {
	if b.observe != nil {
		b.observe(rec)
	}
}
