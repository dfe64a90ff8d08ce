// Package batch runs a fixed number of visits one after another.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/visitbatch/internal/store"
	"github.com/ibeckermayer/visitbatch/internal/visitor"
)

// DefaultSize is the number of visits in one batch.
const DefaultSize = 50

// Visiter performs one visit.
type Visiter interface {
	Visit(ctx context.Context, p visitor.Params) (visitor.Result, error)
}

// Recorder persists batch history. *store.Store implements it.
type Recorder interface {
	CreateBatch(ctx context.Context, b *store.Batch) error
	FinishBatch(ctx context.Context, id, status, errMsg string) error
	RecordVisit(ctx context.Context, v *store.Visit) error
}

// Runner executes batches. A nil recorder disables history.
type Runner struct {
	visitor  Visiter
	recorder Recorder
	size     int
	pause    time.Duration

	// Sleep waits between visits. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner doing size visits with pause between them.
func NewRunner(v Visiter, rec Recorder, size int, pause time.Duration) *Runner {
	if size <= 0 {
		size = DefaultSize
	}
	return &Runner{
		visitor:  v,
		recorder: rec,
		size:     size,
		pause:    pause,
		Sleep:    visitor.Wait,
	}
}

// Size reports how many visits each batch performs.
func (r *Runner) Size() int {
	return r.size
}

// NewID returns a fresh batch identifier.
func NewID() string {
	return uuid.NewString()
}

// Run performs the batch identified by id. Visits run strictly in sequence.
// The first failing visit stops the batch and its error is returned.
func (r *Runner) Run(ctx context.Context, id string, p visitor.Params) error {
	r.recordStart(id, p.URL)

	var err error
	for i := 1; i <= r.size; i++ {
		log.Printf("[batch %s] --- Batch run %d/%d ---", short(id), i, r.size)

		var res visitor.Result
		res, err = r.visitor.Visit(ctx, p)
		r.recordVisit(id, i, res, err)
		if err != nil {
			err = fmt.Errorf("visit %d/%d: %w", i, r.size, err)
			break
		}

		if err = r.Sleep(ctx, r.pause); err != nil {
			break
		}
	}

	r.recordFinish(id, err)
	return err
}

func (r *Runner) recordStart(id, url string) {
	if r.recorder == nil {
		return
	}
	b := &store.Batch{ID: id, URL: url, Size: r.size, StartedAt: time.Now()}
	if err := r.recorder.CreateBatch(context.Background(), b); err != nil {
		log.Printf("[batch %s] Failed to record batch: %v", short(id), err)
	}
}

func (r *Runner) recordVisit(id string, seq int, res visitor.Result, visitErr error) {
	if r.recorder == nil {
		return
	}
	v := &store.Visit{
		BatchID:    id,
		Seq:        seq,
		Device:     res.Device,
		Referral:   res.Referral,
		IP:         res.IP,
		StartedAt:  res.Started,
		FinishedAt: res.Finished,
	}
	if visitErr != nil {
		v.Error = visitErr.Error()
	}
	if v.StartedAt.IsZero() {
		v.StartedAt = time.Now()
	}
	if v.FinishedAt.IsZero() {
		v.FinishedAt = time.Now()
	}
	if err := r.recorder.RecordVisit(context.Background(), v); err != nil {
		log.Printf("[batch %s] Failed to record visit %d: %v", short(id), seq, err)
	}
}

func (r *Runner) recordFinish(id string, runErr error) {
	if r.recorder == nil {
		return
	}
	status, msg := store.StatusDone, ""
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status, msg = store.StatusCanceled, runErr.Error()
	case runErr != nil:
		status, msg = store.StatusFailed, runErr.Error()
	}
	if err := r.recorder.FinishBatch(context.Background(), id, status, msg); err != nil {
		log.Printf("[batch %s] Failed to finish batch: %v", short(id), err)
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
