// Package worker runs the background persistence queue. Saving a
// verification record is best effort: the caller already has its result,
// so a storage failure is logged and never surfaced to the user.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/veritrust/veritrust/internal/database"
	"github.com/veritrust/veritrust/internal/models"
)

type job struct {
	userID string
	result *models.VerificationResult
}

// Persister drains a bounded queue of verification records into the store
// with a small worker pool.
type Persister struct {
	store   database.Store
	queue   chan job
	group   *errgroup.Group
	cancel  context.CancelFunc
	retries int
}

// NewPersister starts the worker pool. queueSize bounds memory under a
// storage outage; a full queue drops the record after logging it.
func NewPersister(store database.Store, workers, queueSize int) *Persister {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	p := &Persister{
		store:   store,
		queue:   make(chan job, queueSize),
		group:   g,
		cancel:  cancel,
		retries: 2,
	}

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			p.run(ctx)
			return nil
		})
	}
	return p
}

// Enqueue hands a record to the pool without blocking the caller.
func (p *Persister) Enqueue(userID string, result *models.VerificationResult) {
	select {
	case p.queue <- job{userID: userID, result: result}:
	default:
		log.Error().
			Str("id", result.ID).
			Str("user_id", userID).
			Msg("Persistence queue full, dropping verification record")
	}
}

// Close stops accepting work, drains what is queued and waits for the
// workers to finish.
func (p *Persister) Close() {
	close(p.queue)
	p.group.Wait()
	p.cancel()
}

func (p *Persister) run(ctx context.Context) {
	for j := range p.queue {
		p.save(ctx, j)
	}
}

func (p *Persister) save(ctx context.Context, j job) {
	var err error
	for attempt := 0; attempt <= p.retries; attempt++ {
		saveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = p.store.SaveVerification(saveCtx, j.userID, j.result)
		cancel()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(time.Duration(attempt+1) * 250 * time.Millisecond):
		case <-ctx.Done():
		}
	}

	log.Error().Err(err).
		Str("id", j.result.ID).
		Str("user_id", j.userID).
		Msg("Failed to persist verification record")
}
