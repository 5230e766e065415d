// Package shardqueue serialises memory writes per key (the owning user id)
// while letting different keys proceed in parallel.
//
// Jobs are routed to one of a fixed number of shard workers by an FNV hash of
// the key, so all jobs for one key run in submission order on one goroutine.
// Callers that need ordering across their own concurrent Do calls for the
// same key must serialise those calls themselves.
package shardqueue

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	classerr "github.com/51302890/mcp-mem0/internal/errors"
)

type queuedJob struct {
	ctx    context.Context
	job    Job
	result chan<- error
}

// ShardExecutor executes Jobs on shard workers. FIFO order is kept within a
// shard; jobs with keys on different shards may run in parallel.
type ShardExecutor struct {
	cfg    Config
	log    zerolog.Logger
	queues []chan queuedJob

	mu     sync.RWMutex  // held for reading while a Do may enqueue
	done   chan struct{} // closed when Stop begins
	sealed chan struct{} // closed once no Do can enqueue anymore
	closed uint32

	wg sync.WaitGroup
}

// NewShardExecutor starts the shard workers.
func NewShardExecutor(cfg Config, log zerolog.Logger) *ShardExecutor {
	cfg = cfg.withDefaults()
	p := &ShardExecutor{
		cfg:    cfg,
		log:    log.With().Str("component", "shardqueue").Logger(),
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
		sealed: make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Do enqueues job on the shard for key and waits for it to finish, returning
// its final error after retries. If ctx ends while waiting, Do returns
// ctx.Err(); a job that has not started yet is then skipped by the worker.
//
// It returns ErrExecutorClosed after Stop, or a *QueueFullError when the
// shard stays full for EnqueueTimeout.
func (p *ShardExecutor) Do(ctx context.Context, key string, job Job) error {
	res := make(chan error, 1)
	if err := p.enqueue(ctx, key, queuedJob{ctx: ctx, job: job, result: res}); err != nil {
		return err
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new work, lets every worker drain its queue, and waits for
// them to exit. It is idempotent and safe for concurrent use.
func (p *ShardExecutor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	p.log.Info().Int("shards", p.cfg.Shards).Msg("Stopping write queue, draining shards")

	close(p.done)
	p.mu.Lock()
	close(p.sealed)
	p.mu.Unlock()
	p.wg.Wait()

	p.log.Info().Msg("Write queue stopped")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

func (p *ShardExecutor) enqueue(ctx context.Context, key string, qj queuedJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-p.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

func (p *ShardExecutor) runWorker(idx int, ch chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			p.finish(qj, p.execute(label, qj, true))
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			<-p.sealed
			drained := 0
			for {
				select {
				case qj := <-ch:
					p.finish(qj, p.execute(label, qj, false))
					drained++
				default:
					if drained > 0 {
						p.log.Info().Int("shard", idx).Int("jobs", drained).Msg("Drained shard")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// execute runs qj, retrying recoverable errors with exponential backoff when
// retry is set.
func (p *ShardExecutor) execute(label string, qj queuedJob, retry bool) error {
	if qj.job == nil {
		return nil
	}
	if err := qj.ctx.Err(); err != nil {
		return err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.Reset()

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := p.runSafely(qj)
		runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

		if err == nil || !retry || classerr.IsIrrecoverable(err) || attempt >= p.cfg.MaxAttempts {
			return err
		}

		retriesTotal.WithLabelValues(label).Inc()
		p.log.Warn().Err(err).Int("attempt", attempt).Str("shard", label).Msg("Retrying job")
		select {
		case <-time.After(exp.NextBackOff()):
		case <-p.done:
			return err
		case <-qj.ctx.Done():
			return qj.ctx.Err()
		}
	}
}

func (p *ShardExecutor) runSafely(qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("Job panicked")
			err = classerr.NewIrrecoverable(fmt.Errorf("job panic: %v", r))
		}
	}()
	return qj.job.Run(qj.ctx)
}

func (p *ShardExecutor) finish(qj queuedJob, err error) {
	qj.result <- err
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
