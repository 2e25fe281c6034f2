// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package worker keeps the shards of one scheme assigned to the local node running.
//
// The worker follows the mesh states of a membership watcher. For every state it
// computes the shard map of its scheme and starts a loop for each shard owned by
// the local node, stopping the loops of shards that moved away. Every loop
// acquires the shard lease from a lock service before running the shard work,
// so at most one loop in the cluster runs a given shard even while nodes
// disagree on the shard map.
package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
	"github.com/tochemey/shardmesh/telemetry"
)

// Func is the work of one shard. It runs while the shard lease is held and
// must return when ctx is done. Returning nil schedules the next run after
// the repeat delay; returning an error retries after an increasing delay.
// The cause of a done ctx is gerrors.ErrLeaseLost when the lease was revoked.
type Func func(ctx context.Context, index int) error

// Worker runs the shards of a scheme owned by the local node
type Worker struct {
	scheme  shard.Scheme
	watcher membership.Watcher
	locker  lock.Locker
	fn      Func

	logger         log.Logger
	keyPrefix      string
	repeatDelay    time.Duration
	jitter         float64
	minRetryDelay  time.Duration
	maxRetryDelay  time.Duration
	releaseTimeout time.Duration
	telemetry      *telemetry.Telemetry
	instruments    *telemetry.WorkerMetric

	running *atomic.Bool
	runs    *xsync.Map[int, *shardRun]
	retired map[int]*shardRun
	group   sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
}

// shardRun is the loop of one owned shard
type shardRun struct {
	index  int
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Worker for scheme. It fails when the scheme is a sentinel
// or a collaborator is missing.
func New(scheme shard.Scheme, watcher membership.Watcher, locker lock.Locker, fn Func, opts ...Option) (*Worker, error) {
	if err := scheme.RequireValid(); err != nil {
		return nil, err
	}
	if watcher == nil || locker == nil || fn == nil {
		return nil, errors.New("shard worker requires a watcher, a locker and a shard function")
	}

	w := &Worker{
		scheme:         scheme,
		watcher:        watcher,
		locker:         locker,
		fn:             fn,
		logger:         log.DefaultLogger,
		keyPrefix:      lock.DefaultKeyPrefix,
		repeatDelay:    DefaultRepeatDelay,
		jitter:         DefaultJitter,
		minRetryDelay:  DefaultMinRetryDelay,
		maxRetryDelay:  DefaultMaxRetryDelay,
		releaseTimeout: DefaultReleaseTimeout,
		running:        atomic.NewBool(false),
		runs:           xsync.NewMap[int, *shardRun](),
		retired:        make(map[int]*shardRun),
	}

	for _, opt := range opts {
		opt.Apply(w)
	}

	if w.minRetryDelay <= 0 || w.maxRetryDelay < w.minRetryDelay {
		return nil, fmt.Errorf("invalid retry delays: min=%s max=%s", w.minRetryDelay, w.maxRetryDelay)
	}

	if w.telemetry == nil {
		w.telemetry = telemetry.New()
	}
	instruments, err := telemetry.NewWorkerMetric(w.telemetry.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to create shard worker instruments: %w", err)
	}
	w.instruments = instruments

	w.logger = w.logger.With("scheme", scheme.ID(), "node", string(watcher.Self().ID()))
	return w, nil
}

// Scheme returns the scheme of the worker
func (w *Worker) Scheme() shard.Scheme {
	return w.scheme
}

// OwnedShards returns the indices of the shards currently run, in ascending order
func (w *Worker) OwnedShards() []int {
	indices := w.runs.Keys()
	slices.Sort(indices)
	return indices
}

// Run follows the mesh states until ctx is done or the watcher is disposed.
// Every owned shard is stopped and its lease released before Run returns.
// Both endings are clean and return nil.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return gerrors.ErrWorkerStarted
	}
	defer w.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registration, err := w.telemetry.Meter().RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(w.instruments.OwnedShards(), int64(w.runs.Len()),
			metric.WithAttributes(attribute.String("scheme", w.scheme.ID())))
		return nil
	}, w.instruments.OwnedShards())
	if err != nil {
		return fmt.Errorf("failed to register owned shards callback: %w", err)
	}
	defer func() { _ = registration.Unregister() }()

	defer w.stopAll()

	w.logger.Infof("shard worker started for %d shards", w.scheme.ShardCount())
	subscription := w.watcher.Subscribe()
	for {
		state, err := subscription.Next(ctx)
		switch {
		case err == nil:
			w.apply(ctx, state)
		case ctx.Err() != nil:
			w.logger.Info("shard worker stopped")
			return nil
		case errors.Is(err, gerrors.ErrWatcherDisposed):
			w.logger.Info("membership watcher disposed, shard worker stopped")
			return nil
		default:
			w.logger.Errorf("membership watcher error: %v", err)
		}
	}
}

// Start runs the worker in the background until Stop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped != nil || w.running.Load() {
		return gerrors.ErrWorkerStarted
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.err = nil

	stopped := w.stopped
	go func() {
		defer close(stopped)
		if err := w.Run(ctx); err != nil {
			w.logger.Errorf("shard worker failed: %v", err)
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
		}
	}()
	return nil
}

// Stop stops a worker started with Start and waits until every shard is released
// or ctx is done
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stopped
	w.mu.Unlock()

	if stopped == nil {
		return gerrors.ErrWorkerNotStarted
	}

	cancel()
	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancel = nil
	w.stopped = nil
	return w.err
}

// apply starts the loops of newly owned shards and stops the loops of shards moved away
func (w *Worker) apply(ctx context.Context, state *mesh.State) {
	for index, run := range w.retired {
		if isDone(run.done) {
			delete(w.retired, index)
		}
	}

	owned := goset.NewThreadUnsafeSet(state.ShardMap(w.scheme).ShardsOf(w.watcher.Self().ID())...)
	running := goset.NewThreadUnsafeSet[int]()
	for _, run := range w.runs.Values() {
		if isDone(run.done) {
			w.runs.Delete(run.index)
			continue
		}
		running.Add(run.index)
	}

	for _, index := range running.Difference(owned).ToSlice() {
		run, _ := w.runs.Get(index)
		run.cancel()
		w.runs.Delete(index)
		w.retired[index] = run
		w.logger.With("shard", index).Debug("shard moved away, stopping")
	}

	for _, index := range owned.Difference(running).ToSlice() {
		runCtx, cancel := context.WithCancel(ctx)
		run := &shardRun{index: index, cancel: cancel, done: make(chan struct{})}

		// a previous loop of the same shard must release its lease first
		var previous <-chan struct{}
		if prev, ok := w.retired[index]; ok {
			previous = prev.done
			delete(w.retired, index)
		}

		w.runs.Set(index, run)
		w.group.Add(1)
		go w.use(runCtx, run, previous)
		w.logger.With("shard", index).Debug("shard assigned, starting")
	}
}

// stopAll cancels every shard loop and waits for all of them
func (w *Worker) stopAll() {
	for _, run := range w.runs.Values() {
		run.cancel()
	}
	w.group.Wait()
	w.runs.Reset()
	clear(w.retired)
}

// use repeatedly acquires the shard lease and runs the shard until ctx is done
func (w *Worker) use(ctx context.Context, run *shardRun, previous <-chan struct{}) {
	defer w.group.Done()
	defer close(run.done)

	if previous != nil {
		select {
		case <-previous:
		case <-ctx.Done():
			return
		}
	}

	logger := w.logger.With("shard", run.index)
	failures := 0
	for ctx.Err() == nil {
		err := w.once(ctx, run.index, logger)

		var delay time.Duration
		switch {
		case ctx.Err() != nil:
			return
		case err == nil:
			failures = 0
			delay = jitterDuration(w.repeatDelay, w.jitter)
		case errors.Is(err, gerrors.ErrLeaseLost):
			failures = 0
			logger.Warn("shard lease lost, acquiring again")
			w.count(ctx, w.instruments.LeaseLosses(), run.index)
			continue
		default:
			failures++
			delay = backoffDelay(w.minRetryDelay, w.maxRetryDelay, failures)
			logger.With("failures", failures, "delay", delay, "error", err).Error("shard run failed")
			w.count(ctx, w.instruments.Failures(), run.index)
		}

		if !sleep(ctx, delay) {
			return
		}
	}
}

// once holds the shard lease for a single run of the shard work
func (w *Worker) once(ctx context.Context, index int, logger log.Logger) error {
	key := lock.Key(w.keyPrefix, w.scheme, index)
	lease, err := w.locker.Lock(ctx, key, string(w.watcher.Self().ID()))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	w.count(ctx, w.instruments.Acquisitions(), index)
	logger.Info("shard lease acquired")

	runCtx, cancel := context.WithCancelCause(ctx)
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-lease.Lost():
			cancel(gerrors.ErrLeaseLost)
		case <-runCtx.Done():
		}
	}()

	err = w.execute(runCtx, index)
	cancel(nil)
	<-watched
	lost := errors.Is(context.Cause(runCtx), gerrors.ErrLeaseLost)

	releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), w.releaseTimeout)
	defer cancelRelease()
	if releaseErr := lease.Release(releaseCtx); releaseErr != nil {
		logger.Warnf("failed to release shard lease: %v", releaseErr)
	}

	switch {
	case err == nil:
		return nil
	case lost:
		return fmt.Errorf("shard %d interrupted: %w", index, gerrors.ErrLeaseLost)
	default:
		return err
	}
}

// execute runs the shard work inside a span and records its duration
func (w *Worker) execute(ctx context.Context, index int) error {
	ctx, span := w.telemetry.Tracer().Start(ctx, "shardworker.run",
		trace.WithAttributes(
			attribute.String("scheme", w.scheme.ID()),
			attribute.Int("shard", index),
		))
	defer span.End()

	start := time.Now()
	err := w.fn(ctx, index)
	w.instruments.RunDuration().Record(context.WithoutCancel(ctx), float64(time.Since(start).Milliseconds()), w.shardAttributes(index))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// count adds one to counter for the shard index
func (w *Worker) count(ctx context.Context, counter metric.Int64Counter, index int) {
	counter.Add(context.WithoutCancel(ctx), 1, w.shardAttributes(index))
}

func (w *Worker) shardAttributes(index int) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("scheme", w.scheme.ID()), attribute.Int("shard", index))
}

func isDone(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
