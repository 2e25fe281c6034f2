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

// Package host assembles a mesh node from its configuration.
//
// A Host owns the scheme catalog, the resolver registries, the membership
// watcher, the lock service and one shard worker per handled scheme. It
// starts them in dependency order and tears them down in reverse order.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tochemey/shardmesh/config"
	"github.com/tochemey/shardmesh/dispatch"
	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/resolver"
	"github.com/tochemey/shardmesh/shard"
	"github.com/tochemey/shardmesh/telemetry"
	"github.com/tochemey/shardmesh/worker"
)

// Host is a configured mesh node
type Host struct {
	config  *config.Config
	catalog *shard.Catalog
	indexes *resolver.IndexRegistry
	refs    *resolver.RefRegistry

	logger        log.Logger
	logFile       io.Closer
	telemetry     *telemetry.Telemetry
	watcher       membership.Service
	locker        lock.Locker
	ownsLocker    bool
	dialer        dispatch.Dialer
	routerOptions []dispatch.RouterOption
	router        *dispatch.Router
	pool          *dispatch.Pool
	funcs         map[string]worker.Func

	mu      sync.Mutex
	started bool
	stopped bool
	workers map[string]*worker.Worker
	cancel  context.CancelFunc
	pruned  chan struct{}
}

// New creates a Host from cfg. The configuration is sanitized and validated;
// nothing is connected until Start.
func New(cfg *config.Config, opts ...Option) (*Host, error) {
	if cfg == nil {
		return nil, errors.New("host config is required")
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	h := &Host{
		config:  cfg,
		catalog: catalog,
		indexes: resolver.NewIndexRegistry(),
		refs:    resolver.NewRefRegistry(),
		funcs:   make(map[string]worker.Func),
		workers: make(map[string]*worker.Worker),
	}

	for _, opt := range opts {
		opt.Apply(h)
	}

	for id := range h.funcs {
		if _, err := catalog.Lookup(id); err != nil {
			return nil, err
		}
	}

	if h.logger == nil {
		if err := h.openLogger(); err != nil {
			return nil, err
		}
	}

	if h.telemetry == nil {
		h.telemetry = newTelemetry(cfg.Telemetry)
	}

	if h.watcher == nil {
		self := mesh.NewNode(mesh.NodeID(cfg.Node.ID), cfg.Node.Endpoint, mesh.WithMeta(cfg.Node.Meta))
		if h.watcher, err = newWatcher(cfg.Membership, self, h.logger); err != nil {
			_ = h.logger.Flush()
			h.closeLogFile()
			return nil, err
		}
	}

	routerOptions := append([]dispatch.RouterOption{dispatch.WithRouterLogger(h.logger)}, h.routerOptions...)
	h.router = dispatch.NewRouter(h.refs, routerOptions...)
	if h.dialer != nil {
		h.pool = dispatch.NewPool(h.dialer, dispatch.WithPoolLogger(h.logger))
	}
	return h, nil
}

// Handle registers fn as the shard function of the scheme with the given id.
// It must be called before Start.
func (h *Host) Handle(scheme string, fn worker.Func) error {
	if fn == nil {
		return errors.New("shard function is required")
	}
	if _, err := h.catalog.Lookup(scheme); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return gerrors.ErrHostStarted
	}
	h.funcs[scheme] = fn
	return nil
}

// Start connects the lock service, joins the membership and starts one worker per handled scheme.
// On failure everything already started is torn down.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.started:
		return gerrors.ErrHostStarted
	case h.stopped:
		return gerrors.ErrHostStopped
	}

	if h.locker == nil {
		locker, err := newLocker(ctx, h.config.Lock, h.logger)
		if err != nil {
			return fmt.Errorf("failed to create %s locker: %w", h.config.Lock.Backend, err)
		}
		h.locker = locker
		h.ownsLocker = true
	}

	if err := h.watcher.Start(ctx); err != nil {
		return errorschain.New(errorschain.ReturnAll()).
			AddError(fmt.Errorf("failed to start %s membership: %w", h.config.Membership.Backend, err)).
			AddErrorFn(func() error { return h.closeLocker(ctx) }).
			Error()
	}

	if err := h.startWorkers(ctx); err != nil {
		return errorschain.New(errorschain.ReturnAll()).
			AddError(err).
			AddErrorFn(func() error { return h.stopWorkers(ctx) }).
			AddErrorFn(func() error { return h.watcher.Stop(ctx) }).
			AddErrorFn(func() error { return h.closeLocker(ctx) }).
			Error()
	}

	if h.pool != nil {
		pruneCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		h.cancel = cancel
		h.pruned = make(chan struct{})
		go h.prune(pruneCtx, h.watcher.Subscribe())
	}

	h.started = true
	h.logger.Infof("node %s started with schemes %v", h.Self().ID(), h.handledSchemes())
	return nil
}

// Stop stops the workers, which releases their leases, then leaves the membership
// and closes the lock service. A stopped host cannot be started again.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return gerrors.ErrHostNotStarted
	}
	h.started = false
	h.stopped = true

	err := errorschain.New(errorschain.ReturnAll()).
		AddErrorFn(func() error { return h.stopWorkers(ctx) }).
		AddErrorFn(func() error {
			if h.pool == nil {
				return nil
			}
			h.cancel()
			<-h.pruned
			return h.pool.Close()
		}).
		AddErrorFn(func() error { return h.watcher.Stop(ctx) }).
		AddErrorFn(func() error { return h.closeLocker(ctx) }).
		Error()

	h.logger.Infof("node %s stopped", h.Self().ID())
	_ = h.logger.Flush()
	h.closeLogFile()
	return err
}

// Started reports whether the host is running
func (h *Host) Started() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Config returns the sanitized configuration
func (h *Host) Config() *config.Config {
	return h.config
}

// Catalog returns the scheme catalog
func (h *Host) Catalog() *shard.Catalog {
	return h.catalog
}

// Indexes returns the registry resolving values to shard keys
func (h *Host) Indexes() *resolver.IndexRegistry {
	return h.indexes
}

// Refs returns the registry resolving values to mesh refs. The router uses it.
func (h *Host) Refs() *resolver.RefRegistry {
	return h.refs
}

// Self returns the node of this host
func (h *Host) Self() *mesh.Node {
	return h.watcher.Self()
}

// State returns the latest membership state
func (h *Host) State() *mesh.State {
	return h.watcher.State()
}

// Watcher returns the membership watcher
func (h *Host) Watcher() membership.Watcher {
	return h.watcher
}

// Router returns the call router
func (h *Host) Router() *dispatch.Router {
	return h.router
}

// Logger returns the host logger
func (h *Host) Logger() log.Logger {
	return h.logger
}

// Worker returns the worker of the scheme with the given id
func (h *Host) Worker(scheme string) (*worker.Worker, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.workers[scheme]
	return w, ok
}

// Target resolves value under the scheme with the given id against the latest state
func (h *Host) Target(value any, scheme string) (mesh.Target, error) {
	s, err := h.catalog.Lookup(scheme)
	if err != nil {
		return mesh.Target{}, err
	}
	return h.refs.Target(value, s, h.State(), h.Self())
}

// Route resolves the target of a call of method under the scheme with the given id
func (h *Host) Route(method *dispatch.Method, args []any, scheme string) (mesh.Target, error) {
	s, err := h.catalog.Lookup(scheme)
	if err != nil {
		return mesh.Target{}, err
	}
	return h.router.Target(method, args, s, h.State(), h.Self())
}

// Channel routes a call and returns the pooled channel of its target
func (h *Host) Channel(ctx context.Context, method *dispatch.Method, args []any, scheme string) (dispatch.Channel, error) {
	if h.pool == nil {
		return nil, gerrors.ErrNoDialer
	}
	if !h.Started() {
		return nil, gerrors.ErrHostNotStarted
	}
	target, err := h.Route(method, args, scheme)
	if err != nil {
		return nil, err
	}
	return h.pool.Channel(ctx, target)
}

func (h *Host) startWorkers(ctx context.Context) error {
	options := append(h.config.Worker.Options(),
		worker.WithLogger(h.logger),
		worker.WithTelemetry(h.telemetry))

	for _, id := range h.handledSchemes() {
		w, err := worker.New(h.catalog.MustGet(id), h.watcher, h.locker, h.funcs[id], options...)
		if err != nil {
			return err
		}
		h.workers[id] = w
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, w := range h.workers {
		eg.Go(func() error {
			return w.Start(ctx)
		})
	}
	return eg.Wait()
}

// stopWorkers stops every worker under ctx. A failing worker does not cut short the others.
func (h *Host) stopWorkers(ctx context.Context) error {
	var eg errgroup.Group
	for id, w := range h.workers {
		eg.Go(func() error {
			if err := w.Stop(ctx); err != nil && !errors.Is(err, gerrors.ErrWorkerNotStarted) {
				return fmt.Errorf("failed to stop %s worker: %w", id, err)
			}
			return nil
		})
	}
	err := eg.Wait()
	clear(h.workers)
	return err
}

func (h *Host) closeLocker(ctx context.Context) error {
	if !h.ownsLocker {
		return nil
	}
	return h.locker.Close(ctx)
}

// prune closes the pooled channels whose target moved, on every membership change
func (h *Host) prune(ctx context.Context, subscription *membership.Subscription) {
	defer close(h.pruned)
	for {
		state, err := subscription.Next(ctx)
		switch {
		case ctx.Err() != nil || errors.Is(err, gerrors.ErrWatcherDisposed):
			return
		case err != nil:
			continue
		}

		if evicted := h.pool.Prune(state, h.Self()); len(evicted) > 0 {
			h.logger.Debugf("closed %d channels after membership change: %v", len(evicted), evicted)
		}
	}
}

func (h *Host) handledSchemes() []string {
	ids := make([]string, 0, len(h.funcs))
	for id := range h.funcs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Host) openLogger() error {
	level := log.ParseLevel(h.config.Log.Level)
	if h.config.Log.File == "" {
		h.logger = log.NewZap(level, os.Stdout)
		return nil
	}

	file, err := os.OpenFile(h.config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	h.logFile = file
	h.logger = log.NewZap(level, file)
	return nil
}

func (h *Host) closeLogFile() {
	if h.logFile != nil {
		_ = h.logFile.Close()
		h.logFile = nil
	}
}

func newTelemetry(cfg config.Telemetry) *telemetry.Telemetry {
	if cfg.Disabled {
		return telemetry.New(telemetry.Disabled())
	}
	return telemetry.New()
}
