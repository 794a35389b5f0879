// Package dispatch keeps chat intake ordered per channel while the work it
// hands off (renders, sends, backend calls) runs concurrently.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"djBot/internal/domain"
	"djBot/internal/infrastructure/telemetry"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
	DefaultGrace     = 5 * time.Second
)

var (
	ErrClosed       = errors.New("dispatch: dispatcher closed")
	ErrQueueFull    = errors.New("dispatch: channel queue full")
	ErrDrainTimeout = errors.New("dispatch: drain grace period exceeded")
)

// Handler runs the ordered part of a dispatch (routing and gate).
type Handler func(ctx context.Context, msg domain.Message) error

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = int64(n)
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

type item struct {
	ctx context.Context
	msg domain.Message
}

// Dispatcher feeds each channel's lines, in arrival order, to one lane
// goroutine, and runs handed-off jobs on a bounded worker set.
type Dispatcher struct {
	handler   Handler
	workers   int64
	queueSize int
	sem       *semaphore.Weighted
	logger    *zap.Logger

	// hardStop se cancela cuando vence la gracia del drain.
	hardStop context.Context
	abort    context.CancelFunc

	mu     sync.Mutex
	closed bool
	lanes  map[string]chan item

	laneWG sync.WaitGroup
	jobWG  sync.WaitGroup
}

func New(handler Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handler:   handler,
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		logger:    zap.NewNop(),
		lanes:     make(map[string]chan item),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sem = semaphore.NewWeighted(d.workers)
	d.hardStop, d.abort = context.WithCancel(context.Background())
	return d
}

// SetHandler replaces the ordered handler; used when the router is built after
// the dispatcher it spawns into.
func (d *Dispatcher) SetHandler(h Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func laneKey(msg domain.Message) string {
	return string(msg.Platform) + "/" + msg.ChannelID
}

// Submit queues msg behind the earlier lines of the same channel. It never
// blocks: a full lane drops the line.
func (d *Dispatcher) Submit(ctx context.Context, msg domain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	key := laneKey(msg)
	lane, ok := d.lanes[key]
	if !ok {
		lane = make(chan item, d.queueSize)
		d.lanes[key] = lane
		d.laneWG.Add(1)
		go d.runLane(key, lane)
	}
	select {
	case lane <- item{ctx: context.WithoutCancel(ctx), msg: msg}:
		return nil
	default:
		telemetry.DroppedTotal.WithLabelValues("queue_full").Inc()
		d.logger.Warn("dispatch: lane full, line dropped", zap.String("lane", key))
		return fmt.Errorf("%w: %s", ErrQueueFull, key)
	}
}

func (d *Dispatcher) runLane(key string, lane <-chan item) {
	defer d.laneWG.Done()
	for it := range lane {
		d.mu.Lock()
		h := d.handler
		d.mu.Unlock()
		if h == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("dispatch: handler panic",
						zap.String("lane", key),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
				}
			}()
			if err := h(it.ctx, it.msg); err != nil {
				d.logger.Warn("dispatch: handler error", zap.String("lane", key), zap.Error(err))
			}
		}()
	}
}

// Go runs fn on the worker set. fn gets a context that survives the caller's
// cancellation and is only cancelled when a drain runs out of time.
func (d *Dispatcher) Go(ctx context.Context, kind string, fn func(ctx context.Context)) {
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(d.hardStop, cancel)
	jobCtx, id := telemetry.WithDispatchID(jobCtx)

	d.jobWG.Add(1)
	go func() {
		defer d.jobWG.Done()
		defer cancel()
		defer stop()

		if err := d.sem.Acquire(jobCtx, 1); err != nil {
			d.logger.Warn("dispatch: job abandoned before start", zap.String("kind", kind), zap.String("dispatch_id", id))
			return
		}
		defer d.sem.Release(1)

		telemetry.InflightDispatches.Inc()
		defer telemetry.InflightDispatches.Dec()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("dispatch: job panic",
					zap.String("kind", kind),
					zap.String("dispatch_id", id),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
		}()
		fn(jobCtx)
	}()
}

// Drain stops intake, lets the lanes empty and waits up to grace for the
// running jobs. Jobs still running after grace get their context cancelled.
func (d *Dispatcher) Drain(grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.laneWG.Wait()
		d.jobWG.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		d.abort()
		return nil
	case <-timer.C:
		d.logger.Warn("dispatch: drain grace exceeded, cancelling jobs", zap.Duration("grace", grace))
		d.abort()
		<-done
		return ErrDrainTimeout
	}
}
