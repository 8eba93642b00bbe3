// Package pool runs tasks on a bounded set of worker goroutines.
//
// Submissions are queued FIFO and handed to idle workers by a single
// scheduler goroutine that owns all pool state. A panic inside a task is a
// worker fault: the task settles with a *FaultError and the worker exits.
// Replacement workers are spawned lazily on the next dispatch.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/metrics"
)

// ErrClosed settles tasks submitted to, or still queued in, a closed pool.
var ErrClosed = errors.New("pool: closed")

// FaultError settles a task whose worker panicked.
type FaultError struct {
	Value any
	Stack []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("pool: worker fault: %v", e.Value)
}

// Handler executes one task. A returned error is an explicit failure and
// leaves the worker healthy.
type Handler[T, R any] func(T) (R, error)

// Result is the single response for a submitted task.
type Result[R any] struct {
	Value R
	Err   error
}

// Stats is a snapshot of pool state.
type Stats struct {
	Size    int
	Live    int
	Idle    int
	Busy    int
	Queued  int
	Spawned int
	Faults  int
}

// DefaultSize is the CPU count clamped to [2, 4].
func DefaultSize() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	if n > 4 {
		return 4
	}
	return n
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	size int
	name string
	log  *zerolog.Logger
}

// WithSize sets the worker budget. Values below 1 are ignored.
func WithSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithName labels the pool's metrics and logs.
func WithName(name string) Option { return func(o *options) { o.name = name } }

func WithLogger(l *zerolog.Logger) Option { return func(o *options) { o.log = l } }

type job[T, R any] struct {
	payload T
	result  chan Result[R]
}

type worker[T, R any] struct {
	id    int
	inbox chan *job[T, R]
}

type report[T, R any] struct {
	w       *worker[T, R]
	faulted bool
}

// Pool is a fixed-budget worker pool. All methods are safe for concurrent use.
// A worker lost to a fault is not restarted on its own; the next dispatch
// spawns a replacement, immediately if tasks are already queued, so queued
// work never stalls behind a fault.
type Pool[T, R any] struct {
	handler Handler[T, R]
	size    int
	name    string
	log     *zerolog.Logger

	submit   chan *job[T, R]
	settled  chan report[T, R]
	statsReq chan chan Stats
	closing  chan struct{}
	loopDone chan struct{}

	closeOnce sync.Once
	workers   sync.WaitGroup

	// Owned by loop.
	queue   deque.Deque[*job[T, R]]
	idle    []*worker[T, R]
	busy    map[*worker[T, R]]struct{}
	live    int
	spawned int
	faults  int
	closed  bool
	final   Stats
}

// New starts a pool running handler.
func New[T, R any](handler Handler[T, R], opts ...Option) *Pool[T, R] {
	o := options{size: DefaultSize(), name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		nop := zerolog.Nop()
		o.log = &nop
	}

	p := &Pool[T, R]{
		handler:  handler,
		size:     o.size,
		name:     o.name,
		log:      o.log,
		submit:   make(chan *job[T, R]),
		settled:  make(chan report[T, R]),
		statsReq: make(chan chan Stats),
		closing:  make(chan struct{}),
		loopDone: make(chan struct{}),
		busy:     make(map[*worker[T, R]]struct{}),
	}
	go p.loop()
	return p
}

// Size returns the worker budget.
func (p *Pool[T, R]) Size() int { return p.size }

// Submit enqueues payload and returns a channel that receives exactly one
// Result. It never waits for execution.
func (p *Pool[T, R]) Submit(payload T) <-chan Result[R] {
	j := &job[T, R]{payload: payload, result: make(chan Result[R], 1)}
	select {
	case p.submit <- j:
	case <-p.closing:
		p.reject(j)
	}
	return j.result
}

// Do submits payload and waits for its result or ctx. Cancelling ctx stops
// the wait only; the task still runs.
func (p *Pool[T, R]) Do(ctx context.Context, payload T) (R, error) {
	select {
	case res := <-p.Submit(payload):
		return res.Value, res.Err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Stats returns a snapshot of the pool.
func (p *Pool[T, R]) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case p.statsReq <- reply:
		return <-reply
	case <-p.loopDone:
		return p.final
	}
}

// Close stops accepting tasks, rejects queued ones with ErrClosed and waits
// for running tasks to finish or ctx to end.
func (p *Pool[T, R]) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.closing) })

	done := make(chan struct{})
	go func() {
		<-p.loopDone
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[T, R]) loop() {
	defer close(p.loopDone)

	closing := p.closing
	for {
		select {
		case j := <-p.submit:
			if p.closed {
				p.reject(j)
				continue
			}
			p.queue.PushBack(j)
			p.dispatch()
		case r := <-p.settled:
			delete(p.busy, r.w)
			if r.faulted {
				p.faults++
				p.live--
				p.log.Warn().Str("pool", p.name).Int("worker", r.w.id).Msg("worker faulted")
			} else if p.closed {
				close(r.w.inbox)
				p.live--
			} else {
				p.idle = append(p.idle, r.w)
			}
			p.dispatch()
		case reply := <-p.statsReq:
			reply <- p.snapshot()
		case <-closing:
			closing = nil
			p.closed = true
			for p.queue.Len() > 0 {
				p.reject(p.queue.PopFront())
			}
			for _, w := range p.idle {
				close(w.inbox)
				p.live--
			}
			p.idle = nil
			p.publishGauges()
		}

		if p.closed && len(p.busy) == 0 {
			p.final = p.snapshot()
			return
		}
	}
}

// dispatch hands queued tasks to workers in submission order while a worker
// is idle or the budget allows spawning one.
func (p *Pool[T, R]) dispatch() {
	for p.queue.Len() > 0 {
		var w *worker[T, R]
		if n := len(p.idle); n > 0 {
			w = p.idle[n-1]
			p.idle = p.idle[:n-1]
		} else if p.live < p.size {
			w = p.spawn()
		} else {
			break
		}
		p.busy[w] = struct{}{}
		w.inbox <- p.queue.PopFront()
	}
	p.publishGauges()
}

func (p *Pool[T, R]) spawn() *worker[T, R] {
	p.spawned++
	p.live++
	w := &worker[T, R]{id: p.spawned, inbox: make(chan *job[T, R], 1)}
	metrics.PoolWorkersSpawned.WithLabelValues(p.name).Inc()
	p.workers.Add(1)
	go p.run(w)
	return w
}

func (p *Pool[T, R]) run(w *worker[T, R]) {
	defer p.workers.Done()
	for j := range w.inbox {
		res, faulted := p.execute(j.payload)
		j.result <- res
		p.settled <- report[T, R]{w: w, faulted: faulted}
		if faulted {
			return
		}
	}
}

func (p *Pool[T, R]) execute(payload T) (res Result[R], faulted bool) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			res = Result[R]{Err: &FaultError{Value: v, Stack: debug.Stack()}}
			faulted = true
		}
		metrics.PoolTaskDurationSeconds.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
		metrics.PoolTasksSettled.WithLabelValues(p.name, outcome(res.Err, faulted)).Inc()
	}()

	v, err := p.handler(payload)
	return Result[R]{Value: v, Err: err}, false
}

func (p *Pool[T, R]) reject(j *job[T, R]) {
	j.result <- Result[R]{Err: ErrClosed}
	metrics.PoolTasksSettled.WithLabelValues(p.name, "closed").Inc()
}

func (p *Pool[T, R]) snapshot() Stats {
	return Stats{
		Size:    p.size,
		Live:    p.live,
		Idle:    len(p.idle),
		Busy:    len(p.busy),
		Queued:  p.queue.Len(),
		Spawned: p.spawned,
		Faults:  p.faults,
	}
}

func (p *Pool[T, R]) publishGauges() {
	metrics.PoolQueueDepth.WithLabelValues(p.name).Set(float64(p.queue.Len()))
	metrics.PoolTasksInFlight.WithLabelValues(p.name).Set(float64(len(p.busy)))
}

func outcome(err error, faulted bool) string {
	switch {
	case faulted:
		return "fault"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}
