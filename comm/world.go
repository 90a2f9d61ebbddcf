package comm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// World is an in-process group of ranks. Each rank is driven by its own
// goroutine; collectives rendezvous on a shared condition variable and
// point-to-point messages travel through per {src, dest, tag} mailboxes.
// A World is single-use: it runs once, and an aborted world stays aborted.
type World struct {
	size    int
	logger  *zap.Logger
	started atomic.Bool

	mu      sync.Mutex
	cond    *sync.Cond
	gen     int
	arrived int
	pending [][]int
	result  [][]int
	aborted bool

	boxes     map[mailKey]chan []float64
	done      chan struct{}
	abortOnce sync.Once
}

type mailKey struct {
	src, dest, tag int
}

// Option configures a World
type Option func(*World)

// WithLogger sets the logger used for world lifecycle events
func WithLogger(l *zap.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorld creates a world of size ranks
func NewWorld(size int, opts ...Option) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid world size %d", size)
	}
	return newWorld(size, opts...), nil
}

func newWorld(size int, opts ...Option) *World {
	w := &World{
		size:    size,
		logger:  zap.NewNop(),
		pending: make([][]int, size),
		boxes:   make(map[mailKey]chan []float64),
		done:    make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Serial returns the communicator of a fresh single-rank world
func Serial() Comm {
	return newWorld(1).Comm(0)
}

func (w *World) Size() int { return w.size }

// Comm returns the communicator handle of rank
func (w *World) Comm(rank int) Comm {
	return &rankComm{world: w, rank: rank}
}

// Run calls fn once per rank, each on its own goroutine, and waits for all
// of them. The first failing rank aborts the world so that ranks blocked in
// collectives or receives return ErrAborted instead of deadlocking. A second
// call returns ErrWorldUsed without running fn.
func (w *World) Run(ctx context.Context,
	fn func(ctx context.Context, c Comm) error) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWorldUsed
	}
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < w.size; r++ {
		c := w.Comm(r)
		g.Go(func() error {
			if err := fn(gctx, c); err != nil {
				w.Abort()
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Abort tears the world down, releasing every blocked rank
func (w *World) Abort() {
	w.abortOnce.Do(func() {
		w.logger.Warn("aborting world", zap.Int("size", w.size))
		w.mu.Lock()
		w.aborted = true
		w.cond.Broadcast()
		w.mu.Unlock()
		close(w.done)
	})
}

func (w *World) allGather(rank int, v []int) ([][]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.aborted {
		return nil, ErrAborted
	}
	if w.pending[rank] != nil {
		return nil, fmt.Errorf("rank %d entered a collective twice", rank)
	}
	contrib := make([]int, len(v))
	copy(contrib, v)
	w.pending[rank] = contrib
	w.arrived++

	gen := w.gen
	if w.arrived == w.size {
		w.result = w.pending
		w.pending = make([][]int, w.size)
		w.arrived = 0
		w.gen++
		w.cond.Broadcast()
	} else {
		for gen == w.gen && !w.aborted {
			w.cond.Wait()
		}
		if gen == w.gen {
			return nil, ErrAborted
		}
	}

	out := make([][]int, w.size)
	for r, c := range w.result {
		out[r] = append([]int(nil), c...)
	}
	return out, nil
}

func (w *World) mailbox(key mailKey) chan []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	box, ok := w.boxes[key]
	if !ok {
		box = make(chan []float64, 1)
		w.boxes[key] = box
	}
	return box
}

func (w *World) checkRank(rank int) error {
	if rank < 0 || rank >= w.size {
		return fmt.Errorf("rank %d out of range [0,%d)", rank, w.size)
	}
	return nil
}

type rankComm struct {
	world *World
	rank  int
}

func (c *rankComm) Rank() int { return c.rank }
func (c *rankComm) Size() int { return c.world.size }

func (c *rankComm) Barrier() error {
	_, err := c.world.allGather(c.rank, nil)
	return err
}

func (c *rankComm) AllGatherInts(v []int) ([][]int, error) {
	return c.world.allGather(c.rank, v)
}

func (c *rankComm) Send(ctx context.Context, dest, tag int, data []float64) error {
	if err := c.world.checkRank(dest); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	msg := make([]float64, len(data))
	copy(msg, data)
	box := c.world.mailbox(mailKey{src: c.rank, dest: dest, tag: tag})
	select {
	case box <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.world.done:
		return ErrAborted
	}
}

func (c *rankComm) Recv(ctx context.Context, src, tag int, data []float64) error {
	if err := c.world.checkRank(src); err != nil {
		return fmt.Errorf("recv: %w", err)
	}
	box := c.world.mailbox(mailKey{src: src, dest: c.rank, tag: tag})
	select {
	case msg := <-box:
		if len(msg) != len(data) {
			return fmt.Errorf("recv from %d tag %d: message length %d != buffer length %d",
				src, tag, len(msg), len(data))
		}
		copy(data, msg)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.world.done:
		return ErrAborted
	}
}
