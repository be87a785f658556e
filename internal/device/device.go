// Package device emulates an accelerator with asynchronous per-stream kernel
// queues. Kernels launched on a stream run in FIFO order on a dedicated
// goroutine, so a launch returns immediately and the host only observes the
// results after Sync.
package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/celeritas-project/celer-engine/internal/assert"
	"github.com/celeritas-project/celer-engine/internal/domain"
)

const queueDepth = 64

// Device owns one stream per concurrently running state.
type Device struct {
	streams []*Stream
}

// New creates a device with numStreams streams, each running kernels over
// up to threads goroutines. A non-positive threads value uses GOMAXPROCS.
func New(numStreams, threads int) *Device {
	assert.Expect(numStreams > 0, "numStreams > 0")
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	d := &Device{streams: make([]*Stream, numStreams)}
	for i := range d.streams {
		d.streams[i] = newStream(domain.StreamID(i), threads)
	}
	return d
}

// NumStreams is the number of streams created.
func (d *Device) NumStreams() int { return len(d.streams) }

// Stream returns the stream for id.
func (d *Device) Stream(id domain.StreamID) *Stream {
	assert.Expect(id.Valid() && int(id) < len(d.streams), "stream id < num streams")
	return d.streams[id]
}

// Close drains and stops every stream.
func (d *Device) Close() {
	for _, s := range d.streams {
		s.Close()
	}
}

type job struct {
	label string
	fn    func() error
}

// Stream is an in-order asynchronous kernel queue.
type Stream struct {
	id      domain.StreamID
	threads int

	queue     chan job
	done      chan struct{}
	pending   sync.WaitGroup
	closeOnce sync.Once

	mu  sync.Mutex
	err error

	syncs    atomic.Int64
	launches atomic.Int64
}

func newStream(id domain.StreamID, threads int) *Stream {
	s := &Stream{
		id:      id,
		threads: threads,
		queue:   make(chan job, queueDepth),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	for j := range s.queue {
		if err := j.fn(); err != nil {
			s.mu.Lock()
			if s.err == nil {
				s.err = fmt.Errorf("kernel %s: %w", j.label, err)
			}
			s.mu.Unlock()
		}
		s.pending.Done()
	}
}

// ID is the stream identifier.
func (s *Stream) ID() domain.StreamID { return s.id }

// Threads is the parallel width of kernels on this stream.
func (s *Stream) Threads() int { return s.threads }

// Launch enqueues fn and returns without waiting for it.
func (s *Stream) Launch(label string, fn func() error) {
	s.launches.Add(1)
	s.pending.Add(1)
	s.queue <- job{label: label, fn: fn}
}

// LaunchKernel enqueues a parallel-for over [0, n).
func (s *Stream) LaunchKernel(label string, n int, body func(tid int)) {
	if n == 0 {
		return
	}
	s.Launch(label, func() error {
		return ParallelFor(n, s.threads, body)
	})
}

// Sync blocks until every launched kernel has finished and returns the
// first kernel failure since the previous Sync.
func (s *Stream) Sync() error {
	s.syncs.Add(1)
	s.pending.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// NumSyncs is the number of Sync calls made on this stream.
func (s *Stream) NumSyncs() int64 { return s.syncs.Load() }

// NumLaunches is the number of kernels enqueued on this stream.
func (s *Stream) NumLaunches() int64 { return s.launches.Load() }

// Close waits for queued kernels and stops the stream goroutine.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.queue) })
	<-s.done
}

// ParallelFor calls body for every index in [0, n), splitting the range into
// contiguous chunks over at most threads goroutines. A panic inside body is
// returned as an error.
func ParallelFor(n, threads int, body func(i int)) error {
	if n <= 0 {
		return nil
	}
	if threads <= 1 || n == 1 {
		return runChunk(0, n, body)
	}
	if threads > n {
		threads = n
	}
	chunk := (n + threads - 1) / threads

	var g errgroup.Group
	g.SetLimit(threads)
	for start := 0; start < n; start += chunk {
		begin, end := start, min(start+chunk, n)
		g.Go(func() error { return runChunk(begin, end, body) })
	}
	return g.Wait()
}

func runChunk(begin, end int, body func(i int)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("kernel panic: %v", r)
		}
	}()
	for i := begin; i < end; i++ {
		body(i)
	}
	return nil
}
