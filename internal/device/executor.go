package device

import "fmt"

// Executor dispatches kernels for one state. Without a stream everything
// runs inline on the calling goroutine; with a stream, work is queued and
// failures are held until the next Sync.
type Executor struct {
	stream   *Stream
	deferred error
}

// NewExecutor returns an executor for a stream, or a host executor when
// stream is nil.
func NewExecutor(stream *Stream) Executor {
	return Executor{stream: stream}
}

// OnDevice reports whether work is queued on a stream.
func (e *Executor) OnDevice() bool { return e.stream != nil }

// Stream is the underlying stream, or nil on the host.
func (e *Executor) Stream() *Stream { return e.stream }

// Launch runs body over n threads. On the host it runs immediately; on the
// device it is queued and Launch returns before it completes. Either way a
// panicking kernel is reported by the next Sync.
func (e *Executor) Launch(label string, n int, body func(tid int)) {
	if e.stream == nil {
		if err := runChunk(0, n, body); err != nil {
			e.Defer(fmt.Errorf("kernel %s: %w", label, err))
		}
		return
	}
	e.stream.LaunchKernel(label, n, body)
}

// Execute runs an algorithm. On the host its error is returned directly;
// on the device it is queued in order with kernels and its error is
// reported by the next Sync.
func (e *Executor) Execute(label string, fn func() error) error {
	if e.stream == nil {
		return fn()
	}
	e.stream.Launch(label, fn)
	return nil
}

// ParallelFor runs body over [0, n) from inside an Execute algorithm. It
// must not be called from the host side of a device executor.
func (e *Executor) ParallelFor(n int, body func(tid int)) error {
	if e.stream == nil {
		return runChunk(0, n, body)
	}
	return ParallelFor(n, e.stream.Threads(), body)
}

// Wait blocks until queued work completes, keeping any failure for Sync.
func (e *Executor) Wait() {
	if e.stream != nil {
		e.Defer(e.stream.Sync())
	}
}

// Sync waits for queued work and returns the first failure not yet
// reported.
func (e *Executor) Sync() error {
	e.Wait()
	err := e.deferred
	e.deferred = nil
	return err
}

// Defer records err to be returned by the next Sync unless an earlier
// failure is already pending.
func (e *Executor) Defer(err error) {
	if err != nil && e.deferred == nil {
		e.deferred = err
	}
}
