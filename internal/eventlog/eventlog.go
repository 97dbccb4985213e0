// Package eventlog implements a non-blocking, batched cache event log.
//
// Events are written to an internal buffered channel and flushed in
// batches by a background goroutine, so recording never blocks a cache
// operation. If the channel fills up (> 10 000 events), new events are
// dropped and counted in DroppedEvents.
package eventlog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	channelBuffer = 10_000
	batchSize     = 100
	flushInterval = time.Second
)

// Event is one cache operation: which store, what was done, and how it
// went.
type Event struct {
	ID        uuid.UUID
	Store     string
	Op        string
	Result    string
	LatencyUS int64
	CreatedAt time.Time
}

// Sink receives flushed batches. Implementations must tolerate being
// called from a single background goroutine.
type Sink interface {
	WriteBatch(ctx context.Context, events []Event) error
	Close() error
}

// Logger batches cache events and hands them to a Sink.
type Logger struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	droppedEvents int64

	baseCtx context.Context
	sink    Sink
}

// New starts the flush goroutine. ctx is used for sink writes; sink
// must be non-nil.
func New(ctx context.Context, sink Sink) (*Logger, error) {
	if ctx == nil {
		return nil, fmt.Errorf("eventlog: context must not be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("eventlog: sink must not be nil")
	}

	l := &Logger{
		ch:      make(chan Event, channelBuffer),
		done:    make(chan struct{}),
		baseCtx: ctx,
		sink:    sink,
	}

	l.wg.Add(1)
	go l.run()

	return l, nil
}

// RecordCacheOp implements the cache manager's Recorder interface.
func (l *Logger) RecordCacheOp(store, op, result string, latency time.Duration) {
	l.Log(Event{
		ID:        uuid.New(),
		Store:     store,
		Op:        op,
		Result:    result,
		LatencyUS: latency.Microseconds(),
		CreatedAt: time.Now().UTC(),
	})
}

// Log enqueues one event, dropping it if the buffer is full.
func (l *Logger) Log(e Event) {
	select {
	case l.ch <- e:
	default:
		atomic.AddInt64(&l.droppedEvents, 1)
	}
}

// DroppedEvents reports how many events were discarded because the
// buffer was full.
func (l *Logger) DroppedEvents() int64 {
	return atomic.LoadInt64(&l.droppedEvents)
}

// Close drains the buffer, flushes the final batch and closes the sink.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	l.wg.Wait()
	return l.sink.Close()
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, batchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		// Flush failures are absorbed: the event log must never take
		// the cache down with it.
		_ = l.sink.WriteBatch(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush(l.baseCtx)
			}

		case <-ticker.C:
			flush(l.baseCtx)

		case <-l.done:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
					if len(batch) >= batchSize {
						flush(l.baseCtx)
					}
				default:
					flush(l.baseCtx)
					return
				}
			}
		}
	}
}
