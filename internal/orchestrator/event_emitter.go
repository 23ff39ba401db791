package orchestrator

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// eventEmitter delivers one run's progress events to its subscriber.
// Delivery is best-effort: a slow consumer gets a short grace window,
// then the event is dropped rather than stalling the run.
type eventEmitter struct {
	events       chan ProgressEvent
	done         <-chan struct{}
	logger       *zap.Logger
	droppedCount atomic.Uint64
}

// newEventEmitter creates an emitter with the given buffer size. done is
// the run's context; it releases a terminal send whose consumer has walked
// away so the run goroutine can exit.
func newEventEmitter(bufferSize int, done <-chan struct{}, logger *zap.Logger) *eventEmitter {
	return &eventEmitter{
		events: make(chan ProgressEvent, bufferSize),
		done:   done,
		logger: logger,
	}
}

// emit sends an event to the stream. If the buffer is full it waits briefly
// for the consumer to drain, then drops the event. Terminal events never
// drop while the run's context lives; once it ends and the buffer is full,
// the terminal send gives up instead of leaking the goroutine.
func (e *eventEmitter) emit(event ProgressEvent) {
	event.Timestamp = time.Now()

	if event.Terminal() {
		select {
		case e.events <- event:
			return
		default:
		}
		select {
		case e.events <- event:
		case <-e.done:
			e.logger.Warn("event stream abandoned, terminal event undelivered",
				zap.String("run", event.RunID),
				zap.String("type", string(event.Type)))
		}
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // log every 10th drop to avoid spam
			e.logger.Warn("event stream full, dropping progress events",
				zap.String("run", event.RunID),
				zap.String("type", string(event.Type)),
				zap.Uint64("total_dropped", count))
		}
	}
}

// dropped returns the total number of events dropped so far.
func (e *eventEmitter) dropped() uint64 {
	return e.droppedCount.Load()
}

// channel returns the read side of the stream.
func (e *eventEmitter) channel() <-chan ProgressEvent {
	return e.events
}

// close ends the stream. Called exactly once, after the terminal event.
func (e *eventEmitter) close() {
	close(e.events)
}
