package usage

import (
	"github.com/Laisky/zap"

	"github.com/laisky/relay-gateway/internal/logger"
)

// Sink is the usage-producing half of §6's external interfaces:
// "record_usage(UsageRecord) non-blocking; the sink must not be able to
// stall the request path (best-effort with a bounded in-memory queue;
// drops the oldest on overflow with a WARN log)."
type Sink interface {
	RecordUsage(Record)
}

// QueueSink is the default Sink: a bounded channel drained by one
// background worker that forwards records to a Writer (typically a
// gorm-backed store). Grounded on relay/billing/billing.go's
// non-fatal-on-failure write pattern, adapted into the explicit
// bounded-queue-with-drop-oldest shape §6 specifies (the teacher writes
// synchronously from the request goroutine instead; this gateway's spec
// requires the sink to never stall the request path).
type QueueSink struct {
	ch     chan Record
	writer Writer
}

// Writer persists a drained usage Record. Implementations must not block
// indefinitely; QueueSink already isolates the request path from Writer
// latency, but a pathologically slow Writer will still back up the queue.
type Writer interface {
	WriteUsage(Record) error
}

// NewQueueSink starts a QueueSink with the given capacity and a single
// background drain goroutine.
func NewQueueSink(capacity int, writer Writer) *QueueSink {
	if capacity <= 0 {
		capacity = 1024
	}
	s := &QueueSink{
		ch:     make(chan Record, capacity),
		writer: writer,
	}
	go s.drain()
	return s
}

// RecordUsage enqueues rec, dropping the oldest queued record on overflow
// (logged at WARN), per §6.
func (s *QueueSink) RecordUsage(rec Record) {
	select {
	case s.ch <- rec:
		return
	default:
	}

	// Queue full: drop the oldest entry to make room, per the spec's
	// explicit overflow policy.
	select {
	case dropped := <-s.ch:
		logger.Logger.Warn("usage sink overflow, dropping oldest record",
			zap.String("dropped_model", dropped.ModelID),
			zap.String("dropped_upstream", dropped.UpstreamID))
	default:
	}

	select {
	case s.ch <- rec:
	default:
		logger.Logger.Warn("usage sink overflow, dropping incoming record",
			zap.String("model", rec.ModelID),
			zap.String("upstream", rec.UpstreamID))
	}
}

func (s *QueueSink) drain() {
	for rec := range s.ch {
		if s.writer == nil {
			continue
		}
		if err := s.writer.WriteUsage(rec); err != nil {
			logger.Logger.Warn("failed to persist usage record",
				zap.String("model", rec.ModelID),
				zap.Error(err))
		}
	}
}

// NopSink discards every record; used when no Writer is configured.
type NopSink struct{}

// RecordUsage implements Sink.
func (NopSink) RecordUsage(Record) {}
