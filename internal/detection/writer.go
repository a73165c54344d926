package detection

import (
	"sync"
	"sync/atomic"
	"time"

	"kestrel/internal/database"
	"kestrel/internal/domain"

	"github.com/charmbracelet/log"
)

const (
	defaultQueueSize   = 8192
	defaultBatchWindow = 50 * time.Millisecond
	defaultBatchMax    = 2048
)

type pendingEvent struct {
	event domain.SuspiciousEvent
	count uint32
}

// eventWriter drains recorded events off the ingest path and persists them in
// batches from a single goroutine. Enqueueing never blocks: when the queue is
// full the event is dropped and counted, because losing trailing window state
// is acceptable while stalling ingestion is not.
type eventWriter struct {
	queue       chan pendingEvent
	batchWindow time.Duration
	batchMax    int

	dropped   atomic.Uint64
	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newEventWriter(queueSize, batchMax int, batchWindow time.Duration) *eventWriter {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if batchMax <= 0 {
		batchMax = defaultBatchMax
	}
	if batchWindow <= 0 {
		batchWindow = defaultBatchWindow
	}
	return &eventWriter{
		queue:       make(chan pendingEvent, queueSize),
		batchWindow: batchWindow,
		batchMax:    batchMax,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *eventWriter) start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// close flushes whatever is queued and stops the writer goroutine.
func (w *eventWriter) close() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
	})
}

func (w *eventWriter) enqueue(item pendingEvent) bool {
	select {
	case w.queue <- item:
		return true
	default:
		dropped := w.dropped.Add(1)
		if dropped == 1 || dropped%1000 == 0 {
			log.Warn("event writer queue full, dropping events", "dropped_total", dropped)
		}
		return false
	}
}

func (w *eventWriter) run() {
	defer close(w.done)

	batch := make([]pendingEvent, 0, w.batchMax)
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer = nil
			timerC = nil
		}
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		items := make([]pendingEvent, len(batch))
		copy(items, batch)
		batch = batch[:0]
		w.persistBatch(items)
	}

	for {
		select {
		case item := <-w.queue:
			batch = append(batch, item)
			if len(batch) >= w.batchMax {
				stopTimer()
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.batchWindow)
				timerC = timer.C
			}
		case <-timerC:
			flush()
			timer = nil
			timerC = nil
		case <-w.stop:
			stopTimer()
			for {
				select {
				case item := <-w.queue:
					batch = append(batch, item)
				default:
					flush()
					return
				}
			}
		}
	}
}

// persistBatch appends the events and upserts the per-(ip, type) aggregate
// mirror. Errors are logged and swallowed: the ingest path must never see
// storage failures.
func (w *eventWriter) persistBatch(items []pendingEvent) {
	events := make([]domain.SuspiciousEvent, 0, len(items))
	updates := make(map[database.AggregateKey]database.AggregateUpdate, len(items))

	for _, item := range items {
		events = append(events, item.event)

		k := database.AggregateKey{IP: item.event.IP, Type: item.event.Type}
		update, ok := updates[k]
		if !ok {
			update = database.AggregateUpdate{
				Count:     item.count,
				FirstSeen: item.event.OccurredAt,
				LastSeen:  item.event.OccurredAt,
			}
		} else {
			if item.count > update.Count {
				update.Count = item.count
			}
			if item.event.OccurredAt.Before(update.FirstSeen) {
				update.FirstSeen = item.event.OccurredAt
			}
			if item.event.OccurredAt.After(update.LastSeen) {
				update.LastSeen = item.event.OccurredAt
			}
		}
		updates[k] = update
	}

	if err := database.InsertSuspiciousEvents(events); err != nil {
		log.Error("persist suspicious events", "count", len(events), "error", err)
	}

	if err := database.UpsertIncidentAggregates(updates); err != nil {
		log.Error("upsert incident aggregates", "count", len(updates), "error", err)
	}
}
