package detection

import (
	"testing"
	"time"

	"kestrel/internal/domain"
)

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	w := newEventWriter(2, 10, time.Second)
	// Not started: nothing drains the queue.

	item := pendingEvent{event: domain.SuspiciousEvent{IP: "203.0.113.7", Type: domain.EventBurst}}

	if !w.enqueue(item) || !w.enqueue(item) {
		t.Fatal("enqueue failed with free capacity")
	}
	if w.enqueue(item) {
		t.Fatal("enqueue succeeded on a full queue")
	}
	if got := w.dropped.Load(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestCloseFlushesQueuedEvents(t *testing.T) {
	db := setupDetectionTestDB(t)

	w := newEventWriter(16, 10, time.Hour)
	w.start()

	now := time.Now()
	for i := 0; i < 3; i++ {
		ok := w.enqueue(pendingEvent{
			event: domain.SuspiciousEvent{
				IP:         "203.0.113.7",
				Type:       domain.EventScan404,
				Severity:   domain.SeverityLow,
				OccurredAt: now,
			},
			count: uint32(i + 1),
		})
		if !ok {
			t.Fatalf("enqueue %d failed", i)
		}
	}

	w.close()

	var count int64
	db.Model(&domain.SuspiciousEvent{}).Count(&count)
	if count != 3 {
		t.Fatalf("persisted events = %d, want 3", count)
	}

	var aggregate domain.IncidentAggregate
	if err := db.Where("ip = ?", "203.0.113.7").First(&aggregate).Error; err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	if aggregate.CountAttempts != 3 {
		t.Fatalf("aggregate count = %d, want max window count 3", aggregate.CountAttempts)
	}
}
