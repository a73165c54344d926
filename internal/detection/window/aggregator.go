package window

import (
	"hash/fnv"
	"sync"
	"time"

	"kestrel/internal/domain"
)

const (
	shardCount  = 64
	bucketCount = 16

	// Idle counters are evicted lazily once a shard grows past this size.
	idleScanThreshold = 4096
)

type key struct {
	ip        string
	eventType domain.EventType
}

// counter is a ring of time buckets covering one window. Each slot stores
// the epoch it was last written for; a slot whose epoch is stale is reset on
// the next write and ignored by sums, which makes eviction a side effect of
// access rather than a background sweep.
type counter struct {
	width   int64 // bucket width in nanoseconds
	epochs  [bucketCount]int64
	counts  [bucketCount]uint32
	touched int64 // unix nanos of last access
}

func bucketWidth(window time.Duration) int64 {
	width := window.Nanoseconds() / bucketCount
	if width < 1 {
		width = 1
	}
	return width
}

func newCounter(window time.Duration) *counter {
	return &counter{width: bucketWidth(window)}
}

func (c *counter) add(at time.Time) {
	epoch := at.UnixNano() / c.width
	slot := int(epoch % bucketCount)
	if slot < 0 {
		slot += bucketCount
	}
	if c.epochs[slot] != epoch {
		c.epochs[slot] = epoch
		c.counts[slot] = 0
	}
	c.counts[slot]++
}

func (c *counter) sum(now time.Time) uint32 {
	nowEpoch := now.UnixNano() / c.width
	oldest := nowEpoch - bucketCount + 1

	var total uint32
	for slot := 0; slot < bucketCount; slot++ {
		epoch := c.epochs[slot]
		if epoch >= oldest && epoch <= nowEpoch && c.counts[slot] > 0 {
			total += c.counts[slot]
		}
	}
	return total
}

func (c *counter) span() int64 {
	return c.width * bucketCount
}

type shard struct {
	mu       sync.Mutex
	counters map[key]*counter
}

// Aggregator maintains sliding-window counts per (ip, type). Keys are hashed
// to independent lock domains so unrelated IPs never contend on one lock;
// operations on the same key are serialized by the shard mutex.
type Aggregator struct {
	shards [shardCount]shard
	now    func() time.Time
}

func NewAggregator() *Aggregator {
	a := &Aggregator{now: time.Now}
	for i := range a.shards {
		a.shards[i].counters = make(map[key]*counter)
	}
	return a
}

func (a *Aggregator) shardFor(k key) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.ip))
	h.Write([]byte{0})
	h.Write([]byte(k.eventType))
	return &a.shards[h.Sum32()%shardCount]
}

// Observe records one event and returns the count currently inside the
// window for its (ip, type). A counter whose configured window changed is
// restarted rather than rescaled.
func (a *Aggregator) Observe(ip string, eventType domain.EventType, occurredAt time.Time, window time.Duration) uint32 {
	k := key{ip: ip, eventType: eventType}
	s := a.shardFor(k)
	now := a.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[k]
	if !ok || c.width != bucketWidth(window) {
		c = newCounter(window)
		s.counters[k] = c
	}

	c.add(occurredAt)
	c.touched = now.UnixNano()

	if len(s.counters) > idleScanThreshold {
		evictIdle(s, now)
	}

	return c.sum(now)
}

// CountInWindow reports the count inside [now - window, now] without
// recording anything.
func (a *Aggregator) CountInWindow(ip string, eventType domain.EventType, window time.Duration) uint32 {
	k := key{ip: ip, eventType: eventType}
	s := a.shardFor(k)
	now := a.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[k]
	if !ok {
		return 0
	}
	return c.sum(now)
}

func evictIdle(s *shard, now time.Time) {
	cutoff := now.UnixNano()
	for k, c := range s.counters {
		if cutoff-c.touched > c.span() {
			delete(s.counters, k)
		}
	}
}
