package livestate

import (
	"sort"
	"sync"

	"github.com/hutanwatch/forest-monitor/internal/telemetry"
)

// Entry is one row of the latest-reading table: the most recently accepted
// message for a sensor plus its arrival sequence number. The sequence makes
// cross-sensor recency explicit instead of depending on map iteration order.
type Entry struct {
	Message telemetry.Message
	Seq     uint64
}

// Table tracks the most recently accepted telemetry message per sensor.
// It is shared between the ingestion path and the query surface, so all
// access goes through the mutex. The table starts empty on process start;
// entries are overwritten per sensor and never evicted.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Entry
	seq     uint64
}

// NewTable creates an empty latest-reading table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Put overwrites the entry for the message's sensor and stamps it with the
// next arrival sequence.
func (t *Table) Put(msg telemetry.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.entries[msg.SensorID] = Entry{Message: msg, Seq: t.seq}
}

// Get returns the latest message for one sensor.
func (t *Table) Get(sensorID string) (telemetry.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[sensorID]
	return entry.Message, ok
}

// Snapshot returns all entries ordered by arrival, oldest first. The slice
// is a copy; callers may hold it without further locking.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	entries := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries
}

// Len returns the number of sensors currently tracked.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
