// Package trace provides hooks that record the activity of a cache.
package trace

import (
	"fmt"
	"sync"

	"github.com/rs/xid"

	"github.com/sarchlab/l1dsim/datarecording"
	"github.com/sarchlab/l1dsim/instrumentation/hooking"
	"github.com/sarchlab/l1dsim/mem/cache"
)

// EventTableName is the table DBTracer writes to.
const EventTableName = "cache_events"

// EventEntry represents one cache event in the database.
//
// Address, SetIndex, and Tag hold the bits of their uint64 values, as SQLite
// integers are signed. Location converts them back.
type EventEntry struct {
	ID       string
	Cache    string
	Seq      uint64
	Kind     string
	Address  int64
	SetIndex int64
	Tag      int64
	Way      int
	Present  bool
	Replaced bool
	Data     string
}

// Location returns the address of the event and where it maps in the cache.
func (e EventEntry) Location() (address, setIndex, tag uint64) {
	return uint64(e.Address), uint64(e.SetIndex), uint64(e.Tag)
}

// A DBTracer is a hook that records every cache event into a database using
// the data recorder.
type DBTracer struct {
	name         string
	dataRecorder datarecording.DataRecorder
	previewBytes int
	seq          uint64
}

// NewDBTracer creates a DBTracer that tags its rows with the given cache
// name. The event table is created if the recorder does not have it yet.
func NewDBTracer(
	name string,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	t := &DBTracer{
		name:         name,
		dataRecorder: dataRecorder,
		previewBytes: cache.DefaultPreviewBytes,
	}

	if !hasTable(dataRecorder, EventTableName) {
		dataRecorder.CreateTable(EventTableName, EventEntry{})
	}

	return t
}

func hasTable(r datarecording.DataRecorder, name string) bool {
	for _, t := range r.ListTables() {
		if t == name {
			return true
		}
	}

	return false
}

// Func records the event.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	t.seq++

	entry := EventEntry{
		ID:    xid.New().String(),
		Cache: t.name,
		Seq:   t.seq,
		Kind:  ctx.Pos.Name,
		Way:   -1,
	}

	if detail, ok := ctx.Detail.(cache.AccessDetail); ok {
		entry.Address = int64(detail.Address)
		entry.SetIndex = int64(detail.SetIndex)
		entry.Tag = int64(detail.Tag)
		entry.Way = detail.Way
		entry.Present = detail.Present()
		entry.Replaced = detail.Replaced
		entry.Data = cache.HexPreview(detail.Data, t.previewBytes)
	}

	t.dataRecorder.InsertData(EventTableName, entry)
}

// Counts summarizes the events seen by a CountTracer.
type Counts struct {
	Lookups        uint64 `json:"lookups"`
	Reads          uint64 `json:"reads"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Writes         uint64 `json:"writes"`
	Evictions      uint64 `json:"evictions"`
	Flushes        uint64 `json:"flushes"`
	AddressFlushes uint64 `json:"address_flushes"`
	Resets         uint64 `json:"resets"`
}

// HitRate returns hits over reads, or zero before the first read.
func (c Counts) HitRate() float64 {
	if c.Reads == 0 {
		return 0
	}

	return float64(c.Hits) / float64(c.Reads)
}

func (c Counts) String() string {
	return fmt.Sprintf(
		"reads %d (hits %d, misses %d, hit rate %.2f%%), writes %d, "+
			"evictions %d, lookups %d, flushes %d, address flushes %d",
		c.Reads, c.Hits, c.Misses, c.HitRate()*100, c.Writes,
		c.Evictions, c.Lookups, c.Flushes, c.AddressFlushes)
}

// CountTracer counts how often each cache event happens. Counts may be read
// from another goroutine while the cache runs.
type CountTracer struct {
	lock   sync.Mutex
	counts Counts
}

// NewCountTracer creates a new CountTracer.
func NewCountTracer() *CountTracer {
	return &CountTracer{}
}

// Func counts the event.
func (t *CountTracer) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	switch ctx.Pos {
	case cache.HookPosLookup:
		t.counts.Lookups++
	case cache.HookPosRead:
		t.counts.Reads++
	case cache.HookPosHit:
		t.counts.Hits++
	case cache.HookPosMiss:
		t.counts.Misses++
	case cache.HookPosWrite:
		t.counts.Writes++
	case cache.HookPosEvict:
		t.counts.Evictions++
	case cache.HookPosFlush:
		t.counts.Flushes++
	case cache.HookPosFlushAddress:
		t.counts.AddressFlushes++
	case cache.HookPosReset:
		t.counts.Resets++
	}
}

// Counts returns a snapshot of the counters.
func (t *CountTracer) Counts() Counts {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts
}
