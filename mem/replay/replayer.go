package replay

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sarchlab/l1dsim/mem/cache"
)

// Stats counts what a Replayer has executed.
type Stats struct {
	Accesses       int `json:"accesses"`
	Reads          int `json:"reads"`
	Hits           int `json:"hits"`
	Misses         int `json:"misses"`
	Writes         int `json:"writes"`
	Queries        int `json:"queries"`
	QueryHits      int `json:"query_hits"`
	Flushes        int `json:"flushes"`
	AddressFlushes int `json:"address_flushes"`
	Resets         int `json:"resets"`
	Prints         int `json:"prints"`
}

// Progress is told about every access a Replayer has finished.
type Progress interface {
	IncrementFinished(amount uint64)
}

// A Replayer runs accesses against a cache. A miss is recognized by the cache
// asking memory for a line.
type Replayer struct {
	cache    cache.Cache
	memory   *countingMemory
	out      io.Writer
	options  cache.PrettyPrintOptions
	locker   sync.Locker
	progress Progress
	stats    Stats
}

// NewReplayer creates a Replayer that serves misses of c from memory. Prints
// are discarded until an output is set with WithOutput.
func NewReplayer(c cache.Cache, memory cache.Memory) *Replayer {
	return &Replayer{
		cache:  c,
		memory: &countingMemory{memory: memory},
		out:    io.Discard,
		locker: noLock{},
	}
}

// WithOutput sets where prints are written.
func (r *Replayer) WithOutput(w io.Writer) *Replayer {
	r.out = w
	return r
}

// WithPrintOptions sets the options of prints. A set limit given in the trace
// overrides the one given here.
func (r *Replayer) WithPrintOptions(opts cache.PrettyPrintOptions) *Replayer {
	r.options = opts
	return r
}

// WithLocker sets a lock held around every access, so that the cache may be
// inspected from another goroutine between accesses.
func (r *Replayer) WithLocker(l sync.Locker) *Replayer {
	r.locker = l
	return r
}

// WithProgress sets a tracker that Run reports to after every access.
func (r *Replayer) WithProgress(p Progress) *Replayer {
	r.progress = p
	return r
}

// Stats returns the counters accumulated so far.
func (r *Replayer) Stats() Stats {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.stats
}

// Run executes the accesses in order. It stops at the first access that
// fails or when ctx is cancelled.
func (r *Replayer) Run(ctx context.Context, accesses []Access) error {
	for _, a := range accesses {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.Execute(a); err != nil {
			return err
		}

		if r.progress != nil {
			r.progress.IncrementFinished(1)
		}
	}

	return nil
}

// Execute runs a single access. Read faults of memory are returned wrapped
// with the trace line.
func (r *Replayer) Execute(a Access) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	r.stats.Accesses++

	switch a.Op {
	case OpRead:
		return r.read(a)
	case OpWrite:
		r.stats.Writes++
		r.cache.Write(a.Address, a.Data)
	case OpQuery:
		r.stats.Queries++
		if r.cache.IsCached(a.Address) {
			r.stats.QueryHits++
		}
	case OpFlush:
		r.stats.Flushes++
		r.cache.Flush()
	case OpFlushAddress:
		r.stats.AddressFlushes++
		r.cache.FlushAddress(a.Address)
	case OpReset:
		r.stats.Resets++
		r.cache.Reset()
	case OpPrint:
		return r.print(a)
	default:
		return fmt.Errorf("line %d: unsupported operation %v", a.Line, a.Op)
	}

	return nil
}

func (r *Replayer) read(a Access) error {
	r.stats.Reads++

	before := r.memory.reads

	_, err := r.cache.Read(a.Address, r.memory)
	if r.memory.reads > before {
		r.stats.Misses++
	} else {
		r.stats.Hits++
	}

	if err != nil {
		return fmt.Errorf("line %d: read 0x%x: %w", a.Line, a.Address, err)
	}

	return nil
}

func (r *Replayer) print(a Access) error {
	r.stats.Prints++

	opts := r.options
	if a.MaxSets > 0 {
		opts.MaxSets = a.MaxSets
	}

	err := r.cache.PrettyPrint(r.out, opts)
	if err != nil {
		return fmt.Errorf("line %d: print: %w", a.Line, err)
	}

	return nil
}

type countingMemory struct {
	memory cache.Memory
	reads  int
}

func (m *countingMemory) Read(address, length uint64) ([]byte, error) {
	m.reads++
	return m.memory.Read(address, length)
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}
