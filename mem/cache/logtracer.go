package cache

import (
	"encoding/hex"
	"log"

	"github.com/sarchlab/l1dsim/instrumentation/hooking"
)

// A LogTracer is a hook that writes one human-readable line per cache event.
// Caches built in debug mode carry one.
type LogTracer struct {
	logger *log.Logger
}

// NewLogTracer creates a LogTracer that writes to logger.
func NewLogTracer(logger *log.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

// Func formats the event.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	detail, _ := ctx.Detail.(AccessDetail)

	switch ctx.Pos {
	case HookPosLookup:
		if detail.Present() {
			t.logger.Printf("Present in cache: 0x%x", detail.Address)
		} else {
			t.logger.Printf("Not present in cache: 0x%x", detail.Address)
		}
	case HookPosRead:
		t.logger.Printf("Reading from cache: 0x%x", detail.Address)
	case HookPosHit:
		t.logger.Printf("Cache hit: 0x%x, set %d, way %d",
			detail.Address, detail.SetIndex, detail.Way)
	case HookPosMiss:
		t.logger.Printf("Cache miss: 0x%x, set %d, tag 0x%x",
			detail.Address, detail.SetIndex, detail.Tag)
	case HookPosWrite:
		t.traceWrite(detail)
	case HookPosEvict:
		t.logger.Printf("Evicted tag 0x%x (addr 0x%x) from set %d",
			detail.Tag, detail.Address, detail.SetIndex)
	case HookPosFlush:
		t.logger.Printf("Flushed complete cache")
	case HookPosFlushAddress:
		if detail.Present() {
			t.logger.Printf("Flushed address 0x%x from cache", detail.Address)
		} else {
			t.logger.Printf(
				"Address 0x%x was not in cache, nothing to flush",
				detail.Address)
		}
	case HookPosReset:
		t.logger.Printf("Reset cache to initial state")
	}
}

func (t *LogTracer) traceWrite(detail AccessDetail) {
	suffix := ""
	if detail.Replaced {
		suffix = " (replaced old value)"
	}

	t.logger.Printf("Writing to cache: 0x%x, value = %s%s",
		detail.Address, hex.EncodeToString(detail.Data), suffix)
}
