package cache

import (
	"github.com/sarchlab/l1dsim/instrumentation/hooking"
)

// Hook positions raised by both cache variants. The HookCtx Item is the
// accessed address (absent for whole-cache events) and the Detail is an
// AccessDetail.
var (
	// HookPosLookup is raised by IsCached.
	HookPosLookup = &hooking.HookPos{Name: "CacheLookup"}

	// HookPosRead is raised when a Read starts.
	HookPosRead = &hooking.HookPos{Name: "CacheRead"}

	// HookPosHit is raised when a Read finds its line resident.
	HookPosHit = &hooking.HookPos{Name: "CacheHit"}

	// HookPosMiss is raised when a Read has to consult memory.
	HookPosMiss = &hooking.HookPos{Name: "CacheMiss"}

	// HookPosWrite is raised after a line is installed or replaced.
	HookPosWrite = &hooking.HookPos{Name: "CacheWrite"}

	// HookPosEvict is raised when a line leaves a full set.
	HookPosEvict = &hooking.HookPos{Name: "CacheEvict"}

	// HookPosFlush is raised after every line has been removed.
	HookPosFlush = &hooking.HookPos{Name: "CacheFlush"}

	// HookPosFlushAddress is raised by FlushAddress, whether or not a line
	// was removed.
	HookPosFlushAddress = &hooking.HookPos{Name: "CacheFlushAddress"}

	// HookPosReset is raised after the cache has been reset.
	HookPosReset = &hooking.HookPos{Name: "CacheReset"}
)

// AccessDetail describes the line involved in a cache event.
type AccessDetail struct {
	Address  uint64
	SetIndex uint64
	Tag      uint64

	// Way is the position of the line in its set, or -1 if the line is not
	// resident. Hits report the position before promotion, writes the position
	// after the write, and evictions the position the victim left.
	Way int

	// Data is the line content for hits, writes, and evictions.
	Data []byte

	// Replaced tells, for writes, that the tag was already resident.
	Replaced bool
}

// Present tells whether the line was resident when the event happened.
func (d AccessDetail) Present() bool {
	return d.Way >= 0
}

func (d *directory) invoke(pos *hooking.HookPos, item any, detail any) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d.domain,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

func (d *directory) traceLookup(address, setIndex, tag uint64, way int) {
	d.invoke(HookPosLookup, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      tag,
		Way:      way,
	})
}

func (d *directory) traceRead(address, setIndex, tag uint64) {
	d.invoke(HookPosRead, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      tag,
		Way:      -1,
	})
}

func (d *directory) traceHit(
	address, setIndex, tag uint64,
	way int,
	data []byte,
) {
	d.invoke(HookPosHit, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      tag,
		Way:      way,
		Data:     data,
	})
}

func (d *directory) traceMiss(address, setIndex, tag uint64) {
	d.invoke(HookPosMiss, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      tag,
		Way:      -1,
	})
}

func (d *directory) traceWrite(
	address, setIndex, tag uint64,
	data []byte,
	replaced bool,
) {
	if d.NumHooks() == 0 {
		return
	}

	d.invoke(HookPosWrite, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      tag,
		Way:      d.sets[setIndex].find(tag),
		Data:     data,
		Replaced: replaced,
	})
}

func (d *directory) traceEvict(setIndex uint64, victim Line) {
	address := d.mapper.LineBase(victim.Tag, setIndex)

	d.invoke(HookPosEvict, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      victim.Tag,
		Way:      d.sets[setIndex].Len() - 1,
		Data:     victim.Data,
	})
}

func (d *directory) traceFlush() {
	d.invoke(HookPosFlush, nil, nil)
}

func (d *directory) traceFlushAddress(
	address, setIndex, tag uint64,
	way int,
) {
	d.invoke(HookPosFlushAddress, address, AccessDetail{
		Address:  address,
		SetIndex: setIndex,
		Tag:      tag,
		Way:      way,
	})
}

func (d *directory) traceReset() {
	d.invoke(HookPosReset, nil, nil)
}
