// Package metrics exports cache events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/l1dsim/instrumentation/hooking"
	"github.com/sarchlab/l1dsim/mem/cache"
)

var eventLabels = map[*hooking.HookPos]string{
	cache.HookPosLookup:       "lookup",
	cache.HookPosRead:         "read",
	cache.HookPosHit:          "hit",
	cache.HookPosMiss:         "miss",
	cache.HookPosWrite:        "write",
	cache.HookPosEvict:        "evict",
	cache.HookPosFlush:        "flush",
	cache.HookPosFlushAddress: "flush_address",
	cache.HookPosReset:        "reset",
}

// Collector is a hook that counts cache events in Prometheus metrics. One
// Collector may be attached to several caches; each is labelled with the name
// given to Hook.
type Collector struct {
	eventsTotal   *prometheus.CounterVec
	residentLines *prometheus.GaugeVec
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "l1dsim_cache_events_total",
			Help: "Total number of cache events",
		}, []string{"cache", "event"}),

		residentLines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "l1dsim_cache_resident_lines",
			Help: "Number of lines currently held by the cache",
		}, []string{"cache"}),
	}

	reg.MustRegister(c.eventsTotal, c.residentLines)

	return c
}

// Hook returns the hook that feeds events of the named cache into the
// collector.
func (c *Collector) Hook(name string) hooking.Hook {
	return &cacheHook{collector: c, name: name}
}

type cacheHook struct {
	collector *Collector
	name      string
}

func (h *cacheHook) Func(ctx hooking.HookCtx) {
	event, ok := eventLabels[ctx.Pos]
	if !ok {
		return
	}

	h.collector.eventsTotal.WithLabelValues(h.name, event).Inc()

	lines := h.collector.residentLines.WithLabelValues(h.name)

	switch ctx.Pos {
	case cache.HookPosWrite:
		if detail, ok := ctx.Detail.(cache.AccessDetail); ok && !detail.Replaced {
			lines.Inc()
		}
	case cache.HookPosEvict:
		lines.Dec()
	case cache.HookPosFlushAddress:
		if detail, ok := ctx.Detail.(cache.AccessDetail); ok && detail.Present() {
			lines.Dec()
		}
	case cache.HookPosFlush:
		lines.Set(0)
	}
}
