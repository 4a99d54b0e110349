package cache

import (
	"log"
	"os"

	"github.com/sarchlab/l1dsim/instrumentation/hooking"
)

// Builder can build caches.
type Builder struct {
	numSets  int
	numWays  int
	lineSize int
	debug    bool
	logger   *log.Logger
	hooks    []hooking.Hook
}

// MakeBuilder creates a builder with the geometry of a typical L1 data cache:
// 64 sets, 8 ways, and 64-byte lines.
func MakeBuilder() Builder {
	return Builder{
		numSets:  64,
		numWays:  8,
		lineSize: 64,
	}
}

// WithNumSets sets the number of sets.
func (b Builder) WithNumSets(numSets int) Builder {
	b.numSets = numSets
	return b
}

// WithNumWays sets the associativity. It is ignored by BuildUnbounded.
func (b Builder) WithNumWays(numWays int) Builder {
	b.numWays = numWays
	return b
}

// WithLineSize sets the number of bytes per line.
func (b Builder) WithLineSize(lineSize int) Builder {
	b.lineSize = lineSize
	return b
}

// WithDebug turns per-operation tracing on or off. Debug mode also makes
// PrettyPrint list empty sets.
func (b Builder) WithDebug(debug bool) Builder {
	b.debug = debug
	return b
}

// WithLogger sets the logger that debug traces go to. By default, traces go
// to stderr.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithHook registers a hook on the built cache.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// BuildLRU builds an LRUCache.
func (b Builder) BuildLRU() (*LRUCache, error) {
	if err := b.validate(true); err != nil {
		return nil, err
	}

	c := &LRUCache{numWays: b.numWays}
	c.directory = b.buildDirectory(lruPolicy{numWays: b.numWays})
	c.domain = c

	b.attachHooks(c)

	return c, nil
}

// BuildUnbounded builds an UnboundedCache.
func (b Builder) BuildUnbounded() (*UnboundedCache, error) {
	if err := b.validate(false); err != nil {
		return nil, err
	}

	c := &UnboundedCache{}
	c.directory = b.buildDirectory(appendPolicy{})
	c.domain = c

	b.attachHooks(c)

	return c, nil
}

func (b Builder) validate(bounded bool) error {
	if err := mustBePositive("NumSets", b.numSets); err != nil {
		return err
	}

	if bounded {
		if err := mustBePositive("NumWays", b.numWays); err != nil {
			return err
		}
	}

	if err := mustBePositive("LineSize", b.lineSize); err != nil {
		return err
	}

	size, err := mustNotOverflow("LineSize", b.lineSize, uint64(b.numSets))
	if err != nil {
		return err
	}

	if bounded {
		_, err = mustNotOverflow("NumWays", b.numWays, size)
	}

	return err
}

func (b Builder) buildDirectory(policy replacementPolicy) *directory {
	d := newDirectory(uint64(b.numSets), uint64(b.lineSize), policy)
	d.debug = b.debug

	return d
}

func (b Builder) attachHooks(c hooking.Hookable) {
	if b.debug {
		logger := b.logger
		if logger == nil {
			logger = log.New(os.Stderr, "", 0)
		}

		c.AcceptHook(NewLogTracer(logger))
	}

	for _, hook := range b.hooks {
		c.AcceptHook(hook)
	}
}
