package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/l1dsim/mem/cache"
)

// Environment variables that provide flag defaults.
const (
	EnvSets        = "L1DSIM_SETS"
	EnvWays        = "L1DSIM_WAYS"
	EnvLineSize    = "L1DSIM_LINE_SIZE"
	EnvDebug       = "L1DSIM_DEBUG"
	EnvRecord      = "L1DSIM_RECORD"
	EnvMonitorPort = "L1DSIM_MONITOR_PORT"
)

func envInt(name string, def int) int {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return def
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Ignoring %s=%q, not an integer. Using %d instead.\n", name, s, def)
		return def
	}

	return v
}

func envBool(name string) bool {
	s := strings.ToLower(os.Getenv(name))
	return s == "true" || s == "1"
}

// geometry holds the flags that shape a cache.
type geometry struct {
	numSets   int
	numWays   int
	lineSize  int
	unbounded bool
}

func (g *geometry) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&g.numSets, "sets", envInt(EnvSets, 64),
		"number of sets")
	cmd.Flags().IntVar(&g.numWays, "ways", envInt(EnvWays, 8),
		"number of ways per set, ignored with --unbounded")
	cmd.Flags().IntVar(&g.lineSize, "line-size", envInt(EnvLineSize, 64),
		"number of bytes per line")
	cmd.Flags().BoolVar(&g.unbounded, "unbounded", false,
		"let sets grow without eviction")
}

func (g *geometry) builder() cache.Builder {
	return cache.MakeBuilder().
		WithNumSets(g.numSets).
		WithNumWays(g.numWays).
		WithLineSize(g.lineSize)
}

func (g *geometry) build(b cache.Builder) (cache.Cache, error) {
	if g.unbounded {
		c, err := b.BuildUnbounded()
		if err != nil {
			return nil, err
		}

		return c, nil
	}

	c, err := b.BuildLRU()
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (g *geometry) String() string {
	if g.unbounded {
		return fmt.Sprintf("unbounded, %d sets, %d B lines", g.numSets, g.lineSize)
	}

	return fmt.Sprintf("lru, %d sets, %d ways, %d B lines",
		g.numSets, g.numWays, g.lineSize)
}
