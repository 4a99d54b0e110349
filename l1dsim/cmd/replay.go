package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/l1dsim/datarecording"
	"github.com/sarchlab/l1dsim/instrumentation/metrics"
	"github.com/sarchlab/l1dsim/mem/cache"
	"github.com/sarchlab/l1dsim/mem/replay"
	"github.com/sarchlab/l1dsim/mem/storage"
	"github.com/sarchlab/l1dsim/mem/trace"
	"github.com/sarchlab/l1dsim/monitoring"
)

const cacheName = "l1d"

type replayOptions struct {
	geometry

	debug        bool
	capacity     uint64
	record       string
	monitor      bool
	monitorPort  int
	openBrowser  bool
	hold         bool
	maxSets      int
	previewBytes int
}

func newReplayCommand() *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Run an access trace against a cache.",
		Long: `replay runs every access of a trace file against a cache and ` +
			`prints a summary. Use - to read the trace from stdin. Each line ` +
			`of the trace is one of "R <addr>", "W <addr> <hex>", ` +
			`"Q <addr>", "F", "FA <addr>", "X", or "P [max_sets]".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], opts)
		},
	}

	opts.addFlags(cmd)

	flags := cmd.Flags()
	flags.BoolVar(&opts.debug, "debug", envBool(EnvDebug),
		"trace every cache operation to stderr")
	flags.Uint64Var(&opts.capacity, "capacity", 1<<32,
		"number of bytes of the backing memory")
	flags.StringVar(&opts.record, "record", os.Getenv(EnvRecord),
		"record cache events into <record>.sqlite3 or a clickhouse:// URL")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the cache state over HTTP while replaying")
	flags.IntVar(&opts.monitorPort, "monitor-port",
		envInt(EnvMonitorPort, 0), "port of the monitoring server")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring server in a browser")
	flags.BoolVar(&opts.hold, "hold", false,
		"keep the monitoring server up after the replay until interrupted")
	flags.IntVar(&opts.maxSets, "max-sets", 0,
		"number of sets printed by P accesses, 0 for all")
	flags.IntVar(&opts.previewBytes, "preview-bytes", cache.DefaultPreviewBytes,
		"number of bytes printed per line by P accesses")

	return cmd
}

func openTrace(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}

	return os.Open(path)
}

func runReplay(cmd *cobra.Command, path string, opts *replayOptions) error {
	f, err := openTrace(cmd, path)
	if err != nil {
		return err
	}

	accesses, err := replay.Parse(f)
	f.Close()

	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	counter := trace.NewCountTracer()
	builder := opts.builder().
		WithDebug(opts.debug).
		WithLogger(log.New(cmd.ErrOrStderr(), "", 0)).
		WithHook(counter)

	if opts.record != "" {
		recorder, err := openRecorder(opts.record)
		if err != nil {
			return err
		}
		defer recorder.Close()

		exec := datarecording.NewExecRecorder(recorder)
		exec.Start()
		exec.Set("Trace", path)
		exec.Set("Cache", opts.geometry.String())
		defer exec.End()

		builder = builder.WithHook(trace.NewDBTracer(cacheName, recorder))
	}

	var monitor *monitoring.Monitor

	if opts.monitor {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector(reg)
		builder = builder.WithHook(collector.Hook(cacheName))

		monitor = monitoring.NewMonitor().WithOpenBrowser(opts.openBrowser)
		if opts.monitorPort != 0 {
			monitor.WithPortNumber(opts.monitorPort)
		}

		monitor.RegisterGatherer(reg)
	}

	c, err := opts.build(builder)
	if err != nil {
		return err
	}

	replayer := replay.NewReplayer(c, storage.New(opts.capacity)).
		WithOutput(cmd.OutOrStdout()).
		WithPrintOptions(cache.PrettyPrintOptions{
			MaxSets:      opts.maxSets,
			PreviewBytes: opts.previewBytes,
		})

	if monitor != nil {
		handle := &monitoring.CacheHandle{Name: cacheName, Cache: c}
		monitor.RegisterCache(handle)
		monitor.RegisterStats("replay", func() any { return replayer.Stats() })
		monitor.RegisterStats("events", func() any { return counter.Counts() })

		bar := monitor.CreateProgressBar("replay "+path, uint64(len(accesses)))
		defer monitor.CompleteProgressBar(bar)

		replayer.WithLocker(handle).WithProgress(bar)
		monitor.StartServer()
	}

	runErr := replayer.Run(cmd.Context(), accesses)

	printSummary(cmd.OutOrStdout(), c, replayer.Stats(), counter.Counts())

	if runErr != nil {
		return runErr
	}

	if monitor != nil && opts.hold {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Replay done, monitoring at %s until interrupted\n", monitor.URL())
		<-cmd.Context().Done()
	}

	return nil
}

// openRecorder opens a ClickHouse recorder for clickhouse:// URLs and a SQLite
// recorder otherwise.
func openRecorder(target string) (datarecording.DataRecorder, error) {
	if !strings.HasPrefix(target, "clickhouse://") {
		return datarecording.New(target), nil
	}

	chOpts, err := datarecording.ParseClickHouseURL(target)
	if err != nil {
		return nil, err
	}

	return datarecording.NewClickHouse(chOpts)
}

func describeCache(c cache.Cache) string {
	mapper := c.Mapper()

	if lru, ok := c.(*cache.LRUCache); ok {
		ways := uint64(lru.NumWays())

		return fmt.Sprintf("%d sets x %d ways x %d B lines (%s)",
			mapper.NumSets, ways, mapper.LineSize,
			humanize.IBytes(mapper.CapacityBytes(ways)))
	}

	return fmt.Sprintf("%d sets x unbounded ways x %d B lines",
		mapper.NumSets, mapper.LineSize)
}

func printSummary(
	w io.Writer,
	c cache.Cache,
	stats replay.Stats,
	counts trace.Counts,
) {
	fmt.Fprintf(w, "Cache: %s\n", describeCache(c))
	fmt.Fprintf(w, "Accesses: %s\n", humanize.Comma(int64(stats.Accesses)))
	fmt.Fprintf(w, "Reads: %s (hits %s, misses %s, hit rate %.2f%%)\n",
		humanize.Comma(int64(stats.Reads)),
		humanize.Comma(int64(stats.Hits)),
		humanize.Comma(int64(stats.Misses)),
		counts.HitRate()*100)
	fmt.Fprintf(w, "Writes: %s, evictions: %s\n",
		humanize.Comma(int64(stats.Writes)),
		humanize.Comma(int64(counts.Evictions)))
	fmt.Fprintf(w, "Queries: %s (resident %s)\n",
		humanize.Comma(int64(stats.Queries)),
		humanize.Comma(int64(stats.QueryHits)))

	if u, ok := c.(*cache.UnboundedCache); ok {
		s := u.Stats()
		fmt.Fprintf(w, "Lines: %d in %d of %d sets, largest set %d\n",
			s.TotalLines, s.NonEmptySets, s.TotalSets, s.MaxSetSize)
	}
}
