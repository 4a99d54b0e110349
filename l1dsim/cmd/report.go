package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sarchlab/l1dsim/datarecording"
	"github.com/sarchlab/l1dsim/mem/cache"
	"github.com/sarchlab/l1dsim/mem/trace"
)

var reportedKinds = []string{
	cache.HookPosRead.Name,
	cache.HookPosHit.Name,
	cache.HookPosMiss.Name,
	cache.HookPosWrite.Name,
	cache.HookPosEvict.Name,
	cache.HookPosLookup.Name,
	cache.HookPosFlush.Name,
	cache.HookPosFlushAddress.Name,
	cache.HookPosReset.Name,
}

func newReportCommand() *cobra.Command {
	var cacheFilter, addressFilter string

	cmd := &cobra.Command{
		Use:   "report <recording>",
		Short: "Summarize the cache events of a recording.",
		Long: `report reads <recording>.sqlite3, as written by ` +
			`"replay --record <recording>", and prints how many times each ` +
			`kind of cache event happened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], cacheFilter, addressFilter)
		},
	}

	cmd.Flags().StringVar(&cacheFilter, "cache", "",
		"only count the events of the named cache")
	cmd.Flags().StringVar(&addressFilter, "address", "",
		"only count the events of the given address")

	return cmd
}

func runReport(
	cmd *cobra.Command,
	path, cacheFilter, addressFilter string,
) error {
	if _, err := os.Stat(path + ".sqlite3"); err != nil {
		return err
	}

	var address uint64

	if addressFilter != "" {
		var err error

		address, err = strconv.ParseUint(addressFilter, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q", addressFilter)
		}
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(trace.EventTableName, trace.EventEntry{})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tCOUNT")

	for _, kind := range reportedKinds {
		params := datarecording.QueryParams{
			Where: "Kind = ?",
			Args:  []any{kind},
			Limit: 1,
		}

		if cacheFilter != "" {
			params.Where += " AND Cache = ?"
			params.Args = append(params.Args, cacheFilter)
		}

		if addressFilter != "" {
			params.Where += " AND Address = ?"
			params.Args = append(params.Args, int64(address))
		}

		_, total, err := reader.Query(cmd.Context(), trace.EventTableName, params)
		if err != nil {
			return fmt.Errorf("querying %s: %w", kind, err)
		}

		fmt.Fprintf(w, "%s\t%s\n", kind, humanize.Comma(int64(total)))
	}

	return w.Flush()
}
