package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	g := &geometry{}

	cmd := &cobra.Command{
		Use:   "inspect <addr>...",
		Short: "Print the set, tag, and line of addresses.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.build(g.builder())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cache: %s\n", describeCache(c))

			mapper := c.Mapper()

			for _, arg := range args {
				addr, err := strconv.ParseUint(arg, 0, 64)
				if err != nil {
					return fmt.Errorf("invalid address %q", arg)
				}

				setIndex, tag := mapper.Decompose(addr)
				fmt.Fprintf(cmd.OutOrStdout(),
					"0x%x: set %d, tag 0x%x, line 0x%x, offset %d\n",
					addr, setIndex, tag,
					mapper.LineBase(tag, setIndex),
					addr%mapper.LineSize)
			}

			return nil
		},
	}

	g.addFlags(cmd)

	return cmd
}
