// Package cmd provides the command-line interface of l1dsim.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCommand creates the l1dsim command with every subcommand. Flag
// defaults are read from the environment when the command is created.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "l1dsim",
		Short: "l1dsim simulates the contents of an L1 data cache.",
		Long: `l1dsim simulates the contents of a set-associative L1 data ` +
			`cache. It replays access traces, prints the decomposition of ` +
			`addresses, and summarizes recorded cache events.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newReplayCommand(),
		newInspectCommand(),
		newReportCommand(),
		newVersionCommand(),
	)

	return rootCmd
}

// LoadEnv reads a .env file in the working directory, if there is one.
// Variables already set in the environment take precedence.
func LoadEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		atexit.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
