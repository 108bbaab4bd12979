// Command kvbench measures throughput, latency and resource cost of
// embedded and remote key-value storage engines.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"kvbench/internal/storage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:   "kvbench",
		Short: "Storage engine benchmarker",
		Long: `kvbench drives a key-value storage engine through put, get, delete and
iterate phases and reports throughput, latency percentiles, resource usage
and write/read/space amplification, optionally against a baseline engine.`,
		Example: `  kvbench -e badger -o 1000000 -k 20 -v 100
  kvbench -e pebble -c --baseline badger -o 500000 -t 4
  kvbench run -e sqlite -w write -p seq --json results.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), out, cmd.Flags(), opts)
		},
	}
	root.SetOut(out)
	bindRunFlags(root.Flags(), opts)

	root.AddCommand(newRunCmd(out))
	root.AddCommand(newEnginesCmd(out))
	root.AddCommand(newVersionCmd(out))

	return root
}

func newRunCmd(out io.Writer) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchmark(cmd.Context(), out, cmd.Flags(), opts)
		},
	}
	bindRunFlags(cmd.Flags(), opts)

	return cmd
}

func newEnginesCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the storage engines compiled into this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range storage.Engines() {
				fmt.Fprintln(out, name)
			}
			if !storage.Registered("rocksdb") || !storage.Registered("mdbx") {
				fmt.Fprintln(out, "\nBuild with -tags rocksdb,mdbx to enable the cgo engines.")
			}
			return nil
		},
	}
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kvbench version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(out, "kvbench %s\n", buildVersion())
		},
	}
}

func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return strings.TrimPrefix(info.Main.Version, "v")
	}
	return "dev"
}
