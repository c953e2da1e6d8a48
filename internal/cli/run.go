package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	runCmd.Flags().DurationVar(&runSettle, "settle", 0, "Maximum time to wait for handshakes (overrides config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the status as JSON")
	runCmd.Flags().BoolVar(&runRecord, "record", false, "Record the run in the history store")
	rootCmd.AddCommand(runCmd)
}

var (
	runSettle time.Duration
	runJSON   bool
	runRecord bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a topology, wait for handshakes and print its status",
	Long: `Start every node of the topology, initiate all configured handshakes and
wait until they are connected or the settle time passes.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	d, err := newDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if runSettle > 0 {
		d.Config.Simulation.Settle = runSettle.String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if runRecord {
		if _, err := d.BeginRun("run"); err != nil {
			return err
		}
	}

	d.Start()
	pb := newProgressBar(os.Stderr)
	pb.finish(d.Settle(ctx, pb.callback))

	st, err := d.Snapshot("settled")
	if err != nil {
		return err
	}
	d.Network.Stop()
	if runRecord {
		if err := d.FinishRun(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "recorded run %s\n", d.Run().ID)
	}

	if runJSON {
		return printJSON(os.Stdout, st)
	}
	return printStatus(os.Stdout, st)
}
