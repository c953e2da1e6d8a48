package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutu-network/wgsim/internal/domain"
)

func init() {
	scenarioCmd.Flags().StringVar(&scenarioFail, "fail", "", "Node to fail and recover (required)")
	scenarioCmd.Flags().DurationVar(&scenarioSettle, "settle", 0, "Maximum time to wait for handshakes (overrides config)")
	scenarioCmd.Flags().BoolVar(&scenarioJSON, "json", false, "Print the reports as JSON")
	scenarioCmd.Flags().BoolVar(&scenarioRecord, "record", false, "Record the run in the history store")
	_ = scenarioCmd.MarkFlagRequired("fail")
	rootCmd.AddCommand(scenarioCmd)
}

var (
	scenarioFail   string
	scenarioSettle time.Duration
	scenarioJSON   bool
	scenarioRecord bool
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario --fail NODE",
	Short: "Fail and recover a node, reporting the mesh at each step",
	Long: `Start the topology and wait for handshakes, fail one node, then recover it and
wait again. A status report is taken after each step.`,
	Args: cobra.NoArgs,
	RunE: runScenario,
}

type scenarioReport struct {
	Label     string               `json:"label"`
	Converged bool                 `json:"converged"`
	Status    domain.NetworkStatus `json:"status"`
}

func runScenario(cmd *cobra.Command, args []string) error {
	d, err := newDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if scenarioSettle > 0 {
		d.Config.Simulation.Settle = scenarioSettle.String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if scenarioRecord {
		if _, err := d.BeginRun("scenario"); err != nil {
			return err
		}
	}

	d.Start()
	var reports []scenarioReport

	steps := []struct {
		label string
		apply func(string) error
	}{
		{"baseline", nil},
		{"failed", d.SimulateFailure},
		{"recovered", d.SimulateRecovery},
	}
	for _, step := range steps {
		if step.apply != nil {
			if err := step.apply(scenarioFail); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", step.label, scenarioFail)
		}

		// A failed node never converges; report it right away.
		converged := false
		if step.label != "failed" {
			pb := newProgressBar(os.Stderr)
			converged = d.Settle(ctx, pb.callback)
			pb.finish(converged)
		}

		st, err := d.Snapshot(step.label)
		if err != nil {
			return err
		}
		reports = append(reports, scenarioReport{Label: step.label, Converged: converged, Status: st})
	}

	d.Network.Stop()
	if scenarioRecord {
		if err := d.FinishRun(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "recorded run %s\n", d.Run().ID)
	}

	if scenarioJSON {
		return printJSON(os.Stdout, reports)
	}
	return printScenario(reports)
}

func printScenario(reports []scenarioReport) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tRUNNING\tCONNECTED PAIRS\tHANDSHAKES\tPACKETS\tBYTES")
	for _, r := range reports {
		var running int
		var handshakes int64
		for _, ns := range r.Status.Nodes {
			if ns.Running {
				running++
			}
			for _, ps := range ns.Peers {
				handshakes += ps.Metrics.HandshakesCompleted
			}
		}
		s := r.Status.Statistics
		fmt.Fprintf(w, "%s\t%d/%d\t%.1f\t%d\t%d\t%s\n",
			r.Label, running, s.TotalNodes, s.ConnectedPairs, handshakes, s.TotalPackets, domain.HumanSize(s.TotalBytes))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	return printStatus(os.Stdout, reports[len(reports)-1].Status)
}
