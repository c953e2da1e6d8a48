package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tutu-network/wgsim/internal/domain"
	"github.com/tutu-network/wgsim/internal/infra/sqlite"
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show the snapshots and fault events of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func openHistory() (*sqlite.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return sqlite.Open(cfg.History.Dir)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded. Use 'wgsim run --record' to record one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tTOPOLOGY\tNODES\tEDGES\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Command, r.Topology, r.Nodes, r.Edges,
			r.StartedAt.Format("2006-01-02 15:04:05"), runDuration(r))
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	snaps, err := db.Snapshots(id)
	if err != nil {
		return err
	}
	events, err := db.Events(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run:      %s\n", run.ID)
	fmt.Printf("Command:  %s\n", run.Command)
	fmt.Printf("Topology: %s (%d nodes, %d edges)\n", run.Topology, run.Nodes, run.Edges)
	fmt.Printf("Seed:     %d\n", run.Seed)
	fmt.Printf("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n", runDuration(run))

	if len(snaps) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SNAPSHOT\tTAKEN\tCONNECTED PAIRS\tPACKETS\tBYTES")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\n",
				s.Label, s.TakenAt.Format("15:04:05.000"), s.ConnectedPairs, s.TotalPackets, domain.HumanSize(s.TotalBytes))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(events) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EVENT\tNODE\tAT")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ev.Kind, ev.Node, ev.At.Format("15:04:05.000"))
		}
		return w.Flush()
	}
	return nil
}

func runDuration(r domain.Run) string {
	if !r.Finished() {
		return "running"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
