package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutu-network/wgsim/internal/domain"
)

func init() {
	pathCmd.Flags().BoolVar(&pathJSON, "json", false, "Print the path as JSON")
	rootCmd.AddCommand(pathCmd)
}

var pathJSON bool

var pathCmd = &cobra.Command{
	Use:   "path SRC DST",
	Short: "Show the shortest hop path between two nodes",
	Long:  `Show the fewest-hop path between two nodes and the sum of the base link latencies along it.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runPath,
}

func runPath(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]

	d, err := newDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	path, ok := d.FindPath(src, dst)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", domain.ErrNoPath, src, dst)
	}
	latency := d.PathLatency(path)

	if pathJSON {
		return printJSON(os.Stdout, map[string]any{
			"path":       path,
			"hops":       len(path) - 1,
			"latency_ms": latency,
		})
	}
	fmt.Printf("%s  (%d hops, %.1f ms)\n", strings.Join(path, " -> "), len(path)-1, latency)
	return nil
}
