package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/tutu-network/wgsim/internal/daemon"
	"github.com/tutu-network/wgsim/internal/domain"
	"github.com/tutu-network/wgsim/internal/topofile"
)

var errNoTopology = errors.New("no topology file given (use --topology)")

// loadConfig reads --config, or the default config file.
func loadConfig() (daemon.Config, error) {
	if configPath != "" {
		return daemon.LoadConfigFile(configPath)
	}
	return daemon.LoadConfig()
}

// newDaemon loads the config and the --topology file and builds a daemon.
func newDaemon() (*daemon.Daemon, error) {
	if topologyPath == "" {
		return nil, errNoTopology
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	topo, err := topofile.Load(topologyPath)
	if err != nil {
		return nil, err
	}
	d, err := daemon.New(topo, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize daemon: %w", err)
	}
	return d, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printStatus writes the node table, the link table and the totals.
func printStatus(w io.Writer, st domain.NetworkStatus) error {
	names := make([]string, 0, len(st.Nodes))
	for name := range st.Nodes {
		names = append(names, name)
	}
	slices.Sort(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tROLE\tIP\tRUNNING\tCONNECTED")
	for _, name := range names {
		ns := st.Nodes[name]
		connected := 0
		for _, ps := range ns.Peers {
			if ps.IsConnected() {
				connected++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d/%d\n", name, ns.Role, ns.IP, ns.Running, connected, len(ns.Peers))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FROM\tTO\tLATENCY\tLOSS\tBANDWIDTH\tSTATE")
	for _, c := range st.Connections {
		fmt.Fprintf(tw, "%s\t%s\t%.1f ms\t%.1f%%\t%.0f Mbps\t%s\n",
			c.From, c.To, c.LatencyMs, c.PacketLoss*100, c.BandwidthMbps, c.State)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := st.Statistics
	_, err := fmt.Fprintf(w, "\n%d nodes, %d edges, %.1f connected pairs, %d packets (%s)\n",
		s.TotalNodes, s.TotalEdges, s.ConnectedPairs, s.TotalPackets, domain.HumanSize(s.TotalBytes))
	return err
}
