// Package cli implements the wgsim command-line interface using Cobra.
// Each subcommand builds a simulated mesh from a topology file.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	topologyPath string
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "wgsim",
	Short: "wgsim: simulate WireGuard meshes in memory",
	Long: `wgsim runs a WireGuard mesh topology without sockets or kernel interfaces.
Nodes exchange simulated handshakes over links with latency, jitter and loss,
so a topology can be checked for convergence, paths and failure behaviour.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&topologyPath, "topology", "t", "", "Topology file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $WGSIM_HOME/config.toml)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
