// Package main is the single-binary entrypoint for wgsim.
// wgsim simulates WireGuard meshes in memory: no sockets, no kernel.
package main

import "github.com/tutu-network/wgsim/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
