package main

import (
	"hlsgate/internal/commands/fetch"
	"hlsgate/internal/commands/health"
	"hlsgate/internal/commands/stat"
	"hlsgate/internal/server"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:3000"

var rootCmd = &cobra.Command{
	Use:   "hlsgate",
	Short: "Hlsgate is an edge gateway for HLS/DASH media served from a blob store.",
	Long:  `Hlsgate serves byte-range-addressable media segments and playlist manifests from a backing blob store, enforcing a cross-origin allowlist and caching immutable segments at the edge.`,
}

var servePort int
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway.",
	Long:  `Run the gateway. Storage backend, CORS allowlist, and edge cache are configured through the environment (see .env).`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Serve(servePort)
	},
}

var statCmdFlags stat.Flags
var statCmd = &cobra.Command{
	Use:   "stat [key]",
	Short: "Probe object metadata through a running gateway.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stat.Run(statCmdFlags, args[0])
	},
}

var fetchCmdFlags fetch.Flags
var fetchCmd = &cobra.Command{
	Use:   "fetch [key]",
	Short: "Read an object through a running gateway.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fetch.Run(fetchCmdFlags, args[0])
	},
}

var healthCmdFlags health.Flags
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running gateway's health endpoint.",
	Run: func(cmd *cobra.Command, args []string) {
		health.Run(healthCmdFlags)
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, statCmd, fetchCmd, healthCmd)

	// =============
	// serveCmd flags
	// =============
	serveCmd.Flags().IntVarP(
		&servePort, "port", "p", 3000, "Port the gateway listens on",
	)

	// ============
	// statCmd flags
	// ============
	statCmd.Flags().StringVarP(
		&statCmdFlags.Server, "server", "s", defaultServer, "Gateway base URL",
	)

	// =============
	// fetchCmd flags
	// =============
	fetchCmd.Flags().StringVarP(
		&fetchCmdFlags.Server, "server", "s", defaultServer, "Gateway base URL",
	)
	fetchCmd.Flags().StringVarP(
		&fetchCmdFlags.Out, "out", "o", "", "Write the body to a file instead of stdout",
	)
	fetchCmd.Flags().StringVar(
		&fetchCmdFlags.Range, "range", "", "Range header to send, e.g. bytes=0-4095",
	)

	// ==============
	// healthCmd flags
	// ==============
	healthCmd.Flags().StringVarP(
		&healthCmdFlags.Server, "server", "s", defaultServer, "Gateway base URL",
	)

	rootCmd.Execute()
}
