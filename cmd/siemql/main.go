// Command siemql turns analyst questions into log store searches.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "siemql",
		Short: "siemql - natural language search over security logs",
		Long: `siemql turns questions like "failed logins per ip in the last 6 hours"
into Elasticsearch queries and aggregations, runs them and shows the results.
Follow-up questions inherit users, addresses and time ranges from earlier ones.

Run 'siemql repl' for an interactive session.
Run 'siemql serve' to start the web front end.`,
		SilenceUsage: true,
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "config file path")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	root.PersistentFlags().String("format", "text", "output format (text, json)")

	root.AddCommand(
		replCmd(),
		askCmd(),
		insertCmd(),
		serveCmd(),
		auditCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "siemql %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
