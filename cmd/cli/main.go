package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host  string
	guest bool
)

var rootCmd = &cobra.Command{
	Use:   "tournament-cli",
	Short: "A CLI to interact with the tournament server",
	Long: `A command-line interface for reading brackets and standings and for
submitting match results to a running tournament server.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().BoolVar(&guest, "guest", true, "Log in as the guest user before authenticated requests")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
