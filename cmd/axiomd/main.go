// Command axiomd runs one node of the fact ledger / chain / gossip
// network: serve starts the node, status queries a running node's
// /debug/idle_state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "axiomd",
	Short: "Axiom node daemon",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
