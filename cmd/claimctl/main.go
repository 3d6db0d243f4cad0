// claimctl is the release tooling: policy validation, rule-pack signing and
// verification, and the latency budget gate. Every check exits non-zero on
// failure so CI pipelines can consume it directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "claimctl",
	Short:         "Release gates for claim compliance artifacts",
	Long:          "claimctl validates policy documents, signs and verifies rule packs, and enforces per-route latency budgets before a release ships.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
