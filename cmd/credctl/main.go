// Command credctl is the operator CLI for identix: it computes credential
// hashes locally, mints lookup and issuer tokens, checks credentials against
// a running server and runs one-shot orphan sweeps.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "credctl",
		Short:        "identix operator CLI",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	root.AddCommand(
		newHashCmd(),
		newTokenCmd(),
		newIssuerTokenCmd(),
		newVerifyCmd(),
		newReconcileCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
