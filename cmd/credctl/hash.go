package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"identix/internal/credential/digest"
	"identix/internal/credential/ledger"
)

type hashOutput struct {
	StudentID           string `json:"student_id,omitempty"`
	IdentifierHash      string `json:"identifier_hash,omitempty"`
	Document            string `json:"document,omitempty"`
	DocumentFingerprint string `json:"document_fingerprint,omitempty"`
	LedgerReference     string `json:"ledger_reference,omitempty"`
}

func newHashCmd() *cobra.Command {
	var (
		studentID string
		document  string
		index     int64
	)
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute the identifier hash and document fingerprint",
		Long: `hash computes the values identix anchors on the ledger without
contacting any backend:

  credctl hash --student-id CS2024001 --document diploma.pdf --index 0`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if studentID == "" && document == "" {
				return fmt.Errorf("at least one of --student-id or --document is required")
			}
			var out hashOutput
			if studentID != "" {
				canonical, err := digest.CanonicalIdentifier(studentID)
				if err != nil {
					return err
				}
				key := digest.MustIdentifierHash(canonical)
				out.StudentID = canonical
				out.IdentifierHash = key.String()
				if index >= 0 {
					out.LedgerReference = ledger.Reference(key, uint64(index))
				}
			}
			if document != "" {
				data, err := os.ReadFile(document)
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				out.Document = document
				out.DocumentFingerprint = digest.Fingerprint(data).String()
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, out)
			}
			if out.IdentifierHash != "" {
				fmt.Fprintf(w, "Student ID:       %s\n", out.StudentID)
				fmt.Fprintf(w, "Identifier hash:  %s\n", out.IdentifierHash)
			}
			if out.LedgerReference != "" {
				fmt.Fprintf(w, "Ledger reference: %s\n", out.LedgerReference)
			}
			if out.DocumentFingerprint != "" {
				fmt.Fprintf(w, "Document:         %s\n", out.Document)
				fmt.Fprintf(w, "Fingerprint:      %s\n", out.DocumentFingerprint)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&studentID, "student-id", "", "Student identifier")
	cmd.Flags().StringVar(&document, "document", "", "Path to the credential document")
	cmd.Flags().Int64Var(&index, "index", -1, "Sequence index, to print the ledger reference")
	return cmd
}
