package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"identix/internal/app"
	"identix/internal/credential/workers/reconcile"
	"identix/internal/platform/config"
	"identix/internal/platform/logger"
)

type orphanRow struct {
	LedgerReference     string    `json:"ledger_reference"`
	DocumentFingerprint string    `json:"document_fingerprint"`
	RecordedAt          time.Time `json:"recorded_at"`
}

func newReconcileCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one orphan sweep against the configured backends",
		Long: `reconcile lists ledger records that no metadata record points at.
Backends are selected with the same environment variables as the server
(LEDGER_BACKEND, METADATA_BACKEND, DATABASE_URL, ...). In-memory backends
are rejected: a fresh process would sweep empty state. The command exits
non-zero when orphans are found.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if err := requirePersistentBackends(cfg); err != nil {
				return err
			}
			cfg.Audit.KafkaBrokers = nil
			log := logger.NewWithLevel(cfg.LogLevel)

			a, err := app.New(cmd.Context(), cfg, log, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // nothing to do on close failure

			sweep, err := a.Reconciler(reconcile.WithGracePeriod(grace))
			if err != nil {
				return err
			}
			res, err := sweep.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([]orphanRow, 0, len(res.Orphans))
			for _, o := range res.Orphans {
				rows = append(rows, orphanRow{
					LedgerReference:     o.Reference,
					DocumentFingerprint: o.Record.DocumentFingerprint.String(),
					RecordedAt:          o.Record.RecordedAt,
				})
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(w, map[string]any{"scanned": res.Scanned, "skipped": res.Skipped, "orphans": rows}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(w, "Scanned %d ledger records (%d inside grace period)\n", res.Scanned, res.Skipped)
				if len(rows) > 0 {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "LEDGER REFERENCE\tFINGERPRINT\tRECORDED AT")
					for _, r := range rows {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", r.LedgerReference, r.DocumentFingerprint, r.RecordedAt.Format(time.RFC3339))
					}
					_ = tw.Flush()
				}
			}
			if len(rows) > 0 {
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%d orphan ledger records found\n", len(rows))
				return fmt.Errorf("orphans found")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 5*time.Minute, "Ignore records younger than this")
	return cmd
}

func requirePersistentBackends(cfg config.Server) error {
	if cfg.Ledger.Backend == config.BackendMemory {
		return fmt.Errorf("reconcile needs a persistent ledger: LEDGER_BACKEND=%s only lives inside the server process", config.BackendMemory)
	}
	if cfg.Metadata.Backend == config.BackendMemory {
		return fmt.Errorf("reconcile needs a persistent metadata store: METADATA_BACKEND=%s only lives inside the server process", config.BackendMemory)
	}
	return nil
}
