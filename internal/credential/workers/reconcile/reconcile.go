// Package reconcile finds ledger records that no metadata record points at.
// They are left behind when issuance fails between the ledger write and the
// metadata write, and are reported rather than repaired.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"identix/internal/credential/ledger"
	"identix/internal/credential/metrics"
	"identix/internal/credential/models"
	"identix/pkg/platform/audit"
)

// LedgerIndex is the lookup half of the metadata store.
type LedgerIndex interface {
	HasLedgerEntry(ctx context.Context, identifierHash models.Hash256, index uint64) (bool, error)
}

// AuditLogger records orphan findings.
type AuditLogger interface {
	Log(ctx context.Context, event audit.AuditEvent, attributes ...any)
}

// Orphan is a ledger record without metadata.
type Orphan struct {
	Reference string
	Record    models.CredentialRecord
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Skipped int
	Orphans []Orphan
}

// Service periodically sweeps the ledger for orphans.
type Service struct {
	ledger   ledger.Enumerator
	index    LedgerIndex
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	logger   *slog.Logger
	auditor  AuditLogger
	metrics  *metrics.Metrics
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithGracePeriod skips records younger than d, which may still be waiting
// for their metadata write.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.grace = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditor(a AuditLogger) Option {
	return func(s *Service) {
		if a != nil {
			s.auditor = a
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a sweep over an enumerable ledger and a metadata index.
func New(l ledger.Enumerator, index LedgerIndex, opts ...Option) (*Service, error) {
	if l == nil || index == nil {
		return nil, fmt.Errorf("ledger and metadata index are required")
	}
	svc := &Service{
		ledger:   l,
		index:    index,
		interval: 15 * time.Minute,
		grace:    5 * time.Minute,
		now:      time.Now,
		logger:   slog.Default(),
		auditor:  audit.NewLogger(nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs sweeps until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "orphan sweep failed", "error", err)
			}
			s.logger.InfoContext(ctx, "orphan sweep finished",
				"scanned", res.Scanned,
				"orphans", len(res.Orphans),
			)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce walks every ledger record once. Lookup failures are collected and
// returned together; the sweep continues past them.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	cutoff := s.now().Add(-s.grace)
	var res Result
	var errs []error

	for rec, err := range s.ledger.Records(ctx) {
		if err != nil {
			errs = append(errs, fmt.Errorf("enumerate ledger: %w", err))
			break
		}
		if !rec.RecordedAt.IsZero() && rec.RecordedAt.After(cutoff) {
			res.Skipped++
			continue
		}
		res.Scanned++

		ref := ledger.Reference(rec.IdentifierHash, rec.SequenceIndex)
		found, err := s.index.HasLedgerEntry(ctx, rec.IdentifierHash, rec.SequenceIndex)
		if err != nil {
			errs = append(errs, fmt.Errorf("lookup %s: %w", ref, err))
			continue
		}
		if found {
			continue
		}

		res.Orphans = append(res.Orphans, Orphan{Reference: ref, Record: rec})
		s.logger.WarnContext(ctx, "orphan ledger record",
			"ledger_reference", ref,
			"document_fingerprint", rec.DocumentFingerprint.String(),
		)
		s.auditor.Log(ctx, audit.EventOrphanDetected,
			"identifier_hash", rec.IdentifierHash,
			"ledger_reference", ref,
			"reason", "no metadata record for ledger entry",
		)
	}

	s.metrics.AddOrphans(len(res.Orphans))
	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
