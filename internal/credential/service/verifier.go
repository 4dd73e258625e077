package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"identix/internal/credential/digest"
	"identix/internal/credential/metrics"
	"identix/internal/credential/models"
	"identix/internal/credential/store"
	"identix/internal/credential/token"
	"identix/pkg/platform/audit"
	"identix/pkg/platform/tracer"
)

// Verifier checks a (student identifier, token) pair against metadata and
// the ledger. It never mutates state.
type Verifier struct {
	store  store.Store
	ledger Ledger

	auditor AuditLogger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

type VerifierOption func(*Verifier)

func WithVerifierLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

func WithVerifierAuditor(a AuditLogger) VerifierOption {
	return func(v *Verifier) {
		if a != nil {
			v.auditor = a
		}
	}
}

func WithVerifierMetrics(m *metrics.Metrics) VerifierOption {
	return func(v *Verifier) { v.metrics = m }
}

func WithVerifierTracer(t tracer.Tracer) VerifierOption {
	return func(v *Verifier) {
		if t != nil {
			v.tracer = t
		}
	}
}

func NewVerifier(s store.Store, l Ledger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:   s,
		ledger:  l,
		auditor: audit.NewLogger(nil, nil),
		tracer:  tracer.NewNoop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify resolves rawToken and proves the stored fingerprint against the
// ledger. The returned error is reserved for unusable input (a blank
// identifier); every other condition, including transport failures, is an
// Outcome on the result.
func (v *Verifier) Verify(ctx context.Context, identifier, rawToken string) (models.VerificationResult, error) {
	supplied, err := digest.CanonicalIdentifier(identifier)
	if err != nil {
		return models.VerificationResult{}, err
	}

	start := time.Now()
	ctx, span := v.tracer.Start(ctx, tracer.SpanVerify)
	res := v.verify(ctx, supplied, rawToken)
	span.SetAttributes(tracer.String(tracer.AttrOutcome, string(res.Outcome)))
	if res.Metadata != nil {
		span.SetAttributes(tracer.String(tracer.AttrIdentifierHash, res.Metadata.IdentifierHash.String()))
	}
	span.End(res.Err)

	v.metrics.IncVerification(string(res.Outcome))
	v.metrics.ObserveVerify(time.Since(start))
	v.record(ctx, res)
	return res, nil
}

func (v *Verifier) verify(ctx context.Context, supplied, rawToken string) models.VerificationResult {
	tok, err := token.Parse(rawToken)
	if err != nil {
		return models.VerificationResult{Outcome: models.OutcomeTokenNotFound}
	}

	meta, err := v.store.FindByToken(ctx, tok)
	if errors.Is(err, store.ErrNotFound) {
		return models.VerificationResult{Outcome: models.OutcomeTokenNotFound}
	}
	if err != nil {
		return models.VerificationResult{Outcome: models.OutcomeTransportError, Err: err}
	}

	if supplied != meta.StudentIdentifier {
		return models.VerificationResult{Outcome: models.OutcomeIdentifierMismatch}
	}

	// Anchor the lookup to the identifier recorded at issuance.
	identifierHash := digest.MustIdentifierHash(meta.StudentIdentifier)
	scan, err := v.ledger.Scan(ctx, identifierHash, meta.DocumentFingerprint)
	if err != nil {
		return models.VerificationResult{Outcome: models.OutcomeTransportError, Metadata: meta, Err: err}
	}
	if !scan.Matched {
		return models.VerificationResult{Outcome: models.OutcomeLedgerMismatch, Metadata: meta}
	}

	index := scan.Index
	if index != meta.SequenceIndex {
		v.logger.InfoContext(ctx, "ledger match at unexpected index",
			"ledger_reference", meta.LedgerReference,
			"matched_index", index,
		)
	}
	// The ledger flag only speaks for the entry this token was issued
	// against; a matching earlier entry may belong to another credential.
	outcome := models.OutcomeValid
	if meta.Status == models.StatusRevoked || (scan.Revoked && index == meta.SequenceIndex) {
		outcome = models.OutcomeRevoked
	}
	return models.VerificationResult{Outcome: outcome, Metadata: meta, MatchedIndex: &index}
}

func (v *Verifier) record(ctx context.Context, res models.VerificationResult) {
	attrs := []any{"outcome", string(res.Outcome)}
	if res.Metadata != nil {
		attrs = append(attrs,
			"identifier_hash", res.Metadata.IdentifierHash.String(),
			"token", string(res.Metadata.Token),
		)
	}

	switch res.Outcome {
	case models.OutcomeValid:
		v.auditor.Log(ctx, audit.EventCredentialVerified, attrs...)
	case models.OutcomeTransportError:
		v.logger.WarnContext(ctx, "verification inconclusive", append(attrs, "error", res.Err)...)
	default:
		v.auditor.Log(ctx, audit.EventVerificationRejected, append(attrs, "reason", string(res.Outcome))...)
	}
}
