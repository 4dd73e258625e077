package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"identix/internal/credential/digest"
	"identix/internal/credential/metrics"
	"identix/internal/credential/models"
	"identix/internal/credential/storage"
	"identix/internal/credential/store"
	"identix/internal/credential/token"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/audit"
	"identix/pkg/platform/tracer"
	"identix/pkg/platform/validation"
)

const (
	// MaxTokenAttempts bounds token regeneration after duplicate-token rejections.
	MaxTokenAttempts        = 5
	DefaultMaxDocumentBytes = 10 << 20
	DefaultUploadTimeout    = 30 * time.Second
)

// Issuer runs the issuance state machine:
// upload, hash, ledger write, ledger confirm, metadata write.
type Issuer struct {
	uploader storage.Uploader
	ledger   Ledger
	store    store.Store
	tokens   TokenSource

	auditor  AuditLogger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
	maxBytes int
	// uploadTimeout bounds the storage call.
	uploadTimeout time.Duration
}

type IssuerOption func(*Issuer)

func WithIssuerLogger(l *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		if l != nil {
			i.logger = l
		}
	}
}

func WithIssuerAuditor(a AuditLogger) IssuerOption {
	return func(i *Issuer) {
		if a != nil {
			i.auditor = a
		}
	}
}

func WithIssuerMetrics(m *metrics.Metrics) IssuerOption {
	return func(i *Issuer) { i.metrics = m }
}

func WithIssuerTracer(t tracer.Tracer) IssuerOption {
	return func(i *Issuer) {
		if t != nil {
			i.tracer = t
		}
	}
}

func WithTokenSource(ts TokenSource) IssuerOption {
	return func(i *Issuer) {
		if ts != nil {
			i.tokens = ts
		}
	}
}

func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func WithIDGenerator(newID func() uuid.UUID) IssuerOption {
	return func(i *Issuer) {
		if newID != nil {
			i.newID = newID
		}
	}
}

func WithMaxDocumentBytes(n int) IssuerOption {
	return func(i *Issuer) {
		if n > 0 {
			i.maxBytes = n
		}
	}
}

func WithUploadTimeout(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.uploadTimeout = d
		}
	}
}

func NewIssuer(uploader storage.Uploader, l Ledger, s store.Store, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		uploader: uploader,
		ledger:   l,
		store:    s,
		tokens:   token.NewGenerator(),
		auditor:  audit.NewLogger(nil, nil),
		tracer:   tracer.NewNoop(),
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.New,
		maxBytes: DefaultMaxDocumentBytes,

		uploadTimeout: DefaultUploadTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// issuance tracks one run through the state machine.
type issuance struct {
	issuer *Issuer
	span   tracer.Span
	state  models.IssuanceState
	attrs  []any
}

func (r *issuance) transition(ctx context.Context, to models.IssuanceState) {
	from := r.state
	r.state = to
	r.issuer.metrics.IncIssuance(string(to))
	r.span.AddEvent(tracer.EventStateChanged, tracer.String(tracer.AttrState, string(to)))
	r.issuer.logger.DebugContext(ctx, "issuance state changed",
		append([]any{"from", string(from), "to", string(to)}, r.attrs...)...)
}

func (r *issuance) fail(ctx context.Context, err error) error {
	failedIn := r.state
	r.transition(ctx, models.StateFailed)
	r.issuer.auditor.Log(ctx, audit.EventIssuanceFailed,
		append([]any{"reason", string(dErrors.CodeOf(err)), "failed_state", string(failedIn)}, r.attrs...)...)
	return err
}

// Issue uploads the document, anchors its fingerprint on the ledger and
// stores the metadata under a fresh token. No partial result is returned: on
// error the credential is not issued, though an uploaded document or an
// orphan ledger entry may remain.
func (i *Issuer) Issue(ctx context.Context, req models.IssueRequest) (_ *models.CredentialMetadata, err error) {
	start := time.Now()
	defer func() {
		if err == nil {
			i.metrics.ObserveIssue(time.Since(start))
		}
	}()

	if req.IssuerID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "issuer authorization required")
	}
	identifier, err := digest.CanonicalIdentifier(req.Identifier)
	if err != nil {
		return nil, err
	}
	if err := i.checkRequest(req); err != nil {
		return nil, err
	}

	ctx, span := i.tracer.Start(ctx, tracer.SpanIssue,
		tracer.Int64(tracer.AttrDocumentBytes, int64(len(req.Document))))
	defer func() { span.End(err) }()

	run := &issuance{issuer: i, span: span, state: models.StateIdle, attrs: []any{"issuer_id", req.IssuerID}}

	run.transition(ctx, models.StateUploading)
	location, err := i.upload(ctx, req)
	if err != nil {
		return nil, run.fail(ctx, err)
	}

	run.transition(ctx, models.StateHashing)
	fingerprint := digest.Fingerprint(req.Document)
	identifierHash := digest.MustIdentifierHash(identifier)
	run.attrs = append(run.attrs, "identifier_hash", identifierHash.String())
	span.SetAttributes(tracer.String(tracer.AttrIdentifierHash, identifierHash.String()))

	run.transition(ctx, models.StateLedgerWriting)
	index, ref, err := i.ledger.Write(ctx, identifierHash, fingerprint)
	if err != nil {
		return nil, run.fail(ctx, dErrors.Wrap(err, dErrors.CodeLedgerWrite, "ledger write failed"))
	}
	span.SetAttributes(tracer.Int64(tracer.AttrLedgerIndex, int64(index)))

	run.transition(ctx, models.StateLedgerConfirming)
	if err := i.confirm(ctx, identifierHash, index, fingerprint); err != nil {
		i.logOrphan(ctx, ref, identifierHash, index, err)
		return nil, run.fail(ctx, err)
	}

	run.transition(ctx, models.StateMetadataWriting)
	record := &models.CredentialMetadata{
		ID:                  i.newID(),
		StudentIdentifier:   identifier,
		IdentifierHash:      identifierHash,
		DocumentFingerprint: fingerprint,
		SequenceIndex:       index,
		LedgerReference:     ref,
		DocumentLocation:    location,
		FileName:            req.FileName,
		Details:             req.Details,
		IssuerID:            req.IssuerID,
		IssuedAt:            i.now().UTC(),
		Status:              models.StatusValid,
	}
	if err := i.putWithFreshToken(ctx, record); err != nil {
		i.logOrphan(ctx, ref, identifierHash, index, err)
		return nil, run.fail(ctx, err)
	}

	run.transition(ctx, models.StateDone)
	i.auditor.Log(ctx, audit.EventCredentialIssued,
		"identifier_hash", identifierHash.String(),
		"issuer_id", req.IssuerID,
		"token", string(record.Token),
		"ledger_reference", ref,
	)
	return record, nil
}

func (i *Issuer) checkRequest(req models.IssueRequest) error {
	if len(req.Document) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "document is required")
	}
	if len(req.Document) > i.maxBytes {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("document exceeds %d bytes", i.maxBytes))
	}
	if err := validation.CheckStringLength("file_name", req.FileName, validation.MaxFileNameLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("issuer_id", req.IssuerID, validation.MaxIssuerIDLength); err != nil {
		return err
	}
	return validation.Validate(req.Details)
}

func (i *Issuer) upload(ctx context.Context, req models.IssueRequest) (string, error) {
	ctx, span := i.tracer.Start(ctx, tracer.SpanUpload,
		tracer.Int64(tracer.AttrDocumentBytes, int64(len(req.Document))))
	ctx, cancel := context.WithTimeout(ctx, i.uploadTimeout)
	defer cancel()
	location, err := i.uploader.Upload(ctx, req.Document, req.FileName)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeStorageUpload, "document upload failed")
	}
	span.End(err)
	return location, err
}

// confirm reads the new entry back before any token is handed out.
func (i *Issuer) confirm(ctx context.Context, identifierHash models.Hash256, index uint64, fingerprint models.Hash256) error {
	ok, err := i.ledger.Read(ctx, identifierHash, index, fingerprint)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeLedgerWrite, "ledger write could not be confirmed")
	}
	if !ok {
		return dErrors.New(dErrors.CodeLedgerWrite, "ledger write not found at assigned index")
	}
	return nil
}

// putWithFreshToken retries token generation on duplicate-token rejections.
// A duplicate token never reaches the caller.
func (i *Issuer) putWithFreshToken(ctx context.Context, record *models.CredentialMetadata) error {
	for attempt := 1; attempt <= MaxTokenAttempts; attempt++ {
		tok, err := i.tokens.New()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeMetadataWrite, "token generation failed")
		}
		record.Token = tok

		err = i.store.Put(ctx, record)
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrDuplicateToken) {
			i.metrics.IncTokenCollision()
			i.logger.WarnContext(ctx, "token collision, regenerating", "attempt", attempt)
			continue
		}
		return dErrors.Wrap(err, dErrors.CodeMetadataWrite, "metadata write failed")
	}
	return dErrors.New(dErrors.CodeMetadataWrite, "could not allocate a unique token")
}

func (i *Issuer) logOrphan(ctx context.Context, ref string, identifierHash models.Hash256, index uint64, cause error) {
	i.logger.ErrorContext(ctx, "ledger entry orphaned: no metadata references it",
		"ledger_reference", ref,
		"identifier_hash", identifierHash.String(),
		"sequence_index", index,
		"error", cause,
	)
}

// Revoke marks a credential revoked. The metadata status is authoritative;
// the ledger revoke flag is set best effort and a failure there is logged.
func (i *Issuer) Revoke(ctx context.Context, rawToken, issuerID string) (_ *models.CredentialMetadata, err error) {
	if issuerID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "issuer authorization required")
	}
	tok, err := token.Parse(rawToken)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}

	ctx, span := i.tracer.Start(ctx, tracer.SpanRevoke)
	defer func() { span.End(err) }()

	record, err := i.store.FindByToken(ctx, tok)
	if errors.Is(err, store.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMetadataRead, "metadata lookup failed")
	}
	if record.Status == models.StatusRevoked {
		return record, nil
	}

	at := i.now().UTC()
	if err := i.store.SetStatus(ctx, tok, models.StatusRevoked, at); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMetadataWrite, "revocation failed")
	}
	record.Status = models.StatusRevoked
	record.RevokedAt = &at

	if err := i.ledger.Revoke(ctx, record.IdentifierHash, record.SequenceIndex); err != nil {
		i.logger.WarnContext(ctx, "ledger revoke flag not set",
			"ledger_reference", record.LedgerReference,
			"error", err,
		)
	}

	i.auditor.Log(ctx, audit.EventCredentialRevoked,
		"identifier_hash", record.IdentifierHash.String(),
		"issuer_id", issuerID,
		"token", string(record.Token),
	)
	return record, nil
}

// ListByIdentifier returns every credential issued to identifier, newest first.
func (i *Issuer) ListByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error) {
	canonical, err := digest.CanonicalIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	records, err := i.store.QueryByIdentifier(ctx, canonical)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeMetadataRead, "metadata lookup failed")
	}
	return records, nil
}
