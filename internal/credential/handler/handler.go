package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"identix/internal/credential/models"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/httputil"
	"identix/pkg/platform/validation"
	"identix/pkg/requestcontext"
)

// DefaultMaxUploadBytes bounds the multipart body, leaving room for form
// fields on top of the largest accepted document.
const DefaultMaxUploadBytes = 10<<20 + 64<<10

// Issuance is the issuer-facing port.
type Issuance interface {
	Issue(ctx context.Context, req models.IssueRequest) (*models.CredentialMetadata, error)
	Revoke(ctx context.Context, rawToken, issuerID string) (*models.CredentialMetadata, error)
	ListByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error)
}

// Verification is the public-facing port.
type Verification interface {
	Verify(ctx context.Context, identifier, rawToken string) (models.VerificationResult, error)
}

// Handler exposes credential issuance and verification over HTTP.
type Handler struct {
	issuance       Issuance
	verification   Verification
	logger         *slog.Logger
	maxUploadBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxUploadBytes overrides the multipart body limit.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// New creates a credential handler.
func New(issuance Issuance, verification Verification, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		issuance:       issuance,
		verification:   verification,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public verify route. Everything else, including the
// listing (it returns lookup tokens), is mounted behind requireIssuer, which
// must place the issuer ID in the request context.
func (h *Handler) Register(r chi.Router, requireIssuer func(http.Handler) http.Handler) {
	r.Post("/verify", h.HandleVerify)
	r.Group(func(r chi.Router) {
		r.Use(requireIssuer)
		r.Get("/credentials", h.HandleList)
		r.Post("/credentials", h.HandleIssue)
		r.Post("/credentials/{token}/revoke", h.HandleRevoke)
	})
}

// IssueRequest is the multipart issuance form.
type IssueRequest struct {
	StudentID  string `validate:"required,notblank,max=64"`
	Document   []byte
	FileName   string `validate:"max=255"`
	HolderName string `validate:"max=200"`
	Course     string `validate:"max=200"`
	University string `validate:"max=200"`
	Department string `validate:"max=200"`
}

func (r *IssueRequest) Normalize() {
	validation.TrimAll(&r.StudentID, &r.HolderName, &r.Course, &r.University, &r.Department)
}

func (r *IssueRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if len(r.Document) == 0 {
		return dErrors.New(dErrors.CodeValidation, "document is required")
	}
	return nil
}

func bindIssueForm(r *http.Request, req *IssueRequest) error {
	req.StudentID = r.FormValue("student_id")
	req.HolderName = r.FormValue("holder_name")
	req.Course = r.FormValue("course")
	req.University = r.FormValue("university")
	req.Department = r.FormValue("department")

	file, header, err := r.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()
	req.FileName = header.Filename
	req.Document, err = io.ReadAll(file)
	return err
}

// VerifyRequest is the public verification body.
type VerifyRequest struct {
	StudentID string `json:"student_id" validate:"required,notblank,max=64"`
	Token     string `json:"token" validate:"required,max=32"`
}

func (r *VerifyRequest) Normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Token = strings.ToUpper(strings.TrimSpace(r.Token))
}

func (r *VerifyRequest) Validate() error {
	return validation.Validate(r)
}

// CredentialResponse is the public view of a credential record.
type CredentialResponse struct {
	ID                  string     `json:"id"`
	Token               string     `json:"token"`
	StudentID           string     `json:"student_id"`
	IdentifierHash      string     `json:"identifier_hash"`
	DocumentFingerprint string     `json:"document_fingerprint"`
	SequenceIndex       uint64     `json:"sequence_index"`
	LedgerReference     string     `json:"ledger_reference"`
	DocumentLocation    string     `json:"document_location"`
	FileName            string     `json:"file_name,omitempty"`
	HolderName          string     `json:"holder_name,omitempty"`
	Course              string     `json:"course,omitempty"`
	University          string     `json:"university,omitempty"`
	Department          string     `json:"department,omitempty"`
	IssuerID            string     `json:"issuer_id"`
	IssuedAt            time.Time  `json:"issued_at"`
	Status              string     `json:"status"`
	RevokedAt           *time.Time `json:"revoked_at,omitempty"`
}

func toCredentialResponse(m *models.CredentialMetadata) CredentialResponse {
	return CredentialResponse{
		ID:                  m.ID.String(),
		Token:               string(m.Token),
		StudentID:           m.StudentIdentifier,
		IdentifierHash:      m.IdentifierHash.String(),
		DocumentFingerprint: m.DocumentFingerprint.String(),
		SequenceIndex:       m.SequenceIndex,
		LedgerReference:     m.LedgerReference,
		DocumentLocation:    m.DocumentLocation,
		FileName:            m.FileName,
		HolderName:          m.Details.HolderName,
		Course:              m.Details.Course,
		University:          m.Details.University,
		Department:          m.Details.Department,
		IssuerID:            m.IssuerID,
		IssuedAt:            m.IssuedAt,
		Status:              string(m.Status),
		RevokedAt:           m.RevokedAt,
	}
}

// ListResponse is the holder listing.
type ListResponse struct {
	StudentID   string               `json:"student_id"`
	Credentials []CredentialResponse `json:"credentials"`
}

// VerifyResponse reports a verification outcome. Valid is true only for the
// valid outcome; transport_error is inconclusive and never a verdict.
type VerifyResponse struct {
	Valid        bool                `json:"valid"`
	Outcome      string              `json:"outcome"`
	MatchedIndex *uint64             `json:"matched_index,omitempty"`
	Credential   *CredentialResponse `json:"credential,omitempty"`
}

// HandleIssue uploads the document, anchors it on the ledger and returns the
// new credential with its lookup token.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := httputil.RequireIssuerID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeMultipartAndPrepare[IssueRequest](w, r, h.maxUploadBytes, bindIssueForm, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.issuance.Issue(ctx, models.IssueRequest{
		Identifier: req.StudentID,
		Document:   req.Document,
		FileName:   req.FileName,
		IssuerID:   issuerID,
		Details: models.Details{
			HolderName: req.HolderName,
			Course:     req.Course,
			University: req.University,
			Department: req.Department,
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue credential",
			"error", err,
			"issuer_id", issuerID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(record))
}

// HandleRevoke marks a credential revoked.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := httputil.RequireIssuerID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.issuance.Revoke(ctx, chi.URLParam(r, "token"), issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke credential",
			"error", err,
			"issuer_id", issuerID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(record))
}

// HandleList returns every credential issued to a student, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
	if studentID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "student_id is required"))
		return
	}

	records, err := h.issuance.ListByIdentifier(ctx, studentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list credentials",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{StudentID: studentID, Credentials: make([]CredentialResponse, 0, len(records))}
	for _, rec := range records {
		resp.Credentials = append(resp.Credentials, toCredentialResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleVerify checks a student identifier and token against the ledger.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxBodySize)
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.verification.Verify(ctx, req.StudentID, req.Token)
	if err != nil {
		h.logger.WarnContext(ctx, "verification rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := VerifyResponse{
		Valid:        res.Valid(),
		Outcome:      string(res.Outcome),
		MatchedIndex: res.MatchedIndex,
	}
	if res.Metadata != nil && (res.Valid() || res.Outcome == models.OutcomeRevoked) {
		cred := toCredentialResponse(res.Metadata)
		resp.Credential = &cred
	}

	status := http.StatusOK
	if res.Inconclusive() {
		h.logger.WarnContext(ctx, "verification inconclusive",
			"error", res.Err,
			"request_id", requestID,
		)
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
