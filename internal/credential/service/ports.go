package service

import (
	"context"

	"identix/internal/credential/ledger"
	"identix/internal/credential/models"
	"identix/internal/credential/token"
	"identix/pkg/platform/audit"
)

// Ledger is the subset of ledger.Client the orchestrators use.
type Ledger interface {
	Write(ctx context.Context, identifierHash, fingerprint models.Hash256) (uint64, string, error)
	Read(ctx context.Context, identifierHash models.Hash256, index uint64, expected models.Hash256) (bool, error)
	Scan(ctx context.Context, identifierHash, expected models.Hash256) (ledger.ScanResult, error)
	Revoke(ctx context.Context, identifierHash models.Hash256, index uint64) error
}

// TokenSource yields fresh candidate tokens. Uniqueness is the store's job.
type TokenSource interface {
	New() (token.Token, error)
}

// AuditLogger records audit events. *audit.Logger satisfies it.
type AuditLogger interface {
	Log(ctx context.Context, event audit.AuditEvent, attributes ...any)
}

var _ Ledger = (*ledger.Client)(nil)
