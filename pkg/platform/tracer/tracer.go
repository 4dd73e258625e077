// Package tracer provides a lightweight tracing abstraction for the credential
// issuance and verification flows.
//
// Callers depend on the Tracer interface rather than OpenTelemetry directly.
// NoopTracer serves tests; OTelTracer adapts the global OpenTelemetry provider.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
//	ctx, span := tr.Start(ctx, tracer.SpanVerify,
//	    tracer.String(tracer.AttrIdentifierHash, idHash),
//	)
//	defer span.End(nil)
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanIssue       = "credential.issue"
	SpanVerify      = "credential.verify"
	SpanRevoke      = "credential.revoke"
	SpanLedgerWrite = "ledger.write"
	SpanLedgerScan  = "ledger.scan"
	SpanUpload      = "storage.upload"
)

// Attribute keys. Identifiers never appear in spans, only their hash.
const (
	AttrIdentifierHash = "credential.identifier_hash"
	AttrLedgerIndex    = "ledger.index"
	AttrScanMode       = "ledger.scan_mode"
	AttrScanLimit      = "ledger.scan_limit"
	AttrOutcome        = "verify.outcome"
	AttrState          = "issuance.state"
	AttrDocumentBytes  = "document.bytes"
)

// Event names.
const (
	EventStateChanged = "issuance.state_changed"
	EventLedgerMatch  = "ledger.match"
)
