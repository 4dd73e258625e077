package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"identix/internal/credential/metrics"
	"identix/internal/credential/models"
	dErrors "identix/pkg/domain-errors"
	"identix/pkg/platform/circuit"
	"identix/pkg/platform/tracer"
)

// ScanMode selects how Scan probes indices.
type ScanMode string

const (
	// ScanSequential probes 0, 1, ... and stops at the first match or the
	// first transport error.
	ScanSequential ScanMode = "sequential"
	// ScanParallel probes every index concurrently and combines the results.
	ScanParallel ScanMode = "parallel"
)

const (
	DefaultMaxScan = 20
	DefaultTimeout = 5 * time.Second
)

var errCircuitOpen = errors.New("ledger read circuit open")

// ScanResult reports the first matching index. Matched=false with a nil
// error means every probed index was definitively absent or different.
type ScanResult struct {
	Matched bool
	Index   uint64
	Revoked bool
	Probed  int
}

// Client adds timeouts, breaker and scan semantics on top of a Backend.
type Client struct {
	backend Backend
	maxScan int
	mode    ScanMode
	timeout time.Duration
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

type Option func(*Client)

func WithMaxScan(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxScan = n
		}
	}
}

func WithScanMode(mode ScanMode) Option {
	return func(c *Client) {
		if mode == ScanSequential || mode == ScanParallel {
			c.mode = mode
		}
	}
}

// WithTimeout bounds every individual backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient wraps backend. Without WithBreaker a default breaker named
// "ledger" is used.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		maxScan: DefaultMaxScan,
		mode:    ScanSequential,
		timeout: DefaultTimeout,
		tracer:  tracer.NewNoop(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("ledger")
	}
	return c
}

// MaxScan returns the configured scan bound.
func (c *Client) MaxScan() int { return c.maxScan }

// Mode returns the configured scan mode.
func (c *Client) Mode() ScanMode { return c.mode }

// Backend exposes the wrapped backend for reconciliation and health checks.
func (c *Client) Backend() Backend { return c.backend }

// Write appends fingerprint under identifierHash and returns the assigned
// index and reference. Failures carry CodeLedgerWrite. Writes bypass the
// breaker: a write failure is always reported to the issuer.
func (c *Client) Write(ctx context.Context, identifierHash, fingerprint models.Hash256) (uint64, string, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLedgerWrite,
		tracer.String(tracer.AttrIdentifierHash, identifierHash.String()))
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	index, ref, err := c.backend.Append(callCtx, identifierHash, fingerprint)
	c.metrics.ObserveLedgerOp("write", time.Since(start))
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeLedgerWrite, "ledger write failed")
		span.End(err)
		return 0, "", err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrLedgerIndex, int64(index)))
	span.End(nil)
	return index, ref, nil
}

// Read reports whether the record at (identifierHash, index) exists and
// carries expected. Absence is (false, nil). Transport failures carry
// CodeLedgerRead.
func (c *Client) Read(ctx context.Context, identifierHash models.Hash256, index uint64, expected models.Hash256) (bool, error) {
	p := c.probe(ctx, identifierHash, index, expected)
	return p.matched, p.err
}

// Revoke sets the out-of-band revoke flag. The fingerprint is untouched.
func (c *Client) Revoke(ctx context.Context, identifierHash models.Hash256, index uint64) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.backend.Revoke(callCtx, identifierHash, index)
	c.metrics.ObserveLedgerOp("revoke", time.Since(start))
	if err != nil {
		if errors.Is(err, ErrAbsent) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "ledger record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeLedgerWrite, "ledger revoke failed")
	}
	return nil
}

// Scan probes indices 0..MaxScan-1 for a record matching expected.
// A transport failure without any match is returned as a CodeLedgerRead
// error and must never be reported as a mismatch.
func (c *Client) Scan(ctx context.Context, identifierHash, expected models.Hash256) (ScanResult, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLedgerScan,
		tracer.String(tracer.AttrIdentifierHash, identifierHash.String()),
		tracer.String(tracer.AttrScanMode, string(c.mode)),
		tracer.Int64(tracer.AttrScanLimit, int64(c.maxScan)),
	)

	var (
		res ScanResult
		err error
	)
	if c.mode == ScanParallel {
		res, err = c.scanParallel(ctx, identifierHash, expected)
	} else {
		res, err = c.scanSequential(ctx, identifierHash, expected)
	}
	if res.Matched {
		span.AddEvent(tracer.EventLedgerMatch, tracer.Int64(tracer.AttrLedgerIndex, int64(res.Index)))
	}
	span.End(err)
	return res, err
}

func (c *Client) scanSequential(ctx context.Context, key, expected models.Hash256) (ScanResult, error) {
	var res ScanResult
	for i := range c.maxScan {
		p := c.probe(ctx, key, uint64(i), expected)
		res.Probed++
		if p.err != nil {
			return res, p.err
		}
		if p.matched {
			res.Matched = true
			res.Index = uint64(i)
			res.Revoked = p.revoked
			return res, nil
		}
	}
	return res, nil
}

// scanParallel probes every index. Any match wins (lowest index reported);
// otherwise any transport error wins; only all-definitive misses are a mismatch.
// Every probe runs to completion: a failed probe must not cancel one that
// would still match.
func (c *Client) scanParallel(ctx context.Context, key, expected models.Hash256) (ScanResult, error) {
	probes := make([]probeResult, c.maxScan)
	var wg sync.WaitGroup
	for i := range c.maxScan {
		wg.Go(func() {
			probes[i] = c.probe(ctx, key, uint64(i), expected)
		})
	}
	wg.Wait()

	res := ScanResult{Probed: len(probes)}
	var errs []error
	for i, p := range probes {
		if p.matched {
			res.Matched = true
			res.Index = uint64(i)
			res.Revoked = p.revoked
			return res, nil
		}
		if p.err != nil {
			errs = append(errs, p.err)
		}
	}
	if len(errs) > 0 {
		return res, errs[0]
	}
	return res, nil
}

type probeResult struct {
	matched bool
	revoked bool
	err     error
}

func (c *Client) probe(ctx context.Context, key models.Hash256, index uint64, expected models.Hash256) probeResult {
	if !c.breaker.Allow() {
		c.metrics.IncLedgerProbe("short_circuit")
		return probeResult{err: dErrors.Wrap(errCircuitOpen, dErrors.CodeLedgerRead, "ledger unavailable")}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rec, err := c.backend.Read(callCtx, key, index)
	c.metrics.ObserveLedgerOp("read", time.Since(start))

	switch {
	case errors.Is(err, ErrAbsent):
		c.recordSuccess()
		c.metrics.IncLedgerProbe("absent")
		return probeResult{}
	case err != nil:
		// A caller that gave up is not evidence of an unhealthy ledger.
		if ctx.Err() == nil {
			c.recordFailure(err)
		}
		c.metrics.IncLedgerProbe("error")
		return probeResult{err: dErrors.Wrap(err, dErrors.CodeLedgerRead, "ledger unavailable")}
	}

	c.recordSuccess()
	if rec.DocumentFingerprint != expected {
		c.metrics.IncLedgerProbe("miss")
		return probeResult{}
	}
	c.metrics.IncLedgerProbe("match")
	return probeResult{matched: true, revoked: rec.Revoked}
}

func (c *Client) recordFailure(err error) {
	if change := c.breaker.RecordFailure(); change.Opened {
		c.metrics.SetBreakerOpen(true)
		c.logger.Warn("ledger read circuit opened", "breaker", c.breaker.Name(), "error", err)
	}
}

func (c *Client) recordSuccess() {
	if change := c.breaker.RecordSuccess(); change.Closed {
		c.metrics.SetBreakerOpen(false)
		c.logger.Info("ledger read circuit closed", "breaker", c.breaker.Name())
	}
}

// sortRecords orders records by key then index for deterministic enumeration.
func sortRecords(recs []models.CredentialRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].IdentifierHash != recs[j].IdentifierHash {
			return recs[i].IdentifierHash.String() < recs[j].IdentifierHash.String()
		}
		return recs[i].SequenceIndex < recs[j].SequenceIndex
	})
}
