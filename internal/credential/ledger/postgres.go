package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"identix/internal/credential/models"
)

// PostgresBackend stores ledger records in the ledger_records table.
// Appends for one key are serialised with a transaction-scoped advisory lock.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(db *sql.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) Append(ctx context.Context, key, value models.Hash256) (uint64, string, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1)::bigint)`, key.String()); err != nil {
		return 0, "", fmt.Errorf("acquire ledger lock: %w", err)
	}

	var index uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_records WHERE identifier_hash = $1`, key.String(),
	).Scan(&index); err != nil {
		return 0, "", fmt.Errorf("count ledger records: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_records (identifier_hash, sequence_index, document_fingerprint)
		VALUES ($1, $2, $3)
	`, key.String(), index, value.String()); err != nil {
		return 0, "", fmt.Errorf("insert ledger record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, "", fmt.Errorf("commit ledger tx: %w", err)
	}
	return index, Reference(key, index), nil
}

func (b *PostgresBackend) Read(ctx context.Context, key models.Hash256, index uint64) (models.CredentialRecord, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT identifier_hash, sequence_index, document_fingerprint, revoked, recorded_at
		FROM ledger_records
		WHERE identifier_hash = $1 AND sequence_index = $2
	`, key.String(), index)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CredentialRecord{}, ErrAbsent
	}
	if err != nil {
		return models.CredentialRecord{}, fmt.Errorf("read ledger record: %w", err)
	}
	return rec, nil
}

func (b *PostgresBackend) Revoke(ctx context.Context, key models.Hash256, index uint64) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE ledger_records SET revoked = TRUE
		WHERE identifier_hash = $1 AND sequence_index = $2
	`, key.String(), index)
	if err != nil {
		return fmt.Errorf("revoke ledger record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke ledger record: %w", err)
	}
	if n == 0 {
		return ErrAbsent
	}
	return nil
}

func (b *PostgresBackend) Records(ctx context.Context) iter.Seq2[models.CredentialRecord, error] {
	return func(yield func(models.CredentialRecord, error) bool) {
		rows, err := b.db.QueryContext(ctx, `
			SELECT identifier_hash, sequence_index, document_fingerprint, revoked, recorded_at
			FROM ledger_records
			ORDER BY identifier_hash, sequence_index
		`)
		if err != nil {
			yield(models.CredentialRecord{}, fmt.Errorf("list ledger records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(models.CredentialRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.CredentialRecord{}, fmt.Errorf("iterate ledger records: %w", err))
		}
	}
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (models.CredentialRecord, error) {
	var (
		rec        models.CredentialRecord
		key, value string
	)
	if err := row.Scan(&key, &rec.SequenceIndex, &value, &rec.Revoked, &rec.RecordedAt); err != nil {
		return models.CredentialRecord{}, err
	}
	var err error
	if rec.IdentifierHash, err = models.ParseHash256(key); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("parse identifier hash: %w", err)
	}
	if rec.DocumentFingerprint, err = models.ParseHash256(value); err != nil {
		return models.CredentialRecord{}, fmt.Errorf("parse document fingerprint: %w", err)
	}
	return rec, nil
}
