package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"identix/internal/credential/models"
	"identix/internal/credential/token"
)

const metadataColumns = `id, token, student_identifier, identifier_hash, document_fingerprint,
	sequence_index, ledger_reference, document_location, file_name,
	holder_name, course, university, department, issuer_id, issued_at, status, revoked_at`

// PostgresStore persists metadata in the credential_metadata table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, record *models.CredentialMetadata) error {
	if err := record.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credential_metadata (`+metadataColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (token) DO NOTHING
	`,
		record.ID,
		string(record.Token),
		record.StudentIdentifier,
		record.IdentifierHash.String(),
		record.DocumentFingerprint.String(),
		record.SequenceIndex,
		record.LedgerReference,
		record.DocumentLocation,
		record.FileName,
		record.Details.HolderName,
		record.Details.Course,
		record.Details.University,
		record.Details.Department,
		record.IssuerID,
		record.IssuedAt.UTC(),
		string(record.Status),
		record.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credential metadata: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert credential metadata: %w", err)
	}
	if n == 0 {
		return ErrDuplicateToken
	}
	return nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, tok token.Token) (*models.CredentialMetadata, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM credential_metadata WHERE token = $1`, string(tok))
	rec, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential metadata by token: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) QueryByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+metadataColumns+`
		FROM credential_metadata
		WHERE student_identifier = $1
		ORDER BY issued_at DESC, sequence_index DESC
	`, identifier)
	if err != nil {
		return nil, fmt.Errorf("query credential metadata: %w", err)
	}
	defer rows.Close()

	out := []*models.CredentialMetadata{}
	for rows.Next() {
		rec, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential metadata: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credential metadata: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, tok token.Token, status models.Status, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credential_metadata SET status = $2, revoked_at = $3 WHERE token = $1`,
		string(tok), string(status), revokedAt(status, at),
	)
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HasLedgerEntry(ctx context.Context, identifierHash models.Hash256, index uint64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM credential_metadata WHERE identifier_hash = $1 AND sequence_index = $2
		)
	`, identifierHash.String(), index).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger entry metadata: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type metadataRow interface {
	Scan(dest ...any) error
}

func scanMetadata(row metadataRow) (*models.CredentialMetadata, error) {
	var (
		rec                     models.CredentialMetadata
		id                      uuid.UUID
		tok, idHash, fp, status string
		revoked                 sql.NullTime
	)
	if err := row.Scan(
		&id, &tok, &rec.StudentIdentifier, &idHash, &fp,
		&rec.SequenceIndex, &rec.LedgerReference, &rec.DocumentLocation, &rec.FileName,
		&rec.Details.HolderName, &rec.Details.Course, &rec.Details.University, &rec.Details.Department,
		&rec.IssuerID, &rec.IssuedAt, &status, &revoked,
	); err != nil {
		return nil, err
	}
	return assemble(&rec, id, tok, idHash, fp, status, revoked)
}

// assemble fills the typed fields shared by the SQL backends.
func assemble(rec *models.CredentialMetadata, id uuid.UUID, tok, idHash, fp, status string, revoked sql.NullTime) (*models.CredentialMetadata, error) {
	var err error
	rec.ID = id
	rec.Token = token.Token(tok)
	if rec.IdentifierHash, err = models.ParseHash256(idHash); err != nil {
		return nil, fmt.Errorf("parse identifier hash: %w", err)
	}
	if rec.DocumentFingerprint, err = models.ParseHash256(fp); err != nil {
		return nil, fmt.Errorf("parse document fingerprint: %w", err)
	}
	if rec.Status, err = models.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("parse status: %w", err)
	}
	rec.IssuedAt = rec.IssuedAt.UTC()
	if revoked.Valid {
		t := revoked.Time.UTC()
		rec.RevokedAt = &t
	}
	return rec, nil
}
