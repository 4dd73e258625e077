package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"identix/internal/credential/models"
	"identix/internal/credential/token"
)

// metadataRecord is the GORM row for credential_metadata.
type metadataRecord struct {
	ID                  string    `gorm:"type:CHAR(36);primaryKey"`
	Token               string    `gorm:"type:VARCHAR(16) NOT NULL;uniqueIndex"`
	StudentIdentifier   string    `gorm:"type:VARCHAR(64) NOT NULL;index:idx_student_issued,priority:1"`
	IdentifierHash      string    `gorm:"type:CHAR(66) NOT NULL;index:idx_ledger_entry,priority:1"`
	DocumentFingerprint string    `gorm:"type:CHAR(66) NOT NULL"`
	SequenceIndex       uint64    `gorm:"not null;index:idx_ledger_entry,priority:2"`
	LedgerReference     string    `gorm:"type:VARCHAR(128) NOT NULL"`
	DocumentLocation    string    `gorm:"type:VARCHAR(512) NOT NULL"`
	FileName            string    `gorm:"type:VARCHAR(255) NOT NULL"`
	HolderName          string    `gorm:"type:VARCHAR(200) NOT NULL"`
	Course              string    `gorm:"type:VARCHAR(200) NOT NULL"`
	University          string    `gorm:"type:VARCHAR(200) NOT NULL"`
	Department          string    `gorm:"type:VARCHAR(200) NOT NULL"`
	IssuerID            string    `gorm:"type:VARCHAR(128) NOT NULL"`
	IssuedAt            time.Time `gorm:"not null;index:idx_student_issued,priority:2"`
	Status              string    `gorm:"type:ENUM('valid', 'revoked') NOT NULL"`
	RevokedAt           sql.NullTime
}

func (metadataRecord) TableName() string {
	return "credential_metadata"
}

func toRecord(m *models.CredentialMetadata) *metadataRecord {
	r := &metadataRecord{
		ID:                  m.ID.String(),
		Token:               string(m.Token),
		StudentIdentifier:   m.StudentIdentifier,
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
		IssuedAt:            m.IssuedAt.UTC(),
		Status:              string(m.Status),
	}
	if m.RevokedAt != nil {
		r.RevokedAt = sql.NullTime{Time: m.RevokedAt.UTC(), Valid: true}
	}
	return r
}

func (r *metadataRecord) toModel() (*models.CredentialMetadata, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse metadata id: %w", err)
	}
	rec := &models.CredentialMetadata{
		StudentIdentifier: r.StudentIdentifier,
		SequenceIndex:     r.SequenceIndex,
		LedgerReference:   r.LedgerReference,
		DocumentLocation:  r.DocumentLocation,
		FileName:          r.FileName,
		Details: models.Details{
			HolderName: r.HolderName,
			Course:     r.Course,
			University: r.University,
			Department: r.Department,
		},
		IssuerID: r.IssuerID,
		IssuedAt: r.IssuedAt,
	}
	return assemble(rec, id, r.Token, r.IdentifierHash, r.DocumentFingerprint, r.Status, r.RevokedAt)
}

// GormStore persists metadata in MySQL through GORM.
type GormStore struct {
	db *gorm.DB
}

// OpenMySQL connects to dsn. The DSN must set parseTime=True.
func OpenMySQL(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return NewGorm(db), nil
}

func NewGorm(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the credential_metadata table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&metadataRecord{}); err != nil {
		return fmt.Errorf("migrate credential_metadata: %w", err)
	}
	return nil
}

func (s *GormStore) Put(ctx context.Context, record *models.CredentialMetadata) error {
	if err := record.Validate(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(toRecord(record))
	if res.Error != nil {
		return fmt.Errorf("insert credential metadata: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateToken
	}
	return nil
}

func (s *GormStore) FindByToken(ctx context.Context, tok token.Token) (*models.CredentialMetadata, error) {
	var row metadataRecord
	err := s.db.WithContext(ctx).Where("token = ?", string(tok)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential metadata by token: %w", err)
	}
	return row.toModel()
}

func (s *GormStore) QueryByIdentifier(ctx context.Context, identifier string) ([]*models.CredentialMetadata, error) {
	var rows []metadataRecord
	err := s.db.WithContext(ctx).
		Where("student_identifier = ?", identifier).
		Order("issued_at DESC").Order("sequence_index DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query credential metadata: %w", err)
	}
	out := make([]*models.CredentialMetadata, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GormStore) SetStatus(ctx context.Context, tok token.Token, status models.Status, at time.Time) error {
	revoked := sql.NullTime{}
	if t := revokedAt(status, at); t != nil {
		revoked = sql.NullTime{Time: *t, Valid: true}
	}
	res := s.db.WithContext(ctx).
		Model(&metadataRecord{}).
		Where("token = ?", string(tok)).
		Updates(map[string]any{"status": string(status), "revoked_at": revoked})
	if res.Error != nil {
		return fmt.Errorf("update credential status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows for a no-op update too.
		var count int64
		if err := s.db.WithContext(ctx).Model(&metadataRecord{}).Where("token = ?", string(tok)).Count(&count).Error; err != nil {
			return fmt.Errorf("update credential status: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *GormStore) HasLedgerEntry(ctx context.Context, identifierHash models.Hash256, index uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&metadataRecord{}).
		Where("identifier_hash = ? AND sequence_index = ?", identifierHash.String(), index).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check ledger entry metadata: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *GormStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
