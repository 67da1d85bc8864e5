// Package registrystore is a reference SQL-backed implementation of the
// persistence registry (set of RegistryEntry plus an epoch counter) and the
// audit-log, selectable between SQLite (single-bot default) and Postgres
// (multi-bot operations).
package registrystore

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"
)

// SizeBucket classifies a bot's persisted state by chunk count.
type SizeBucket string

const (
	SizeSmall  SizeBucket = "small"
	SizeMedium SizeBucket = "medium"
	SizeLarge  SizeBucket = "large"
)

// RegistryEntryModel is the gorm-mapped persistence registry row.
type RegistryEntryModel struct {
	ContractHash string `gorm:"primaryKey;size:64"`
	SizeBucket   string `gorm:"size:16"`
	NumChunks    uint32
	RegisteredAt int64
	IdentityKey  string `gorm:"size:64"`
}

func (RegistryEntryModel) TableName() string { return "registry_entries" }

// EpochModel tracks the single global epoch counter (spec §4.7.2).
type EpochModel struct {
	ID    uint `gorm:"primaryKey"`
	Epoch uint64
}

func (EpochModel) TableName() string { return "registry_epoch" }

// AuditRecordModel is the gorm-mapped audit log row, carrying a monotonic
// Sequence field so gap detection (SPEC_FULL §3 supplement) can flag any
// discontinuity caused by a dropped write.
type AuditRecordModel struct {
	Sequence   uint64 `gorm:"primaryKey;autoIncrement"`
	Timestamp  int64
	Actor      string `gorm:"size:64"`
	ActionType string `gorm:"size:32"`
	Details    string
}

func (AuditRecordModel) TableName() string { return "audit_records" }

// Store wraps a gorm.DB configured for either SQLite or Postgres.
type Store struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if absent) a SQLite-backed registry store.
// This is the default single-bot deployment.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("registrystore: open sqlite: %w", err)
	}
	return newStore(db)
}

// OpenPostgres opens a Postgres-backed registry store, used for shared
// multi-bot operator deployments.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("registrystore: open postgres: %w", err)
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&RegistryEntryModel{}, &EpochModel{}, &AuditRecordModel{}); err != nil {
		return nil, fmt.Errorf("registrystore: automigrate: %w", err)
	}
	return &Store{db: db}, nil
}

// RegisterEntry upserts a bot's registry entry.
func (s *Store) RegisterEntry(contractHash string, bucket SizeBucket, numChunks uint32, identityKey string, registeredAt time.Time) error {
	entry := RegistryEntryModel{
		ContractHash: contractHash,
		SizeBucket:   string(bucket),
		NumChunks:    numChunks,
		RegisteredAt: registeredAt.Unix(),
		IdentityKey:  identityKey,
	}
	return s.db.Save(&entry).Error
}

// ListEntries returns every registered bot entry.
func (s *Store) ListEntries() ([]RegistryEntryModel, error) {
	var entries []RegistryEntryModel
	if err := s.db.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CurrentEpoch returns the persisted epoch counter, defaulting to 1 if
// unset.
func (s *Store) CurrentEpoch() (uint64, error) {
	var row EpochModel
	err := s.db.FirstOrCreate(&row, EpochModel{ID: 1, Epoch: 1}).Error
	if err != nil {
		return 0, err
	}
	return row.Epoch, nil
}

// SetEpoch persists a new epoch value.
func (s *Store) SetEpoch(epoch uint64) error {
	return s.db.Save(&EpochModel{ID: 1, Epoch: epoch}).Error
}

// AppendAuditRecord appends one audit record; Sequence is assigned by the
// database's autoincrement.
func (s *Store) AppendAuditRecord(actor, actionType, details string, timestamp time.Time) error {
	record := AuditRecordModel{
		Timestamp:  timestamp.Unix(),
		Actor:      actor,
		ActionType: actionType,
		Details:    details,
	}
	return s.db.Create(&record).Error
}

// VerifyContiguous checks the audit log's Sequence column for gaps, which
// would indicate a dropped or out-of-order write.
func (s *Store) VerifyContiguous() error {
	var records []AuditRecordModel
	if err := s.db.Order("sequence asc").Find(&records).Error; err != nil {
		return err
	}
	for i := 1; i < len(records); i++ {
		if records[i].Sequence != records[i-1].Sequence+1 {
			return fmt.Errorf("registrystore: audit log gap between sequence %d and %d", records[i-1].Sequence, records[i].Sequence)
		}
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
