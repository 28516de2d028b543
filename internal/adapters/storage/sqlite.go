package storage

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// SQLiteStore implements the entry, rule and alert persistence ports using
// GORM and SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// EntryModel is the GORM model for ledger entries. Sequence is the primary
// key and never auto-assigned: the ledger's single writer owns it. Payload
// is the raw JSON of the caller's fields; the hashed timestamp is kept as
// UnixNano so a database round trip can never shift precision under the
// digest.
type EntryModel struct {
	Sequence    int64  `gorm:"primaryKey;autoIncrement:false"`
	EntryID     string `gorm:"uniqueIndex"`
	TimestampNS int64
	Payload     string
	Hash        string
	PrevHash    string
	Tags        string
	Blocked     bool
	Quarantined bool
}

// RuleModel is the GORM model for policy rules. Conditions and actions are
// JSON-encoded; soft-deleted rules stay in the table for audit.
type RuleModel struct {
	RuleID      string `gorm:"primaryKey"`
	Name        string
	Priority    int `gorm:"index"`
	Enabled     bool
	Deleted     bool
	Conditions  string
	Actions     string
	CorrelateBy string
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AlertModel is the GORM model for alerts. The transition history is
// JSON-encoded; times are UnixNano for the same reason as entries.
type AlertModel struct {
	AlertID        string `gorm:"primaryKey"`
	RuleID         string `gorm:"index"`
	EntryID        string
	Severity       string
	Status         string `gorm:"index"`
	CorrelationKey string `gorm:"index"`
	Message        string
	Occurrences    int
	OpenedAtNS     int64
	LastSeenAtNS   int64
	ClosedAtNS     *int64
	History        string
}

// NewSQLiteStore initializes the database and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&EntryModel{}, &RuleModel{}, &AlertModel{}); err != nil {
		return nil, err
	}

	// Indices for the hot lookup paths
	db.Exec("CREATE INDEX IF NOT EXISTS idx_alert_models_status_key ON alert_models(status, correlation_key)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_rule_models_deleted ON rule_models(deleted)")

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
