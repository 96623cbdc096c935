package gptbot

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shaharia-lab/gptbot/observability"
)

// UsageRecord is the billing fact for one completion attempt. It never
// contains prompt or reply text.
type UsageRecord struct {
	ConversationID uuid.UUID
	Attempt        int
	FailureKind    FailureKind
	PromptTokens   int
	TotalTokens    int
	Cost           float64
	CreatedAt      time.Time
}

// UsageRecorder stores usage records.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, record UsageRecord) error
}

// InMemoryUsageRecorder keeps records in memory
type InMemoryUsageRecorder struct {
	mu      sync.RWMutex
	records []UsageRecord
}

// NewInMemoryUsageRecorder creates a new instance of InMemoryUsageRecorder
func NewInMemoryUsageRecorder() *InMemoryUsageRecorder {
	return &InMemoryUsageRecorder{}
}

// RecordUsage appends record
func (r *InMemoryUsageRecorder) RecordUsage(_ context.Context, record UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, record)
	return nil
}

// Records returns a copy of everything recorded so far
func (r *InMemoryUsageRecorder) Records() []UsageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]UsageRecord, len(r.records))
	copy(out, r.records)
	return out
}

// SQLDialect selects placeholder and DDL syntax for SQLUsageRecorder.
type SQLDialect int

const (
	SQLiteDialect SQLDialect = iota
	PostgresDialect
)

// SQLUsageRecorder writes usage records to a SQL database.
type SQLUsageRecorder struct {
	db      *sql.DB
	dialect SQLDialect
	logger  observability.Logger
}

// NewSQLiteUsageRecorder opens (or creates) the SQLite database at path.
func NewSQLiteUsageRecorder(path string, logger observability.Logger) (*SQLUsageRecorder, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return newSQLUsageRecorder(db, SQLiteDialect, logger)
}

// NewPostgresUsageRecorder connects to PostgreSQL using dsn.
func NewPostgresUsageRecorder(dsn string, logger observability.Logger) (*SQLUsageRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLUsageRecorder(db, PostgresDialect, logger)
}

// NewSQLUsageRecorder wraps an already opened database and creates the schema.
func NewSQLUsageRecorder(db *sql.DB, dialect SQLDialect, logger observability.Logger) (*SQLUsageRecorder, error) {
	return newSQLUsageRecorder(db, dialect, logger)
}

func newSQLUsageRecorder(db *sql.DB, dialect SQLDialect, logger observability.Logger) (*SQLUsageRecorder, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	r := &SQLUsageRecorder{db: db, dialect: dialect, logger: logger}

	if err := r.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return r, nil
}

func (r *SQLUsageRecorder) initSchema(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.dialect == PostgresDialect {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	createTableSQL := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS completion_usage (
        %s,
        conversation_id TEXT NOT NULL,
        attempt INTEGER NOT NULL,
        failure_kind TEXT NOT NULL,
        prompt_tokens INTEGER NOT NULL,
        total_tokens INTEGER NOT NULL,
        cost DOUBLE PRECISION NOT NULL,
        created_at TIMESTAMP NOT NULL
    );`, idColumn)

	createIndexSQL := `
    CREATE INDEX IF NOT EXISTS idx_completion_usage_conversation ON completion_usage (conversation_id);`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create completion_usage table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create completion_usage index: %w", err)
	}

	return tx.Commit()
}

func (r *SQLUsageRecorder) insertSQL() string {
	if r.dialect == PostgresDialect {
		return `INSERT INTO completion_usage (conversation_id, attempt, failure_kind, prompt_tokens, total_tokens, cost, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	}
	return `INSERT INTO completion_usage (conversation_id, attempt, failure_kind, prompt_tokens, total_tokens, cost, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
}

// RecordUsage inserts record.
func (r *SQLUsageRecorder) RecordUsage(ctx context.Context, record UsageRecord) error {
	_, err := r.db.ExecContext(ctx, r.insertSQL(),
		record.ConversationID.String(),
		record.Attempt,
		record.FailureKind.String(),
		record.PromptTokens,
		record.TotalTokens,
		record.Cost,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// TotalCost sums the cost recorded for a conversation.
func (r *SQLUsageRecorder) TotalCost(ctx context.Context, conversationID uuid.UUID) (float64, error) {
	query := `SELECT COALESCE(SUM(cost), 0) FROM completion_usage WHERE conversation_id = ?`
	if r.dialect == PostgresDialect {
		query = `SELECT COALESCE(SUM(cost), 0) FROM completion_usage WHERE conversation_id = $1`
	}

	var total float64
	if err := r.db.QueryRowContext(ctx, query, conversationID.String()).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum usage cost: %w", err)
	}
	return total, nil
}

// Close closes the underlying database.
func (r *SQLUsageRecorder) Close() error {
	r.logger.Debug("closing usage recorder database")
	return r.db.Close()
}
