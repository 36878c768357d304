package cost

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS cost_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    cost REAL NOT NULL,
    image_count INTEGER NOT NULL DEFAULT 0,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cost_log_timestamp ON cost_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_cost_log_provider ON cost_log(provider);
`

// Entry is the spend of one collaborator call.
type Entry struct {
	Operation    string
	Provider     string
	Model        string
	Cost         float64
	ImageCount   int
	InputTokens  int
	OutputTokens int
	Timestamp    time.Time
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

type Summary struct {
	TotalCost  float64
	ImageCount int
	EntryCount int
}

type ProviderSummary struct {
	Provider   string
	TotalCost  float64
	ImageCount int
}

// Ledger persists entries in a cost_log table.
type Ledger struct {
	db *sql.DB
}

func OpenLedger(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO cost_log (operation, provider, model, cost, image_count, input_tokens, output_tokens, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Operation, e.Provider, e.Model, e.Cost, e.ImageCount, e.InputTokens, e.OutputTokens, e.Timestamp)
	return err
}

func (l *Ledger) Total(ctx context.Context) (*Summary, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0), COUNT(*)
		 FROM cost_log`)
	return scanSummary(row)
}

func (l *Ledger) ByDateRange(ctx context.Context, start, end time.Time) (*Summary, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0), COUNT(*)
		 FROM cost_log WHERE timestamp >= ? AND timestamp < ?`,
		start, end)
	return scanSummary(row)
}

func (l *Ledger) ByProvider(ctx context.Context) ([]ProviderSummary, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT provider, COALESCE(SUM(cost), 0), COALESCE(SUM(image_count), 0)
		 FROM cost_log GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ProviderSummary
	for rows.Next() {
		var ps ProviderSummary
		if err := rows.Scan(&ps.Provider, &ps.TotalCost, &ps.ImageCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, ps)
	}
	return summaries, rows.Err()
}

func scanSummary(row *sql.Row) (*Summary, error) {
	var s Summary
	if err := row.Scan(&s.TotalCost, &s.ImageCount, &s.EntryCount); err != nil {
		return nil, err
	}
	return &s, nil
}

// MemoryRecorder keeps entries in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryRecorder) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *MemoryRecorder) Total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, e := range m.entries {
		total += e.Cost
	}
	return total
}
