package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/dashboard.db"
}

// Store persists daily bars, fetch times and raised alerts.
// It implements model.BarStore and model.AlertJournal.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			ticker  TEXT    NOT NULL,
			date    TEXT    NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER,
			PRIMARY KEY (ticker, date)
		);

		CREATE TABLE IF NOT EXISTS fetches (
			ticker     TEXT    PRIMARY KEY,
			fetched_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT    PRIMARY KEY,
			ticker     TEXT    NOT NULL,
			name       TEXT,
			type       TEXT    NOT NULL,
			price      REAL    NOT NULL,
			rsi        REAL,
			date       TEXT    NOT NULL,
			message    TEXT    NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE (ticker, type, date)
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
	`)
	return err
}

// WriteBars upserts bars in a single transaction and stamps the fetch time.
func (s *Store) WriteBars(ctx context.Context, ticker string, bars []model.PriceBar) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (ticker, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, ticker, b.Date.Format(dateLayout), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("sqlite insert bar %s %s: %w", ticker, b.Date.Format(dateLayout), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fetches (ticker, fetched_at) VALUES (?, ?)
		ON CONFLICT (ticker) DO UPDATE SET fetched_at = excluded.fetched_at
	`, ticker, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("sqlite stamp fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	log.Printf("[sqlite] committed %d bars for %s in %v", len(bars), ticker, time.Since(start))
	return nil
}

// RecordAlert journals an alert. A second alert with the same ticker, type
// and bar date returns model.ErrDuplicateAlert.
func (s *Store) RecordAlert(ctx context.Context, a model.Alert) error {
	var rsi sql.NullFloat64
	if a.RSI.Valid {
		rsi = sql.NullFloat64{Float64: a.RSI.V, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alerts (id, ticker, name, type, price, rsi, date, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Ticker, a.Name, string(a.Type), a.Price, rsi, a.Date.Format(dateLayout), a.Message, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite insert alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s %s: %w", a.Ticker, a.Type, a.Date.Format(dateLayout), model.ErrDuplicateAlert)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
