package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/studio2230704/technical-analysis-dashboard/internal/model"
)

// ReadBars returns bars for ticker dated on or after from.
// Results are ordered by date ascending.
func (s *Store) ReadBars(ctx context.Context, ticker string, from time.Time) ([]model.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE ticker = ? AND date >= ?
		ORDER BY date ASC
	`, ticker, from.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.PriceBar
	for rows.Next() {
		var (
			b      model.PriceBar
			date   string
			volume sql.NullInt64
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("sqlite bad date %q: %w", date, err)
		}
		b.Volume = volume.Int64
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LastFetched returns when ticker's bars were last written. Zero if never.
func (s *Store) LastFetched(ctx context.Context, ticker string) (time.Time, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx, `SELECT fetched_at FROM fetches WHERE ticker = ?`, ticker).Scan(&ns)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite query fetches: %w", err)
	}
	return time.Unix(0, ns), nil
}

// RecentAlerts returns the last limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, name, type, price, rsi, date, message, created_at
		FROM alerts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var (
			a         model.Alert
			name      sql.NullString
			typ, date string
			rsi       sql.NullFloat64
			created   int64
		)
		if err := rows.Scan(&a.ID, &a.Ticker, &name, &typ, &a.Price, &rsi, &date, &a.Message, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan alerts: %w", err)
		}
		a.Name = name.String
		a.Type = model.AlertType(typ)
		if rsi.Valid {
			a.RSI = model.Some(rsi.Float64)
		}
		a.Date, _ = time.Parse(dateLayout, date)
		a.CreatedAt = time.Unix(0, created).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Tickers lists every ticker with cached bars.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
