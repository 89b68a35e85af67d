// Package watchlist persists the tickers under alert watch together with
// their per-ticker alert thresholds.
package watchlist

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound     = errors.New("watchlist: ticker not found")
	ErrInvalidEntry = errors.New("watchlist: invalid entry")
)

// Entry holds the alert settings for one ticker.
type Entry struct {
	Ticker        string  `yaml:"ticker" json:"ticker" validate:"required,max=32"`
	Name          string  `yaml:"name,omitempty" json:"name"`
	RSIOversold   float64 `yaml:"rsi_oversold" json:"rsi_oversold" validate:"gte=0,lte=100"`
	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought" validate:"gte=0,lte=100,gtfield=RSIOversold"`
	CrossEnabled  bool    `yaml:"cross_enabled" json:"cross_enabled"`
}

// NewEntry returns an entry with default thresholds.
func NewEntry(ticker string) Entry {
	return Entry{
		Ticker:        normalize(ticker),
		RSIOversold:   30,
		RSIOverbought: 70,
		CrossEnabled:  true,
	}
}

type file struct {
	Stocks []Entry `yaml:"stocks"`
}

var validate = validator.New()

// Manager is a YAML-backed watchlist. Every mutation is written through to
// disk. Safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	path   string
	stocks map[string]Entry
}

// Open loads the watchlist at path. A missing file yields an empty list; an
// unreadable or corrupt file is an error.
func Open(path string) (*Manager, error) {
	m := &Manager{path: path, stocks: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("watchlist: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("watchlist: parse %s: %w", path, err)
	}
	for _, e := range f.Stocks {
		e.Ticker = normalize(e.Ticker)
		if e.Ticker == "" {
			continue
		}
		m.stocks[e.Ticker] = e
	}
	log.Printf("[watchlist] loaded %d tickers from %s", len(m.stocks), path)
	return m, nil
}

// Path returns the backing file.
func (m *Manager) Path() string { return m.path }

// Add inserts or replaces an entry.
func (m *Manager) Add(e Entry) error {
	e.Ticker = normalize(e.Ticker)
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[e.Ticker] = e
	return m.saveLocked()
}

// Remove deletes ticker. It returns false when the ticker was not listed.
func (m *Manager) Remove(ticker string) (bool, error) {
	t := normalize(ticker)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stocks[t]; !ok {
		return false, nil
	}
	delete(m.stocks, t)
	return true, m.saveLocked()
}

// Get returns the entry for ticker.
func (m *Manager) Get(ticker string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.stocks[normalize(ticker)]
	return e, ok
}

// Update applies fn to the stored entry for ticker and saves the result.
// The ticker itself cannot be changed.
func (m *Manager) Update(ticker string, fn func(*Entry)) error {
	t := normalize(ticker)

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.stocks[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t)
	}
	fn(&e)
	e.Ticker = t
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	m.stocks[t] = e
	return m.saveLocked()
}

// List returns all entries ordered by ticker.
func (m *Manager) List() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.stocks))
	for _, e := range m.stocks {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Tickers returns the listed tickers in order.
func (m *Manager) Tickers() []string {
	entries := m.List()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Ticker
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stocks)
}

func (m *Manager) Contains(ticker string) bool {
	_, ok := m.Get(ticker)
	return ok
}

func (m *Manager) saveLocked() error {
	f := file{Stocks: make([]Entry, 0, len(m.stocks))}
	for _, e := range m.stocks {
		f.Stocks = append(f.Stocks, e)
	}
	sort.Slice(f.Stocks, func(i, j int) bool { return f.Stocks[i].Ticker < f.Stocks[j].Ticker })

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("watchlist: marshal: %w", err)
	}
	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("watchlist: create dir: %w", err)
		}
	}

	// Write to a sibling temp file and rename so readers never see a torn file.
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("watchlist: write: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("watchlist: rename: %w", err)
	}
	return nil
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
