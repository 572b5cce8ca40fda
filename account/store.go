package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCorruptSnapshot marks a snapshot file that exists but cannot be
// decoded. Callers fall back to default capital instead of failing.
var ErrCorruptSnapshot = errors.New("corrupt account snapshot")

// SnapshotPosition is the persisted form of a ledger entry.
type SnapshotPosition struct {
	Quantity int64   `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// Snapshot is the durable account state written at session end and read
// at startup.
type Snapshot struct {
	LastUpdated    time.Time                   `json:"last_updated"`
	Cash           float64                     `json:"cash"`
	PortfolioValue float64                     `json:"portfolio_value"`
	Positions      map[string]SnapshotPosition `json:"positions"`
	TradesCount    int                         `json:"trades_count"`
	SessionCount   int                         `json:"session_count"`
}

// Snapshot captures the state for persistence.
func (s *State) Snapshot() Snapshot {
	positions := make(map[string]SnapshotPosition, len(s.positions))
	for sym, p := range s.positions {
		positions[sym] = SnapshotPosition{Quantity: p.Quantity, AvgPrice: p.AvgEntryPrice}
	}
	return Snapshot{
		LastUpdated:    s.LastUpdated,
		Cash:           s.Cash,
		PortfolioValue: s.PortfolioValue,
		Positions:      positions,
		TradesCount:    s.LifetimeTrades,
		SessionCount:   s.SessionCount,
	}
}

// Restore builds a State from a persisted snapshot, starting a new
// session: session_count is incremented, lifetime counters carry over.
func Restore(snap Snapshot) *State {
	s := NewState(snap.Cash)
	for sym, p := range snap.Positions {
		s.positions[sym] = Position{Symbol: sym, Quantity: p.Quantity, AvgEntryPrice: p.AvgPrice}
	}
	s.PortfolioValue = snap.PortfolioValue
	s.BuyingPower = snap.PortfolioValue
	s.LifetimeTrades = snap.TradesCount
	s.SessionCount = snap.SessionCount + 1
	s.LastUpdated = snap.LastUpdated
	return s
}

// Store persists account snapshots as a single JSON file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the snapshot. A missing file returns (nil, nil); a file
// that cannot be read or decoded returns ErrCorruptSnapshot so the
// caller can fall back loudly rather than crash.
func (st *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptSnapshot, st.path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptSnapshot, st.path, err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically: marshal to a temp file in the
// same directory, then rename over the previous snapshot. A crash
// mid-write leaves the last good snapshot intact.
func (st *Store) Save(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".account-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Reset overwrites the snapshot with a fresh account at initialCash.
func (st *Store) Reset(initialCash float64, now time.Time) (Snapshot, error) {
	snap := Snapshot{
		LastUpdated:    now,
		Cash:           initialCash,
		PortfolioValue: initialCash,
		Positions:      map[string]SnapshotPosition{},
	}
	if err := st.Save(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
