// Package ledger owns the durable per-symbol trade history and budget
// configuration. Persistence is a whole-document read-modify-write over a
// single JSON file; durability is best effort and every mutation is
// serialized per symbol.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/models"
)

// Repository is the store abstraction the gateway and service layers depend
// on. Reads of unknown symbols return a default position without persisting
// it; mutations create the position on demand.
type Repository interface {
	GetOrCreate(symbol string) *models.Position
	SetBudget(symbol string, totalBudget float64) *models.Position
	AppendRecord(symbol string, rec models.TradeRecord) *models.Position
	DeleteRecord(symbol string, index int) bool
	Clear(symbol string) bool
}

// Store is the file-backed Repository. The document maps symbol → position
// and is rewritten wholesale on every mutation via a temp file + rename, so a
// crash mid-write never leaves a truncated document behind.
type Store struct {
	path string
	log  zerolog.Logger

	mu        sync.Mutex
	positions map[string]*models.Position
	locks     map[string]*sync.Mutex

	// writeMu serializes the temp-file + rename sequence; mutations on
	// different symbols may persist concurrently otherwise.
	writeMu sync.Mutex
}

// Open loads the document at path. A read or parse failure is not fatal: the
// store starts from an empty document and logs the problem, matching the
// recover-to-default storage policy.
func Open(path string, log zerolog.Logger) *Store {
	s := &Store{
		path:      path,
		log:       log.With().Str("component", "ledger").Logger(),
		positions: make(map[string]*models.Position),
		locks:     make(map[string]*sync.Mutex),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", path).Msg("load failed, starting empty")
		}
		return s
	}
	if err := json.Unmarshal(data, &s.positions); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("parse failed, starting empty")
		s.positions = make(map[string]*models.Position)
	}
	return s
}

// symbolLock returns the mutex serializing all mutations for one symbol.
func (s *Store) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}

func (s *Store) position(symbol string) *models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[symbol]
}

func (s *Store) ensurePosition(symbol string) *models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[symbol]
	if !ok {
		pos = models.NewPosition()
		s.positions[symbol] = pos
	}
	return pos
}

// GetOrCreate returns a copy of the stored position, or the default position
// for an unknown symbol. The default is not persisted until a mutation
// happens.
func (s *Store) GetOrCreate(symbol string) *models.Position {
	if pos := s.position(symbol); pos != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return pos.Clone()
	}
	return models.NewPosition()
}

// SetBudget overwrites the symbol's total budget, creating the position if
// needed, and persists.
func (s *Store) SetBudget(symbol string, totalBudget float64) *models.Position {
	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := s.ensurePosition(symbol)
	s.mu.Lock()
	pos.TotalBudget = totalBudget
	out := pos.Clone()
	s.mu.Unlock()

	s.persist()
	return out
}

// AppendRecord appends a trade record, derives its amount from the current
// budget, re-sorts the history by date (stable, so same-day records keep
// their insertion order) and persists. No bound is applied to the record's
// units here; policy checks live in the execution gateway.
func (s *Store) AppendRecord(symbol string, rec models.TradeRecord) *models.Position {
	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := s.ensurePosition(symbol)
	s.mu.Lock()
	units := rec.Units
	if units < 0 {
		units = -units
	}
	rec.Amount = float64(units) * pos.UnitAmount()
	pos.History = append(pos.History, rec)
	sort.SliceStable(pos.History, func(i, j int) bool {
		return pos.History[i].Date < pos.History[j].Date
	})
	out := pos.Clone()
	s.mu.Unlock()

	s.persist()
	return out
}

// DeleteRecord removes the history entry at index. It fails (returns false)
// for an unknown symbol or an out-of-range index, leaving the history
// untouched.
func (s *Store) DeleteRecord(symbol string, index int) bool {
	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok || index < 0 || index >= len(pos.History) {
		s.mu.Unlock()
		return false
	}
	pos.History = append(pos.History[:index], pos.History[index+1:]...)
	s.mu.Unlock()

	s.persist()
	return true
}

// Clear resets the symbol's history. The budget configuration survives.
func (s *Store) Clear(symbol string) bool {
	lock := s.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	pos, ok := s.positions[symbol]
	if !ok {
		s.mu.Unlock()
		return false
	}
	pos.History = []models.TradeRecord{}
	s.mu.Unlock()

	s.persist()
	return true
}

// Symbols lists the symbols with stored state, sorted.
func (s *Store) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// persist writes the whole document back. A failure is logged and the
// in-memory state kept: later reads in this process still see the mutation,
// it just is not durable yet.
func (s *Store) persist() {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.positions, "", "  ")
	s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Msg("marshal positions failed")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Error().Err(err).Str("path", s.path).Msg("create data dir failed")
			return
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("save failed, keeping in-memory state")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("rename failed, keeping in-memory state")
	}
}
