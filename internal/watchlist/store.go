// Package watchlist persists the set of wallet addresses watched for whale
// transactions. The set lives in a small JSON file so it survives restarts;
// writes go through a temp file and rename so a crash never leaves a
// half-written list.
package watchlist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is a file-backed ordered set of watched addresses.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	addresses []string
	index     map[string]struct{}
}

type fileFormat struct {
	Addresses []string  `json:"addresses"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open loads the watchlist at path. A missing file yields an empty list.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		logger: logger,
		index:  make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse watchlist %s: %w", path, err)
	}

	for _, addr := range f.Addresses {
		if _, ok := s.index[addr]; ok {
			continue
		}
		s.index[addr] = struct{}{}
		s.addresses = append(s.addresses, addr)
	}

	logger.Debug("watchlist loaded", "path", path, "addresses", len(s.addresses))
	return s, nil
}

// Add appends an address and persists. A duplicate is a no-op and does not
// rewrite the file.
func (s *Store) Add(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[address]; ok {
		return nil
	}
	s.index[address] = struct{}{}
	s.addresses = append(s.addresses, address)

	return s.persistLocked()
}

// Remove deletes an address and persists. Unknown addresses are a no-op.
func (s *Store) Remove(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[address]; !ok {
		return nil
	}
	delete(s.index, address)
	for i, a := range s.addresses {
		if a == address {
			s.addresses = append(s.addresses[:i:i], s.addresses[i+1:]...)
			break
		}
	}

	return s.persistLocked()
}

// Contains reports whether address is watched.
func (s *Store) Contains(address string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[address]
	return ok
}

// Addresses returns the watched addresses in insertion order.
func (s *Store) Addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.addresses))
	copy(out, s.addresses)
	return out
}

// Len returns the number of watched addresses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.addresses)
}

func (s *Store) persistLocked() error {
	f := fileFormat{
		Addresses: s.addresses,
		UpdatedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watchlist dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".watchlist-*.json")
	if err != nil {
		return fmt.Errorf("create temp watchlist: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write watchlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close watchlist: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace watchlist: %w", err)
	}

	return nil
}
