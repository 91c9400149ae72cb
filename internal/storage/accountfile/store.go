package accountfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitsuha/hoyo-qr-bot/internal/domain/model"
)

var (
	// ErrNotExist means no record has been created yet; the caller should
	// run the login sequence.
	ErrNotExist = errors.New("account record does not exist")
	// ErrCorrupt means a record exists but cannot be parsed. Unlike
	// ErrNotExist this needs operator attention, not silent recreation.
	ErrCorrupt = errors.New("account record is corrupt")
)

// Store persists the single AccountRecord as a human-readable JSON file.
// One in-process holder owns the record for the process lifetime.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load() (model.AccountRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.AccountRecord{}, ErrNotExist
		}
		return model.AccountRecord{}, fmt.Errorf("failed to read account record: %w", err)
	}

	var record model.AccountRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.AccountRecord{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !record.Complete() {
		return model.AccountRecord{}, fmt.Errorf("%w: missing required fields", ErrCorrupt)
	}
	return record, nil
}

// Save writes the record atomically: a torn write must never leave a
// partial record behind.
func (s *Store) Save(record model.AccountRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode account record: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write account record: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit account record: %w", err)
	}
	return nil
}

func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete account record: %w", err)
	}
	return nil
}
