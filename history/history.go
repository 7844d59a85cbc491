// Package history persists emitted transcription records. It is a
// collaborator of the session engine, never a dependency: the engine hands
// records over at the completion callback and never reads them back.
package history

import (
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/voxpad/voxpad/internal/types"
)

const recordPrefix = "rec:"

// Store is a badger-backed record store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty for a desktop app

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Append persists one record. Records are immutable; appending the same ID
// twice overwrites, which only happens if a caller violates the emission
// contract.
func (s *Store) Append(rec types.TranscriptionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	key := recordKey(rec)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (s *Store) List(limit int) ([]types.TranscriptionRecord, error) {
	var records []types.TranscriptionRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the prefix range.
		seek := []byte(recordPrefix + "\xff")
		for it.Seek(seek); it.ValidForPrefix([]byte(recordPrefix)); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var rec types.TranscriptionRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("unmarshal record: %w", err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(recordPrefix)); it.ValidForPrefix([]byte(recordPrefix)); it.Next() {
			key := string(it.Item().Key())
			if strings.HasSuffix(key, ":"+id) {
				return txn.Delete(it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordKey orders records chronologically on disk so reverse iteration
// yields newest-first without sorting.
func recordKey(rec types.TranscriptionRecord) string {
	return fmt.Sprintf("%s%020d:%s", recordPrefix, rec.Timestamp.UnixNano(), rec.ID)
}
