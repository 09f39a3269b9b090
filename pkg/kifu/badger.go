package kifu

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "kifu/"

// BadgerSink keeps one JSON document per game under kifu/<game id>.
type BadgerSink struct {
	db *badger.DB
}

func OpenBadgerSink(dir string) (*BadgerSink, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &BadgerSink{db: db}, nil
}

func (s *BadgerSink) Append(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: game %s: %w", ErrPersistence, r.GameID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPrefix+r.GameID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: game %s: %w", ErrPersistence, r.GameID, err)
	}
	return nil
}

// Get loads one game. The boolean is false when the id is unknown.
func (s *BadgerSink) Get(id string) (Record, bool, error) {
	var rec Record
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, found, err
}

// All returns every stored game in key order.
func (s *BadgerSink) All() ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("%s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

func (s *BadgerSink) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ReadBadger opens dir, loads every game and closes it again.
func ReadBadger(dir string) ([]Record, error) {
	sink, err := OpenBadgerSink(dir)
	if err != nil {
		return nil, err
	}
	records, err := sink.All()
	return records, errors.Join(err, sink.Close())
}
