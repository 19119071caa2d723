package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"postbot/internal/errors"
)

// Entity is anything stored under its own ID.
type Entity interface {
	GetID() string
}

// Open opens (creating if needed) the database at path. An empty path
// opens an in-memory database.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true).WithLogger(nil)
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// BadgerStore keeps JSON encoded entities of one kind under a key prefix.
type BadgerStore[T Entity] struct {
	db     *badger.DB
	prefix string
	codec  *Codec
}

// NewBadgerStore returns a store for prefix. A nil codec stores values
// uncompressed.
func NewBadgerStore[T Entity](db *badger.DB, prefix string, codec *Codec) *BadgerStore[T] {
	return &BadgerStore[T]{
		db:     db,
		prefix: prefix,
		codec:  codec,
	}
}

func (s *BadgerStore[T]) keyPrefix() []byte {
	return []byte(s.prefix + ":")
}

func (s *BadgerStore[T]) makeKey(id string) []byte {
	return append(s.keyPrefix(), id...)
}

func (s *BadgerStore[T]) encode(entity T) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("marshaling entity: %w", err)
	}
	if s.codec != nil {
		data = s.codec.Encode(data)
	}
	return data, nil
}

func (s *BadgerStore[T]) decode(val []byte) (T, error) {
	var entity T
	if s.codec != nil {
		var err error
		if val, err = s.codec.Decode(val); err != nil {
			return entity, err
		}
	}
	if err := json.Unmarshal(val, &entity); err != nil {
		return entity, fmt.Errorf("unmarshaling entity: %w", err)
	}
	return entity, nil
}

func (s *BadgerStore[T]) Create(entity T) error {
	id := entity.GetID()
	if id == "" {
		return errors.ValidationError("entity ID cannot be empty", nil)
	}

	data, err := s.encode(entity)
	if err != nil {
		return err
	}

	key := s.makeKey(id)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return errors.Conflict(fmt.Sprintf("%s %s already exists", s.prefix, id))
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore[T]) Get(id string) (T, error) {
	var entity T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.makeKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entity, err = s.decode(val)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return entity, errors.NotFound(fmt.Sprintf("%s %s not found", s.prefix, id))
	}
	return entity, err
}

func (s *BadgerStore[T]) Delete(id string) error {
	key := s.makeKey(id)
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.NotFound(fmt.Sprintf("%s %s not found", s.prefix, id))
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ListOptions bounds and orders List. Entities are ordered by ID.
type ListOptions struct {
	Limit   int
	Reverse bool
}

func (s *BadgerStore[T]) List(opts ListOptions) ([]T, error) {
	results := []T{}
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Reverse = opts.Reverse
		iterOpts.Prefix = s.keyPrefix()
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		start := s.keyPrefix()
		if opts.Reverse {
			start = append(start, 0xFF)
		}
		for it.Seek(start); it.Valid(); it.Next() {
			if opts.Limit > 0 && len(results) == opts.Limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				entity, err := s.decode(val)
				if err != nil {
					return err
				}
				results = append(results, entity)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.prefix, err)
	}
	return results, nil
}
