// Package journal persists backup records in a Badger database so a restore
// still works after gametune exits.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/gametune/pkg/gametune/backup"
	"github.com/jamesainslie/gametune/pkg/gametune/logging"
	"github.com/jamesainslie/gametune/pkg/gametune/types"
)

var logger = logging.Get("journal")

// Key prefixes.
const (
	prefixRecord = "r:" // r:<category>/<key> -> backup.Entry
	prefixMeta   = "m:"
)

// CurrentSchemaVersion is the record layout this package writes.
//
// 1 - JSON backup.Entry under r:<category>/<key>
const CurrentSchemaVersion = 1

const schemaKey = prefixMeta + "__schema__"

// ErrSchemaTooNew means the database was written by a newer gametune.
var ErrSchemaTooNew = errors.New("journal schema is newer than this build supports")

// Schema holds database schema information.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Journal is a backup.Journal backed by Badger.
type Journal struct {
	db   *badger.DB
	path string
}

var _ backup.Journal = (*Journal)(nil)

// Open opens or creates the journal at dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	j := &Journal{db: db, path: dir}
	if err := j.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("journal opened", "path", dir)
	return j, nil
}

// Path returns the database directory.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// checkSchema stamps a fresh database and rejects one from a newer build.
func (j *Journal) checkSchema() error {
	schema, err := j.Schema()
	if err != nil {
		return err
	}
	if schema == nil {
		return j.setSchema(Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()})
	}
	if schema.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: version %d", ErrSchemaTooNew, schema.Version)
	}
	return nil
}

// Schema returns the stored schema, or nil for a fresh database.
func (j *Journal) Schema() (*Schema, error) {
	var schema *Schema
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			schema = &Schema{}
			return json.Unmarshal(val, schema)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading journal schema: %w", err)
	}
	return schema, nil
}

func (j *Journal) setSchema(schema Schema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaKey), data)
	})
}

func recordKey(category types.Category, key string) []byte {
	return []byte(prefixRecord + string(category) + "/" + key)
}

// Put stores entry, replacing any entry for the same (category, key).
func (j *Journal) Put(entry backup.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(entry.Record.Category, entry.Record.Key), data)
	})
}

// Delete removes the entry for (category, key).
func (j *Journal) Delete(category types.Category, key string) error {
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(category, key))
	})
}

// Entries returns every stored entry in key order. Entries that fail to decode
// are logged and skipped.
func (j *Journal) Entries() ([]backup.Entry, error) {
	var entries []backup.Entry

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var e backup.Entry
				if err := json.Unmarshal(val, &e); err != nil {
					logger.Warn("skipping corrupt journal entry", "key", string(item.Key()), "error", err)
					return nil
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	return entries, nil
}

// Clear removes every record. The schema is kept.
func (j *Journal) Clear() error {
	return j.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of stored records.
func (j *Journal) Len() int {
	n := 0
	_ = j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixRecord)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}
