// Package kv implements the clearinghouse contract store on top of BoltDB.
// Contracts, submissions, and audit events live in separate buckets; all
// writes for one service operation run inside a single bolt transaction, so
// a status change and its audit event are atomic.
package kv

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var log = logrus.WithField("prefix", "clearinghousedb")

const databaseFileName = "clearinghouse.db"

// Store defines an implementation of the clearinghouse Database interface
// using BoltDB as the underlying persistent kv-store.
type Store struct {
	db           *bolt.DB
	databasePath string
}

// NewKVStore initializes a new boltDB key-value store at the directory
// path specified, creates the kv-buckets based on the schema, and stores
// an open connection db object as a property of the Store struct.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	boltDB, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	kv := &Store{db: boltDB, databasePath: dirPath}

	if err := kv.db.Update(func(tx *bolt.Tx) error {
		return createBuckets(
			tx,
			contractsBucket,
			submissionsBucket,
			eventsBucket,
		)
	}); err != nil {
		return nil, err
	}
	return kv, nil
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath at which this database writes files.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ClearDB removes the previously stored database in the data directory.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path.Join(s.databasePath, databaseFileName))
}

// UnitOfWork exposes the write surface of the store for the duration of one
// bolt transaction. Bolt serializes writing transactions, which subsumes the
// per-contract row lock: two units of work touching the same contract can
// never interleave.
type UnitOfWork struct {
	tx *bolt.Tx
}

// RunUnitOfWork executes fn within a single writable transaction. All writes
// performed through the unit of work become visible together on commit, or
// not at all if fn returns an error.
func (s *Store) RunUnitOfWork(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&UnitOfWork{tx: tx})
	})
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	return s.db.View(fn)
}
