// Package testing defines helpers for initializing a clearinghouse database
// in unit tests.
package testing

import (
	"testing"

	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db/kv"
)

// SetupDB instantiates and returns a database backed by a temporary
// directory, closed and removed when the test completes.
func SetupDB(t testing.TB) db.Database {
	s, err := kv.NewKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to instantiate DB: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
		if err := s.ClearDB(); err != nil {
			t.Fatalf("Failed to clear database: %v", err)
		}
	})
	return s
}
