package kv

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/shopspring/decimal"
)

var errInduced = errors.New("induced failure")

func setupDB(t testing.TB) *Store {
	s, err := NewKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to instantiate DB: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
	})
	return s
}

func testContract() *types.Contract {
	now := time.Now().UTC()
	return &types.Contract{
		ID:      uuid.New(),
		BuyerID: "buyer-1",
		Amount:  decimal.NewFromFloat(25.00),
		Status:  types.StatusCreated,
		VerificationDescriptor: types.Descriptor{
			Type: types.VerifierMock,
		},
		MaxRetries: 3,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
