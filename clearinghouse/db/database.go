// Package db defines the persistence interface of the clearinghouse. The
// canonical implementation is the bbolt-backed store in db/kv.
package db

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db/kv"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
)

// ReadOnlyDatabase is the query surface of the contract store. Events are
// readable here but only writable through a unit of work, which keeps the
// audit log append-only.
type ReadOnlyDatabase interface {
	Contract(ctx context.Context, id uuid.UUID) (*types.Contract, error)
	ContractsByStatus(ctx context.Context, status types.Status) ([]*types.Contract, error)
	ContractsByBuyer(ctx context.Context, buyerID string) ([]*types.Contract, error)
	LatestSubmission(ctx context.Context, contractID uuid.UUID) (*types.Submission, error)
	SubmissionsByContract(ctx context.Context, contractID uuid.UUID) ([]*types.Submission, error)
	Events(ctx context.Context, contractID uuid.UUID) ([]*types.Event, error)
}

// Database is the full store surface consumed by the escrow service. All
// writes happen inside RunUnitOfWork so that a status update and its audit
// event commit or roll back together.
type Database interface {
	ReadOnlyDatabase
	io.Closer
	RunUnitOfWork(ctx context.Context, fn func(uow *kv.UnitOfWork) error) error
	DatabasePath() string
	ClearDB() error
}

var _ = Database(&kv.Store{})
