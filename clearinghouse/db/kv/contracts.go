package kv

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	bolt "go.etcd.io/bbolt"
)

// CreateContract inserts a new contract. It fails if a contract with the same
// id already exists.
func (u *UnitOfWork) CreateContract(c *types.Contract) error {
	bkt := u.tx.Bucket(contractsBucket)
	key := contractKey(c.ID)
	if existing := bkt.Get(key); existing != nil {
		return errors.Errorf("contract %s already exists", c.ID)
	}
	enc, err := encode(c)
	if err != nil {
		return err
	}
	return bkt.Put(key, enc)
}

// Contract fetches a contract by id within the unit of work. Returns nil if
// the contract does not exist.
func (u *UnitOfWork) Contract(id uuid.UUID) (*types.Contract, error) {
	return getContract(u.tx, id)
}

// UpdateStatus sets the contract status and bumps updated_at. The caller is
// responsible for having validated the transition via the state machine.
func (u *UnitOfWork) UpdateStatus(c *types.Contract, newStatus types.Status) error {
	c.Status = newStatus
	c.UpdatedAt = time.Now().UTC()
	return u.putContract(c)
}

// IncrementRetry bumps the retry counter and updated_at on a contract.
func (u *UnitOfWork) IncrementRetry(c *types.Contract) error {
	c.RetryCount++
	c.UpdatedAt = time.Now().UTC()
	return u.putContract(c)
}

// SaveContract persists in-place field changes such as wallet and funding
// refs made by the escrow service before a status update.
func (u *UnitOfWork) SaveContract(c *types.Contract) error {
	return u.putContract(c)
}

func (u *UnitOfWork) putContract(c *types.Contract) error {
	enc, err := encode(c)
	if err != nil {
		return err
	}
	return u.tx.Bucket(contractsBucket).Put(contractKey(c.ID), enc)
}

func getContract(tx *bolt.Tx, id uuid.UUID) (*types.Contract, error) {
	enc := tx.Bucket(contractsBucket).Get(contractKey(id))
	if enc == nil {
		return nil, nil
	}
	c := &types.Contract{}
	if err := decode(enc, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Contract retrieves a contract by id. Returns nil without error when the
// contract does not exist.
func (s *Store) Contract(_ context.Context, id uuid.UUID) (*types.Contract, error) {
	var c *types.Contract
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		c, err = getContract(tx, id)
		return err
	})
	return c, err
}

// ContractsByStatus retrieves all contracts with the given status, newest
// first.
func (s *Store) ContractsByStatus(ctx context.Context, status types.Status) ([]*types.Contract, error) {
	return s.filterContracts(ctx, func(c *types.Contract) bool {
		return c.Status == status
	})
}

// ContractsByBuyer retrieves all contracts posted by a buyer, newest first.
func (s *Store) ContractsByBuyer(ctx context.Context, buyerID string) ([]*types.Contract, error) {
	return s.filterContracts(ctx, func(c *types.Contract) bool {
		return c.BuyerID == buyerID
	})
}

func (s *Store) filterContracts(_ context.Context, keep func(*types.Contract) bool) ([]*types.Contract, error) {
	var out []*types.Contract
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(contractsBucket).ForEach(func(_, enc []byte) error {
			c := &types.Contract{}
			if err := decode(enc, c); err != nil {
				return err
			}
			if keep(c) {
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
