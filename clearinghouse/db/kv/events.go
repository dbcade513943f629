package kv

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	bolt "go.etcd.io/bbolt"
)

// AppendEvent writes one audit event. This is the only write operation the
// event log permits: events are never updated or deleted. The event id and
// creation time are assigned here.
func (u *UnitOfWork) AppendEvent(ev *types.Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	bkt := u.tx.Bucket(eventsBucket)
	seq, err := bkt.NextSequence()
	if err != nil {
		return err
	}
	enc, err := encode(ev)
	if err != nil {
		return err
	}
	return bkt.Put(eventKey(ev.ContractID, seq), enc)
}

// Events returns all audit events for a contract in ascending creation
// order.
func (s *Store) Events(_ context.Context, contractID uuid.UUID) ([]*types.Event, error) {
	var out []*types.Event
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		prefix := contractID[:]
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			ev := &types.Event{}
			if err := decode(v, ev); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}
