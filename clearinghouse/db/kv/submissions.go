package kv

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/types"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	bolt "go.etcd.io/bbolt"
)

// AddSubmission inserts a new work submission for a contract. Payloads above
// the configured ceiling are rejected.
func (u *UnitOfWork) AddSubmission(sub *types.Submission) error {
	if max := params.ClearinghouseConfig().MaxPayloadBytes; len(sub.Payload) > max {
		return errors.Errorf("submission payload of %d bytes exceeds ceiling of %d", len(sub.Payload), max)
	}
	enc, err := encode(sub)
	if err != nil {
		return err
	}
	key := submissionKey(sub.ContractID, sub.ID, sub.SubmittedAt.UnixNano())
	return u.tx.Bucket(submissionsBucket).Put(key, enc)
}

// LatestSubmission returns the newest submission for a contract within the
// unit of work, or nil if the contract has none.
func (u *UnitOfWork) LatestSubmission(contractID uuid.UUID) (*types.Submission, error) {
	return latestSubmission(u.tx, contractID)
}

// UpdateSubmissionVerification records the verification outcome on a
// submission.
func (u *UnitOfWork) UpdateSubmissionVerification(sub *types.Submission, isValid bool, result json.RawMessage) error {
	sub.IsValid = &isValid
	sub.VerificationResult = result
	enc, err := encode(sub)
	if err != nil {
		return err
	}
	key := submissionKey(sub.ContractID, sub.ID, sub.SubmittedAt.UnixNano())
	return u.tx.Bucket(submissionsBucket).Put(key, enc)
}

func latestSubmission(tx *bolt.Tx, contractID uuid.UUID) (*types.Submission, error) {
	c := tx.Bucket(submissionsBucket).Cursor()
	prefix := contractID[:]
	// Seek just past the contract's key range, then step back one entry.
	seekKey := make([]byte, len(prefix))
	copy(seekKey, prefix)
	for i := len(seekKey) - 1; i >= 0; i-- {
		if seekKey[i] < 0xff {
			seekKey[i]++
			break
		}
		seekKey[i] = 0
	}
	k, v := c.Seek(seekKey)
	if k == nil {
		k, v = c.Last()
	} else {
		k, v = c.Prev()
	}
	if k == nil || !hasPrefix(k, prefix) {
		return nil, nil
	}
	sub := &types.Submission{}
	if err := decode(v, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// LatestSubmission returns the newest submission for a contract, or nil if
// the contract has none.
func (s *Store) LatestSubmission(_ context.Context, contractID uuid.UUID) (*types.Submission, error) {
	var sub *types.Submission
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		sub, err = latestSubmission(tx, contractID)
		return err
	})
	return sub, err
}

// SubmissionsByContract returns all submissions for a contract, newest first.
func (s *Store) SubmissionsByContract(_ context.Context, contractID uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	err := s.view(func(tx *bolt.Tx) error {
		c := tx.Bucket(submissionsBucket).Cursor()
		prefix := contractID[:]
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			sub := &types.Submission{}
			if err := decode(v, sub); err != nil {
				return err
			}
			out = append(out, sub)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys are ascending by submission time; callers expect newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
