package kv

import (
	"encoding/binary"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain values are stored as JSON. The verification descriptor, schema, and
// result fields are schemaless documents, so a self-describing encoding keeps
// the stored form inspectable with plain bolt tooling.
func encode(v interface{}) ([]byte, error) {
	enc, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode value")
	}
	return enc, nil
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "could not decode value")
	}
	return nil
}

func contractKey(id uuid.UUID) []byte {
	k := id // uuid.UUID is a [16]byte array.
	return k[:]
}

// submissionKey orders submissions of one contract by submission time, with
// the submission id as a tiebreaker.
func submissionKey(contractID, submissionID uuid.UUID, unixNano int64) []byte {
	key := make([]byte, 0, 40)
	key = append(key, contractID[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(unixNano))
	key = append(key, ts[:]...)
	key = append(key, submissionID[:]...)
	return key
}

// eventKey orders events of one contract by the bucket sequence assigned at
// append time, which matches commit order.
func eventKey(contractID uuid.UUID, seq uint64) []byte {
	key := make([]byte, 0, 24)
	key = append(key, contractID[:]...)
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	key = append(key, s[:]...)
	return key
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
