package kv

// The schema defines how contract data is keyed in the underlying BoltDB
// buckets. Submissions and events are prefixed with the 16-byte contract id
// so that per-contract scans are a single prefix seek.
var (
	contractsBucket   = []byte("contracts")
	submissionsBucket = []byte("submissions")
	eventsBucket      = []byte("events")
)
