package store

import (
	"hash/fnv"
	"sync"
)

// authorShards is the number of mutex shards used to serialize per-author
// appends. A single global append lock would also satisfy correctness but
// would serialize unrelated authors; a lock map keyed directly by author
// id would grow unbounded. Sharding by hash trades a small amount of
// false contention between unrelated authors for a fixed, small footprint.
const authorShards = 32

// authorLocks serializes append_feed's read-modify-write on latest_seq
// per author. Distinct authors are serialized only when their ids hash
// to the same shard.
type authorLocks struct {
	shards [authorShards]sync.Mutex
}

func newAuthorLocks() *authorLocks {
	return &authorLocks{}
}

func (l *authorLocks) shardFor(author string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(author))
	return &l.shards[h.Sum32()%authorShards]
}

// Lock acquires the shard guarding author and returns the unlock function.
func (l *authorLocks) Lock(author string) func() {
	m := l.shardFor(author)
	m.Lock()
	return m.Unlock
}
