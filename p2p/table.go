package p2p

import (
	"crypto/rand"
	"sort"
	"sync"
	"time"
)

// tableBuckets, bucketSize and maxReplacements are the routing-table shape
// spec §6 names: 256 buckets (one per possible leading-zero-bit count of a
// 256-bit keccak distance), 16 live entries per bucket, 10 replacement
// entries held in reserve per bucket.
const (
	tableBuckets    = 256
	bucketSize      = 16
	maxReplacements = 10
)

// staleAfter is how long a table entry may go unconfirmed before it becomes
// eligible for eviction in favor of a waiting replacement.
const staleAfter = 24 * time.Hour

// tableEntry is one node known to the table, alongside the liveness
// bookkeeping AddNode/RecordFailure maintain.
type tableEntry struct {
	node      Node
	addedAt   time.Time
	lastSeen  time.Time
	failCount int
}

type kBucket struct {
	entries      []tableEntry
	replacements []tableEntry
}

// Table is the node's Kademlia-style routing table: 256 buckets indexed by
// keccakDistance from the local node, each holding up to bucketSize live
// entries plus a replacement cache for nodes that lost out to a full bucket.
type Table struct {
	mu      sync.Mutex
	self    NodeID
	buckets [tableBuckets]*kBucket
}

// NewTable creates an empty routing table for the local node self.
func NewTable(self NodeID) *Table {
	t := &Table{self: self}
	for i := range t.buckets {
		t.buckets[i] = &kBucket{}
	}
	return t
}

// bucketIndex maps a node ID to its bucket, or -1 for the local ID itself
// (distance 256, the maximal leading-zero-bit count, has no home bucket).
func (t *Table) bucketIndex(id NodeID) int {
	d := keccakDistance(t.self, id)
	if d >= tableBuckets {
		return -1
	}
	return d
}

// AddNode inserts n into the table, or into its bucket's replacement cache
// if the bucket is already full and has no stale entry to evict. Returns
// true if n ended up as a live bucket entry.
func (t *Table) AddNode(n Node) bool {
	idx := t.bucketIndex(n.ID)
	if idx < 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets[idx]
	now := time.Now()

	for i := range b.entries {
		if b.entries[i].node.ID == n.ID {
			b.entries[i].node = n
			b.entries[i].lastSeen = now
			b.entries[i].failCount = 0
			return true
		}
	}

	if len(b.entries) < bucketSize {
		b.entries = append(b.entries, tableEntry{node: n, addedAt: now, lastSeen: now})
		return true
	}

	if i, ok := staleIndex(b.entries); ok {
		b.entries[i] = tableEntry{node: n, addedAt: now, lastSeen: now}
		return true
	}

	addReplacement(b, n, now)
	return false
}

func staleIndex(entries []tableEntry) (int, bool) {
	for i, e := range entries {
		if time.Since(e.lastSeen) > staleAfter {
			return i, true
		}
	}
	return 0, false
}

func addReplacement(b *kBucket, n Node, now time.Time) {
	for i := range b.replacements {
		if b.replacements[i].node.ID == n.ID {
			b.replacements[i] = tableEntry{node: n, addedAt: now, lastSeen: now}
			return
		}
	}
	if len(b.replacements) >= maxReplacements {
		b.replacements = b.replacements[1:]
	}
	b.replacements = append(b.replacements, tableEntry{node: n, addedAt: now, lastSeen: now})
}

// RemoveNode deletes id from the table, promoting a waiting replacement (if
// any) into its place.
func (t *Table) RemoveNode(id NodeID) {
	idx := t.bucketIndex(id)
	if idx < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets[idx]
	for i, e := range b.entries {
		if e.node.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			if len(b.replacements) > 0 {
				b.entries = append(b.entries, b.replacements[0])
				b.replacements = b.replacements[1:]
			}
			return
		}
	}
}

// RecordFailure marks id as having failed to answer a liveness check; after
// maxReplacements consecutive failures it is evicted in favor of a
// replacement, matching go-ethereum's discovery table's own bond-failure
// handling.
func (t *Table) RecordFailure(id NodeID) {
	idx := t.bucketIndex(id)
	if idx < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets[idx]
	for i := range b.entries {
		if b.entries[i].node.ID == id {
			b.entries[i].failCount++
			if b.entries[i].failCount >= maxReplacements {
				b.entries = append(b.entries[:i], b.entries[i+1:]...)
				if len(b.replacements) > 0 {
					b.entries = append(b.entries, b.replacements[0])
					b.replacements = b.replacements[1:]
				}
			}
			return
		}
	}
}

// Closest returns up to count nodes ordered nearest first, i.e. by
// descending keccakDistance (leading bits shared with target), the
// primitive a FINDNODE lookup repeatedly narrows with.
func (t *Table) Closest(target NodeID, count int) []Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	var all []Node
	for _, b := range t.buckets {
		for _, e := range b.entries {
			all = append(all, e.node)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return keccakDistance(target, all[i].ID) > keccakDistance(target, all[j].ID)
	})
	if len(all) > count {
		all = all[:count]
	}
	return all
}

// Len returns the total number of live entries across all buckets.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b.entries)
	}
	return n
}

// BucketLen returns the number of live entries in the bucket at idx.
func (t *Table) BucketLen(idx int) int {
	if idx < 0 || idx >= tableBuckets {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets[idx].entries)
}

// RandomID returns a random node ID, the seed a table-refresh lookup targets
// when a bucket hasn't been touched recently.
func RandomID() NodeID {
	var id NodeID
	rand.Read(id[:])
	return id
}
