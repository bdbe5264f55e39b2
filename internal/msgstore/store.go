// Package msgstore keeps a per-conversation ordered view of chat messages.
//
// The store is a derived cache over the canonical message rows: it is built
// when a conversation view opens, fed incrementally by the live feed, and
// discarded on close. Re-deriving it from the canonical set must always yield
// the same order.
package msgstore

import (
	"github.com/google/btree"

	"github.com/flatfinder/flatfinder/internal/db"
)

const btreeDegree = 8

// Store holds messages ordered by (timestamp desc, id desc) internally, so
// iteration starts at the newest message. Retrieval reverses that for display.
type Store struct {
	tree *btree.BTreeG[db.Message]
}

func less(a, b db.Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

// New creates an empty store.
func New() *Store {
	return &Store{tree: btree.NewG(btreeDegree, less)}
}

// NewFromStore creates a snapshot copy of prev. Mutating the copy never
// mutates prev: a previously rendered store stays frozen.
func NewFromStore(prev *Store) *Store {
	if prev == nil {
		return New()
	}
	return &Store{tree: prev.tree.Clone()}
}

// Add inserts one message. Re-adding a message with the same timestamp and id
// replaces it, so replayed feed events are harmless.
func (s *Store) Add(m db.Message) {
	s.tree.ReplaceOrInsert(m)
}

// AddMany inserts a batch, typically the initial history fetch.
func (s *Store) AddMany(msgs []db.Message) {
	for _, m := range msgs {
		s.tree.ReplaceOrInsert(m)
	}
}

// Messages returns the messages belonging to groupID, oldest to newest.
func (s *Store) Messages(groupID string) []db.Message {
	newestFirst := make([]db.Message, 0, s.tree.Len())
	s.tree.Ascend(func(m db.Message) bool {
		if m.GroupID == groupID {
			newestFirst = append(newestFirst, m)
		}
		return true
	})

	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst
}

// IsEmpty reports whether the store holds no messages at all.
func (s *Store) IsEmpty() bool {
	return s.tree.Len() == 0
}

// Len returns the total message count across all groups.
func (s *Store) Len() int {
	return s.tree.Len()
}
