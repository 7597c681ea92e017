package cache

import "time"

// node is a single slot in the recency list: an intrusive doubly linked
// list node carrying the cached key/value pair. Unexported — callers
// outside this package never hold a *node, matching the "Recency Index
// owns its entries exclusively" invariant.
type node[K comparable, V any] struct {
	key       K
	value     V
	cost      int64
	touchedAt time.Time
	prev      *node[K, V]
	next      *node[K, V]
}

// recencyIndex pairs a doubly linked list, ordered most-recently-used
// at the head and least-recently-used at the tail, with a map keyed on
// node key for O(1) lookup. Not safe for concurrent use — the engine in
// cache.go is the only caller and serializes access behind its mutex.
type recencyIndex[K comparable, V any] struct {
	head, tail *node[K, V] // sentinels; real nodes sit strictly between them
	index      map[K]*node[K, V]
	totalCount int64
	totalCost  int64
}

func newRecencyIndex[K comparable, V any]() *recencyIndex[K, V] {
	r := &recencyIndex[K, V]{
		head: new(node[K, V]),
		tail: new(node[K, V]),
	}
	r.head.next = r.tail
	r.tail.prev = r.head
	r.index = make(map[K]*node[K, V])
	return r
}

func (r *recencyIndex[K, V]) get(key K) (*node[K, V], bool) {
	n, ok := r.index[key]
	return n, ok
}

// insertAtHead registers a brand new node at the MRU end. The key must
// not already be present — callers update in place via bringToHead
// instead of re-inserting.
func (r *recencyIndex[K, V]) insertAtHead(n *node[K, V]) {
	r.index[n.key] = n
	r.link(n)
	r.totalCount++
	r.totalCost += n.cost
}

func (r *recencyIndex[K, V]) link(n *node[K, V]) {
	n.prev = r.head
	n.next = r.head.next
	r.head.next.prev = n
	r.head.next = n
}

func (r *recencyIndex[K, V]) unlink(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// bringToHead moves an already-linked node to the MRU end. No-op if the
// node is already at the head.
func (r *recencyIndex[K, V]) bringToHead(n *node[K, V]) {
	if r.head.next == n {
		return
	}
	r.unlink(n)
	r.link(n)
}

// remove detaches n from the list and the index, adjusting aggregates.
func (r *recencyIndex[K, V]) remove(n *node[K, V]) {
	r.unlink(n)
	delete(r.index, n.key)
	r.totalCount--
	r.totalCost -= n.cost
}

// popTail removes and returns the LRU node, or nil if the list is empty.
func (r *recencyIndex[K, V]) popTail() *node[K, V] {
	n := r.tail.prev
	if n == r.head {
		return nil
	}
	r.remove(n)
	return n
}

func (r *recencyIndex[K, V]) len() int64 {
	return r.totalCount
}

// clear swaps in a fresh, empty list and index in O(1) and hands back
// the detached old one. The old index still holds every node that was
// present, but it is no longer reachable from r — the caller is free
// to walk it with drain() after releasing the cache lock, so a purge
// of a large cache never holds the lock for O(n).
func (r *recencyIndex[K, V]) clear() *recencyIndex[K, V] {
	old := &recencyIndex[K, V]{
		head:       r.head,
		tail:       r.tail,
		index:      r.index,
		totalCount: r.totalCount,
		totalCost:  r.totalCost,
	}

	r.head = new(node[K, V])
	r.tail = new(node[K, V])
	r.head.next = r.tail
	r.tail.prev = r.head
	r.index = make(map[K]*node[K, V])
	r.totalCount = 0
	r.totalCost = 0

	return old
}

// drain walks a detached index (as returned by clear()) and returns
// every node it held. Meant to be called without the cache lock held.
func (r *recencyIndex[K, V]) drain() []*node[K, V] {
	nodes := make([]*node[K, V], 0, len(r.index))
	for n := r.head.next; n != r.tail; n = n.next {
		nodes = append(nodes, n)
	}
	return nodes
}
