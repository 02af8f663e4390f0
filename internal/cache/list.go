package cache

// entry is both the table value and the recency list node.
//
// key and hash never change after the entry is published, so they may be
// read without the lock by anyone who obtained the pointer under it. value,
// the links and live are guarded by Cache.mu.
type entry[K, V any] struct {
	key   K
	hash  uint64
	value V

	prev *entry[K, V]
	next *entry[K, V]

	// live is false once the entry has been evicted or cleared.
	live bool
}

// recencyList is a circular doubly linked list bounded by a sentinel:
// root.next is the MRU entry, root.prev the LRU entry.
type recencyList[K, V any] struct {
	root entry[K, V]
}

func (l *recencyList[K, V]) init() {
	l.root.next = &l.root
	l.root.prev = &l.root
}

func (l *recencyList[K, V]) empty() bool {
	return l.root.next == &l.root
}

func (l *recencyList[K, V]) pushFront(e *entry[K, V]) {
	e.prev = &l.root
	e.next = l.root.next
	l.root.next.prev = e
	l.root.next = e
}

func (l *recencyList[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (l *recencyList[K, V]) moveToFront(e *entry[K, V]) {
	if l.root.next == e {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	l.pushFront(e)
}

// back returns the LRU entry, or nil when the list is empty.
func (l *recencyList[K, V]) back() *entry[K, V] {
	if l.empty() {
		return nil
	}
	return l.root.prev
}
