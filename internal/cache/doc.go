// Package cache implements the eviction core of the memoizer: a single-process,
// in-memory table with LRU ordering.
//
// Goals for this package:
//   - Make the core data structures explicit (hash buckets + intrusive doubly-linked list)
//   - Provide O(1) lookup, touch, insert and evict
//   - Be concurrency-safe with one narrow mutex that is never held across user code
//   - Keep hit/miss/size counters consistent with the structure they describe
package cache
