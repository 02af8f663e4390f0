package memo

import (
	"fmt"

	"github.com/apex/log"

	"gomemo/internal/cache"
	"gomemo/internal/key"
)

// Func is the computation being memoized. It receives the original call
// arguments; its result and error are forwarded to the caller unchanged.
type Func[R any] func(args key.Args) (R, error)

// Stats is a point-in-time snapshot of a memo's counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	MaxSize   int // Unbounded when eviction is disabled
	CurrSize  int
}

// Bounded reports whether the memo evicts.
func (s Stats) Bounded() bool { return s.MaxSize != Unbounded }

func (s Stats) String() string {
	return fmt.Sprintf("hits=%d misses=%d maxsize=%s currsize=%d",
		s.Hits, s.Misses, Capacity(s.MaxSize), s.CurrSize)
}

// Memo is a memoized function: a bounded, recency-ordered table of results
// keyed by call arguments.
//
// Concurrent calls are safe. The computation runs without any lock held,
// so concurrent misses on the same key may each run it; the last insert
// wins. Results are expected to be idempotent per key.
type Memo[R any] struct {
	fn      Func[R]
	name    string
	maxSize int
	policy  Policy

	keys    *key.Builder
	cache   *cache.Cache[key.Key, R]
	logger  log.Interface
	metrics *memoMetrics
}

// New wraps fn in a memo. It fails with a *ConfigError when an option is
// invalid.
func New[R any](fn Func[R], opts ...Option) (*Memo[R], error) {
	if fn == nil {
		return nil, configErr("func", "must not be nil", nil)
	}

	o := applyOptions(opts...)
	if err := o.validate(); err != nil {
		return nil, err
	}

	state, err := key.NewState(o.state)
	if err != nil {
		return nil, configErr("state", "unsupported shape", err)
	}

	var metrics *memoMetrics
	if o.registerer != nil {
		metrics, err = newMemoMetrics(o.registerer, o.name)
		if err != nil {
			return nil, configErr("metrics", "registration failed", err)
		}
	}

	// cache.Config treats any non-positive bound as unbounded.
	maxEntries := o.maxSize
	if maxEntries == Unbounded {
		maxEntries = 0
	}

	return &Memo[R]{
		fn:      fn,
		name:    o.name,
		maxSize: o.maxSize,
		policy:  o.policy,
		keys:    key.NewBuilder(o.typed, state),
		cache:   cache.New[key.Key, R](cache.Config{MaxEntries: maxEntries}),
		logger:  o.logger.WithFields(log.Fields{"memo": o.name}),
		metrics: metrics,
	}, nil
}

// Call invokes the memoized function with positional arguments.
func (m *Memo[R]) Call(args ...any) (R, error) {
	return m.CallArgs(key.Positional(args...))
}

// CallArgs invokes the memoized function.
//
// On a hit the stored result is returned. On a miss the computation runs
// and a successful result is stored, evicting the least recently used
// entry if the memo is full. A failed computation is never stored.
func (m *Memo[R]) CallArgs(args key.Args) (R, error) {
	k, err := m.keys.Build(args)
	if err != nil {
		return m.callUncached(args, err)
	}

	if v, ok := m.cache.Lookup(k); ok {
		m.metrics.recordHit()
		return v, nil
	}
	m.metrics.recordMiss()

	v, err := m.fn(args)
	if err != nil {
		return v, err
	}

	if m.cache.Insert(k, v) {
		m.metrics.recordEviction()
		m.logger.Debug("evicted least recently used entry")
	}
	if m.metrics != nil {
		m.metrics.updateSize(m.cache.Len())
	}
	return v, nil
}

// callUncached applies the unhashable policy to a call whose key could not
// be built.
func (m *Memo[R]) callUncached(args key.Args, cause error) (R, error) {
	switch m.policy {
	case PolicyError:
		var zero R
		return zero, fmt.Errorf("%s: %w", m.name, cause)
	case PolicyWarning:
		m.logger.WithError(cause).Warn("unhashable arguments cannot be cached")
	}

	m.cache.Miss()
	m.metrics.recordMiss()
	return m.fn(args)
}

// Stats returns hits, misses, evictions, maxsize and currsize as of a
// single instant.
func (m *Memo[R]) Stats() Stats {
	cs := m.cache.Stats()
	return Stats{
		Hits:      cs.Hits,
		Misses:    cs.Misses,
		Evictions: cs.Evictions,
		MaxSize:   m.maxSize,
		CurrSize:  cs.Size,
	}
}

// Clear drops every stored result and resets the counters. Configuration
// is retained.
func (m *Memo[R]) Clear() {
	m.cache.Clear()
	m.metrics.updateSize(0)
	m.logger.Debug("cache cleared")
}

// Name returns the name given with WithName.
func (m *Memo[R]) Name() string { return m.name }

// Wrapped returns the underlying, unmemoized computation.
func (m *Memo[R]) Wrapped() Func[R] { return m.fn }

// Cache exposes the underlying table, for inspection and reporting.
func (m *Memo[R]) Cache() *cache.Cache[key.Key, R] { return m.cache }
