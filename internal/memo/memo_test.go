package memo

import (
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"gomemo/internal/key"
)

// newFib returns a memoized, recursive Fibonacci. Results wrap on overflow;
// only the call pattern matters here.
func newFib(t *testing.T, opts ...Option) *Memo[uint64] {
	t.Helper()
	var fib *Memo[uint64]
	fib, err := New(func(a key.Args) (uint64, error) {
		n := a.Arg(0).(int)
		if n < 2 {
			return uint64(n), nil
		}
		x, err := fib.Call(n - 1)
		if err != nil {
			return 0, err
		}
		y, err := fib.Call(n - 2)
		return x + y, err
	}, opts...)
	require.NoError(t, err)
	return fib
}

func fibIter(n int) uint64 {
	var a, b uint64 = 0, 1
	for range n {
		a, b = b, a+b
	}
	return a
}

func TestFibonacciStats(t *testing.T) {
	fib := newFib(t, WithMaxSize(325))

	for round := 0; round < 2; round++ {
		v, err := fib.Call(300)
		require.NoError(t, err)
		assert.Equal(t, fibIter(300), v)

		assert.Equal(t, Stats{Hits: 298, Misses: 301, MaxSize: 325, CurrSize: 301}, fib.Stats(), "round %d", round)

		fib.Clear()
		assert.Equal(t, Stats{MaxSize: 325}, fib.Stats())
	}
}

func TestLRUEviction(t *testing.T) {
	var calls []string
	m, err := New(func(a key.Args) (string, error) {
		s := a.Arg(0).(string)
		calls = append(calls, s)
		return s + s, nil
	}, WithMaxSize(2))
	require.NoError(t, err)

	for _, s := range []string{"a", "b", "a", "c", "b"} {
		_, err := m.Call(s)
		require.NoError(t, err)
	}

	// "a" is touched before "c" arrives, so "b" is the one recomputed.
	assert.Equal(t, []string{"a", "b", "c", "b"}, calls)
	st := m.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(4), st.Misses)
	assert.Equal(t, uint64(2), st.Evictions)
	assert.Equal(t, 2, st.CurrSize)
}

func TestTypedSeparation(t *testing.T) {
	identity := func(a key.Args) (any, error) { return a.Arg(0), nil }

	untyped, err := New(identity)
	require.NoError(t, err)
	_, _ = untyped.Call(1)
	v, err := untyped.Call(1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "1.0 is served from the entry stored for 1")
	assert.Equal(t, uint64(1), untyped.Stats().Hits)

	typed, err := New(identity, WithTyped(true))
	require.NoError(t, err)
	_, _ = typed.Call(1)
	v, err = typed.Call(1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, Stats{Misses: 2, MaxSize: DefaultMaxSize, CurrSize: 2}, typed.Stats())
}

func TestKeywordArguments(t *testing.T) {
	m, err := New(func(a key.Args) (int, error) {
		x, _ := a.Kw("x")
		y, _ := a.Kw("y")
		return x.(int) * y.(int), nil
	})
	require.NoError(t, err)

	v, err := m.CallArgs(key.Args{}.With("x", 3).With("y", 4))
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = m.CallArgs(key.Args{}.With("y", 4).With("x", 3))
	require.NoError(t, err)
	assert.Equal(t, 12, v)
	assert.Equal(t, uint64(1), m.Stats().Hits)
}

func TestStatePartitionsKeys(t *testing.T) {
	state := []any{true}
	var calls atomic.Int32
	m, err := New(func(a key.Args) (int, error) {
		calls.Add(1)
		return a.Arg(0).(int), nil
	}, WithState(state))
	require.NoError(t, err)

	_, _ = m.Call(1)
	state[0] = false
	_, _ = m.Call(1)
	state[0] = true
	_, _ = m.Call(1)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 2, MaxSize: DefaultMaxSize, CurrSize: 2}, m.Stats())
}

func TestUnboundedGrows(t *testing.T) {
	m, err := New(func(a key.Args) (int, error) { return a.Arg(0).(int), nil }, WithUnbounded())
	require.NoError(t, err)

	for i := 0; i < 10*DefaultMaxSize; i++ {
		_, err := m.Call(i)
		require.NoError(t, err)
	}
	st := m.Stats()
	assert.False(t, st.Bounded())
	assert.Equal(t, Unbounded, st.MaxSize)
	assert.Equal(t, 10*DefaultMaxSize, st.CurrSize)
	assert.Zero(t, st.Evictions)
	assert.Equal(t, "hits=0 misses=1280 maxsize=unbounded currsize=1280", st.String())
}

func TestUnhashablePolicies(t *testing.T) {
	sum := func(a key.Args) (int, error) {
		total := 0
		for _, v := range a.Arg(0).([]int) {
			total += v
		}
		return total, nil
	}

	tests := []struct {
		policy Policy
		warns  int
	}{
		{PolicyWarning, 2},
		{PolicyIgnore, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			h := memory.New()
			logger := &log.Logger{Handler: h, Level: log.DebugLevel}

			m, err := New(sum, WithUnhashable(tt.policy), WithLogger(logger), WithName("sum"))
			require.NoError(t, err)

			for range 2 {
				v, err := m.Call([]int{1, 2, 3})
				require.NoError(t, err)
				assert.Equal(t, 6, v)
			}
			assert.Equal(t, Stats{Misses: 2, MaxSize: DefaultMaxSize}, m.Stats())

			var warns []*log.Entry
			for _, e := range h.Entries {
				if e.Level == log.WarnLevel {
					warns = append(warns, e)
				}
			}
			require.Len(t, warns, tt.warns)
			for _, e := range warns {
				assert.Equal(t, "sum", e.Fields.Get("memo"))
				assert.Contains(t, e.Fields.Get("error"), "unhashable positional argument 0")
			}
		})
	}

	t.Run("error", func(t *testing.T) {
		var calls int
		m, err := New(func(a key.Args) (int, error) {
			calls++
			return 0, nil
		}, WithUnhashable(PolicyError))
		require.NoError(t, err)

		_, err = m.CallArgs(key.Positional(1).With("opts", map[string]int{}))
		require.Error(t, err)
		assert.ErrorIs(t, err, key.ErrUnhashable)

		var ue *key.UnhashableError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, key.SegmentKeyword, ue.Segment)
		assert.Equal(t, "opts", ue.Keyword)

		assert.Zero(t, calls)
		assert.Equal(t, Stats{MaxSize: DefaultMaxSize}, m.Stats())
	})
}

func TestComputationErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	m, err := New(func(a key.Args) (int, error) {
		calls++
		if a.Arg(0).(int) < 0 {
			return 0, boom
		}
		return a.Arg(0).(int), nil
	})
	require.NoError(t, err)

	for range 2 {
		_, err := m.Call(-1)
		assert.Same(t, boom, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, Stats{Misses: 2, MaxSize: DefaultMaxSize}, m.Stats())
}

func TestWrappedBypassesCache(t *testing.T) {
	fib := newFib(t)

	v, err := fib.Wrapped()(key.Positional(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(55), v)

	// The wrapped function recurses through the memo.
	st := fib.Stats()
	assert.Equal(t, 10, st.CurrSize)
	assert.Equal(t, uint64(10), st.Misses)
}

func TestNew_ConfigErrors(t *testing.T) {
	noop := func(key.Args) (int, error) { return 0, nil }

	tests := []struct {
		name  string
		fn    Func[int]
		opts  []Option
		field string
	}{
		{"nil func", nil, nil, "func"},
		{"zero maxsize", noop, []Option{WithMaxSize(0)}, "maxsize"},
		{"negative maxsize", noop, []Option{WithMaxSize(-5)}, "maxsize"},
		{"unknown policy", noop, []Option{WithUnhashable("loud")}, "unhashable"},
		{"scalar state", noop, []Option{WithState(42)}, "state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.fn, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrConfig)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err := New(noop, WithState(42))
	assert.ErrorIs(t, err, key.ErrInvalidState)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(func(a key.Args) (int, error) { return a.Arg(0).(int), nil },
		WithMaxSize(2), WithName("square"), WithMetrics(reg))
	require.NoError(t, err)

	for _, n := range []int{1, 2, 1, 3} {
		_, err := m.Call(n)
		require.NoError(t, err)
	}

	values := gather(t, reg)
	assert.Equal(t, 1.0, values["gomemo_cache_hits_total"])
	assert.Equal(t, 3.0, values["gomemo_cache_misses_total"])
	assert.Equal(t, 1.0, values["gomemo_cache_evictions_total"])
	assert.Equal(t, 2.0, values["gomemo_cache_size"])

	m.Clear()
	assert.Equal(t, 0.0, gather(t, reg)["gomemo_cache_size"])

	// A second memo with the same name collides on registration.
	_, err = New(func(key.Args) (int, error) { return 0, nil }, WithName("square"), WithMetrics(reg))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "metrics", ce.Field)
}

// gather returns the single sample of every family in reg, checking that
// each carries the memo name label.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64, len(families))
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		metric := mf.GetMetric()[0]
		assert.Equal(t, "square", labelValue(metric, "name"))
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			out[mf.GetName()] = metric.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			out[mf.GetName()] = metric.GetGauge().GetValue()
		}
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestConfigYAML(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    Config
		wantErr bool
	}{
		{
			name: "defaults kept",
			doc:  "typed: true\n",
			want: Config{Name: "memo", MaxSize: DefaultMaxSize, Typed: true, Unhashable: PolicyWarning},
		},
		{
			name: "unbounded",
			doc:  "name: fib\nmaxsize: Unbounded\nunhashable: ignore\n",
			want: Config{Name: "fib", MaxSize: Unbounded, Unhashable: PolicyIgnore},
		},
		{
			name: "bounded",
			doc:  "maxsize: 325\n",
			want: Config{Name: "memo", MaxSize: 325, Unhashable: PolicyWarning},
		},
		{name: "zero", doc: "maxsize: 0\n", wantErr: true},
		{name: "word", doc: "maxsize: lots\n", wantErr: true},
		{name: "sequence", doc: "maxsize: [1]\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := yaml.Unmarshal([]byte(tt.doc), &cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
			assert.NoError(t, cfg.Validate())
		})
	}

	out, err := yaml.Marshal(Config{Name: "fib", MaxSize: Unbounded, Unhashable: PolicyError})
	require.NoError(t, err)
	assert.Contains(t, string(out), "maxsize: unbounded")
}

func TestNewFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unhashable = "sometimes"
	_, err := NewFromConfig(func(key.Args) (int, error) { return 0, nil }, cfg)
	assert.ErrorIs(t, err, ErrConfig)

	cfg = Config{Name: "fib", MaxSize: 325, Unhashable: PolicyError}
	m, err := NewFromConfig(func(key.Args) (int, error) { return 0, nil }, cfg)
	require.NoError(t, err)
	assert.Equal(t, "fib", m.Name())
	assert.Equal(t, 325, m.Stats().MaxSize)
}

// TestMutualRecursionUnderClear runs two memoized functions that call each
// other from many goroutines while a third keeps clearing them. Results
// must stay correct and the counters consistent.
func TestMutualRecursionUnderClear(t *testing.T) {
	var fib, fib2 *Memo[uint64]
	recurse := func(other **Memo[uint64]) Func[uint64] {
		return func(a key.Args) (uint64, error) {
			n := a.Arg(0).(int)
			if n < 2 {
				return uint64(n), nil
			}
			x, err := (*other).Call(n - 1)
			if err != nil {
				return 0, err
			}
			y, err := (*other).Call(n - 2)
			return x + y, err
		}
	}
	var err error
	fib, err = New(recurse(&fib2), WithMaxSize(64))
	require.NoError(t, err)
	fib2, err = New(recurse(&fib), WithMaxSize(64))
	require.NoError(t, err)

	const workers = 8
	var done atomic.Bool
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(w), 1))
			for i := 0; i < 200; i++ {
				n := r.IntN(90)
				m := fib
				if r.IntN(2) == 0 {
					m = fib2
				}
				v, err := m.Call(n)
				if err != nil {
					return err
				}
				if v != fibIter(n) {
					return errors.New("wrong result")
				}
			}
			return nil
		})
	}

	var clears errgroup.Group
	clears.Go(func() error {
		r := rand.New(rand.NewPCG(99, 1))
		for !done.Load() {
			if r.IntN(2) == 0 {
				fib.Clear()
			} else {
				fib2.Clear()
			}
		}
		return nil
	})

	require.NoError(t, g.Wait())
	done.Store(true)
	require.NoError(t, clears.Wait())

	for _, m := range []*Memo[uint64]{fib, fib2} {
		st := m.Stats()
		assert.LessOrEqual(t, st.CurrSize, 64)
	}
}

func TestConcurrentMissesMayDuplicateWork(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	m, err := New(func(a key.Args) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	})
	require.NoError(t, err)

	const workers = 4
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			v, err := m.Call("k")
			if err == nil && v != 7 {
				return errors.New("wrong result")
			}
			return err
		})
	}
	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	st := m.Stats()
	assert.Equal(t, uint64(workers), st.Hits+st.Misses)
	assert.Equal(t, uint64(calls.Load()), st.Misses)
	assert.Equal(t, 1, st.CurrSize, "racing inserts of one key leave one entry")
}
