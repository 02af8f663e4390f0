package memo

import (
	"fmt"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Policy decides what a call does when its arguments cannot be hashed.
type Policy string

const (
	// PolicyError fails the call before the computation runs.
	PolicyError Policy = "error"
	// PolicyWarning logs a warning, then calls through without caching.
	PolicyWarning Policy = "warning"
	// PolicyIgnore calls through without caching, silently.
	PolicyIgnore Policy = "ignore"
)

// ParsePolicy parses "error", "warning" or "ignore".
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if err := p.validate(); err != nil {
		return "", err
	}
	return p, nil
}

func (p Policy) validate() error {
	switch p {
	case PolicyError, PolicyWarning, PolicyIgnore:
		return nil
	}
	return configErr("unhashable", fmt.Sprintf("want one of error|warning|ignore, got %q", string(p)), nil)
}

const (
	// DefaultMaxSize is the capacity used when no size option is given.
	DefaultMaxSize = 128

	// Unbounded disables eviction. It is also what Stats.MaxSize reports
	// for an unbounded memo.
	Unbounded = -1
)

// Option configures a Memo.
type Option func(*options)

type options struct {
	maxSize    int
	typed      bool
	state      any
	policy     Policy
	logger     log.Interface
	name       string
	registerer prometheus.Registerer
}

// WithMaxSize bounds the number of stored results. n must be positive, or
// Unbounded.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithUnbounded disables eviction; the table grows without limit.
func WithUnbounded() Option {
	return WithMaxSize(Unbounded)
}

// WithTyped makes arguments of different types cache separately, so that
// f(1) and f(1.0) are distinct calls.
func WithTyped(typed bool) Option {
	return func(o *options) {
		o.typed = typed
	}
}

// WithState folds caller-owned, mutable state into every key. See
// key.NewState for the accepted shapes. The state is read on each call,
// never copied.
func WithState(state any) Option {
	return func(o *options) {
		o.state = state
	}
}

// WithUnhashable sets the unhashable-argument policy.
func WithUnhashable(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger sets the logger. If logger is nil, this option is ignored.
func WithLogger(logger log.Interface) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName names the memo in logs and metric labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMetrics exports hit/miss/eviction/size metrics to reg.
// If reg is nil, this option is ignored.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		if reg != nil {
			o.registerer = reg
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		maxSize: DefaultMaxSize,
		policy:  PolicyWarning,
		logger:  log.Log,
		name:    "memo",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) validate() error {
	if o.maxSize <= 0 && o.maxSize != Unbounded {
		return configErr("maxsize", fmt.Sprintf("must be positive or unbounded, got %d", o.maxSize), nil)
	}
	return o.policy.validate()
}
