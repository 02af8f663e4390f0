package memo

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capacity is a maxsize setting: a positive bound or Unbounded.
type Capacity int

// UnmarshalYAML accepts a positive integer or the word "unbounded".
func (c *Capacity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return configErr("maxsize", "must be a positive integer or \"unbounded\"", nil)
	}
	if strings.EqualFold(node.Value, "unbounded") {
		*c = Unbounded
		return nil
	}
	n, err := strconv.Atoi(node.Value)
	if err != nil {
		return configErr("maxsize", fmt.Sprintf("must be a positive integer or \"unbounded\", got %q", node.Value), err)
	}
	if n <= 0 {
		return configErr("maxsize", fmt.Sprintf("must be positive, got %d", n), nil)
	}
	*c = Capacity(n)
	return nil
}

// MarshalYAML writes Unbounded back as the word "unbounded".
func (c Capacity) MarshalYAML() (any, error) {
	if c == Unbounded {
		return "unbounded", nil
	}
	return int(c), nil
}

func (c Capacity) String() string {
	if c == Unbounded {
		return "unbounded"
	}
	return strconv.Itoa(int(c))
}

// Config is the declarative form of the options, as read from a config file.
type Config struct {
	Name       string   `yaml:"name"`
	MaxSize    Capacity `yaml:"maxsize"`
	Typed      bool     `yaml:"typed"`
	Unhashable Policy   `yaml:"unhashable"`
}

// DefaultConfig returns a default memo configuration.
func DefaultConfig() Config {
	return Config{
		Name:       "memo",
		MaxSize:    DefaultMaxSize,
		Unhashable: PolicyWarning,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	return c.apply().validate()
}

// Options converts c to the equivalent option list.
func (c Config) Options() []Option {
	return []Option{
		WithName(c.Name),
		WithMaxSize(int(c.MaxSize)),
		WithTyped(c.Typed),
		WithUnhashable(c.Unhashable),
	}
}

func (c Config) apply() *options {
	return applyOptions(c.Options()...)
}

// NewFromConfig creates a Memo from cfg. Additional options (state, logger,
// metrics) are applied after the config and may override it.
func NewFromConfig[R any](fn Func[R], cfg Config, opts ...Option) (*Memo[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(fn, append(cfg.Options(), opts...)...)
}
