package key

import (
	"fmt"
	"reflect"
	"strings"
)

// marker separates the segments of a Key.
type marker uint8

const (
	keywordMark marker = iota + 1
	typeMark
	stateMark
)

func (m marker) String() string {
	switch m {
	case keywordMark:
		return "<kw>"
	case typeMark:
		return "<types>"
	case stateMark:
		return "<state>"
	default:
		return "<?>"
	}
}

// Key is an immutable, canonical cache key. The zero Key is the key of a
// call with no arguments and no state.
type Key struct {
	parts []any
	hash  uint64
}

// Hash returns the precomputed hash of k.
func (k Key) Hash() uint64 { return k.hash }

// Len returns the number of components in k, markers included.
func (k Key) Len() int { return len(k.parts) }

// Equal reports whether every component of k equals the matching
// component of o.
func (k Key) Equal(o Key) bool {
	if k.hash != o.hash || len(k.parts) != len(o.parts) {
		return false
	}
	for i := range k.parts {
		if !componentEqual(k.parts[i], o.parts[i]) {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range k.parts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, p)
	}
	b.WriteByte(')')
	return b.String()
}

// Builder builds keys for one memoized function. It is safe for
// concurrent use as long as the State it reads is.
type Builder struct {
	typed bool
	state State
}

// NewBuilder returns a Builder. state may be nil.
func NewBuilder(typed bool, state State) *Builder {
	return &Builder{typed: typed, state: state}
}

// Typed reports whether keys carry per-argument type tags.
func (b *Builder) Typed() bool { return b.typed }

// Build returns the key for args. It fails with an *UnhashableError when a
// component can be neither hashed nor compared.
func (b *Builder) Build(args Args) (Key, error) {
	names := args.keywordNames()

	size := len(args.Positional) + 2*len(names)
	if len(names) > 0 {
		size++
	}
	if b.typed {
		size += 1 + len(args.Positional) + len(names)
	}
	var snapshot []any
	if b.state != nil {
		snapshot = b.state.Snapshot()
		size += 1 + len(snapshot)
	}

	parts := make([]any, 0, size)
	for i, v := range args.Positional {
		c, ok := normalize(v)
		if !ok {
			return Key{}, &UnhashableError{Segment: SegmentPositional, Index: i, Type: reflect.TypeOf(v)}
		}
		parts = append(parts, c)
	}

	if len(names) > 0 {
		parts = append(parts, keywordMark)
		for i, name := range names {
			v := args.Keyword[name]
			c, ok := normalize(v)
			if !ok {
				return Key{}, &UnhashableError{Segment: SegmentKeyword, Index: i, Keyword: name, Type: reflect.TypeOf(v)}
			}
			parts = append(parts, name, c)
		}
	}

	if b.typed {
		parts = append(parts, typeMark)
		for _, v := range args.Positional {
			parts = append(parts, typeTag(v))
		}
		for _, name := range names {
			parts = append(parts, typeTag(args.Keyword[name]))
		}
	}

	if b.state != nil {
		parts = append(parts, stateMark)
		for i, v := range snapshot {
			c, ok := normalize(v)
			if !ok {
				return Key{}, &UnhashableError{Segment: SegmentState, Index: i, Type: reflect.TypeOf(v)}
			}
			parts = append(parts, c)
		}
	}

	return Key{parts: parts, hash: hashParts(parts)}, nil
}

// typeTag returns the runtime type of v as a comparable component. A nil
// argument is tagged with a nil type.
func typeTag(v any) any {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	return t
}
