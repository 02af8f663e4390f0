package key

import (
	"encoding/binary"
	"hash/maphash"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Hashable is implemented by argument types that supply their own hash
// function and equality relation. Equal(b) must imply Hash() == b.Hash().
// Both methods are called without any cache lock held, but they must not
// block for long: a lookup waits on them.
type Hashable interface {
	Hash() uint64
	Equal(other any) bool
}

var seed = maphash.MakeSeed()

// Bounds of the float64 values that convert to int64 without overflow.
const (
	minInt64Float = -(1 << 63)
	maxInt64Float = 1 << 63
)

// normalize maps v to its canonical key component. Integral numbers of any
// Go numeric kind collapse to int64 (uint64 above MaxInt64) so that 1, int8(1)
// and 1.0 compare equal. It reports false for values that can be neither
// hashed nor compared.
func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case Hashable:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return fromUint(uint64(x)), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return fromUint(x), true
	case uintptr:
		return fromUint(uint64(x)), true
	case float32:
		return fromFloat(float64(x)), true
	case float64:
		return fromFloat(x), true
	case string, bool:
		return x, true
	}
	if !reflect.ValueOf(v).Comparable() {
		return nil, false
	}
	return v, true
}

func fromUint(u uint64) any {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func fromFloat(f float64) any {
	if f == math.Trunc(f) && f >= minInt64Float && f < maxInt64Float {
		return int64(f)
	}
	return f
}

// componentHash hashes one normalized component consistently with
// componentEqual.
func componentHash(v any) uint64 {
	if h, ok := v.(Hashable); ok {
		return h.Hash()
	}
	return maphash.Comparable(seed, v)
}

// componentEqual reports whether two normalized components are equal.
// Every non-Hashable component passed here was checked comparable by
// normalize, so == cannot panic.
func componentEqual(a, b any) bool {
	if h, ok := a.(Hashable); ok {
		return h.Equal(b)
	}
	if _, ok := b.(Hashable); ok {
		return false
	}
	return a == b
}

func hashParts(parts []any) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], componentHash(p))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
