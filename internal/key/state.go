package key

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// State is caller-owned auxiliary data folded into every key. Snapshot is
// called once per Build and must return the current contents; it is never
// cached. Synchronizing mutation of the underlying data with concurrent
// calls is the owner's job.
type State interface {
	Snapshot() []any
}

// StateFunc adapts a function to State.
type StateFunc func() []any

// Snapshot calls f.
func (f StateFunc) Snapshot() []any { return f() }

// NewState wraps v as a State without copying it. Accepted shapes:
//   - nil: no state
//   - a State or a func() []any
//   - a slice: element writes are visible, appends are not
//   - a pointer to a slice: element writes and appends are visible
//   - a non-nil map: snapshot is the (key, value) pairs sorted by key
//
// Anything else fails with ErrInvalidState.
func NewState(v any) (State, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case State:
		return s, nil
	case func() []any:
		return StateFunc(s), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return sliceState{v: rv}, nil
	case reflect.Pointer:
		if !rv.IsNil() && rv.Elem().Kind() == reflect.Slice {
			return sliceState{v: rv.Elem()}, nil
		}
	case reflect.Map:
		if !rv.IsNil() {
			return mapState{v: rv}, nil
		}
	}
	return nil, fmt.Errorf("%w: got %T", ErrInvalidState, v)
}

// sliceState reads a slice through reflection. When built from a pointer,
// v is the addressable element, so it follows reassignments of the slice
// header made through that pointer.
type sliceState struct {
	v reflect.Value
}

func (s sliceState) Snapshot() []any {
	out := make([]any, s.v.Len())
	for i := range out {
		out[i] = s.v.Index(i).Interface()
	}
	return out
}

type mapState struct {
	v reflect.Value
}

func (s mapState) Snapshot() []any {
	keys := s.v.MapKeys()
	slices.SortFunc(keys, compareKeys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k.Interface(), s.v.MapIndex(k).Interface())
	}
	return out
}

// compareKeys orders map keys deterministically: natively for ordered
// kinds, by formatted value otherwise.
func compareKeys(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	if b.Kind() == reflect.Interface {
		b = b.Elem()
	}
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.String:
			return cmp.Compare(a.String(), b.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		}
	}
	return cmp.Compare(describe(a), describe(b))
}

func describe(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	return fmt.Sprintf("%T:%v", v.Interface(), v.Interface())
}
