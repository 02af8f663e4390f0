// Package key turns the arguments of a memoized call into a canonical,
// hashable cache key.
//
// A Key is built from, in order:
//   - the positional arguments
//   - the keyword arguments, sorted by name, as (name, value) pairs
//   - one type tag per argument when typed mode is enabled
//   - a snapshot of the auxiliary State, re-read on every Build
//
// Each segment after the positional one is introduced by a private marker
// value, so an argument list can never be mistaken for a keyword or state
// segment of another call.
//
// Arguments must either implement Hashable or be comparable at runtime
// (numbers, strings, pointers, structs of comparable fields, ...). Slices,
// maps and funcs are unhashable and make Build fail with ErrUnhashable.
package key
