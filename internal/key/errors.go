package key

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnhashable reports a key component that can be neither hashed nor compared.
	ErrUnhashable = errors.New("unhashable argument")

	// ErrInvalidState reports auxiliary state of an unsupported shape.
	ErrInvalidState = errors.New("state must be a slice, pointer to slice, map or State")
)

// Segment names the part of a key an unhashable component came from.
type Segment string

const (
	SegmentPositional Segment = "positional"
	SegmentKeyword    Segment = "keyword"
	SegmentState      Segment = "state"
)

// UnhashableError describes the first unhashable component found by Build.
type UnhashableError struct {
	Segment Segment
	Index   int    // position within the segment
	Keyword string // set for SegmentKeyword
	Type    reflect.Type
}

func (e *UnhashableError) Error() string {
	if e.Segment == SegmentKeyword {
		return fmt.Sprintf("unhashable keyword argument %q of type %v", e.Keyword, e.Type)
	}
	return fmt.Sprintf("unhashable %s argument %d of type %v", e.Segment, e.Index, e.Type)
}

// Is makes errors.Is(err, ErrUnhashable) hold for every UnhashableError.
func (e *UnhashableError) Is(target error) bool {
	return target == ErrUnhashable
}
