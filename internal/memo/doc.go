// Package memo memoizes deterministic computations behind a bounded,
// least-recently-used cache.
//
//	var fib *memo.Memo[int]
//	fib, err := memo.New(func(a key.Args) (int, error) {
//		n := a.Arg(0).(int)
//		if n < 2 {
//			return n, nil
//		}
//		x, err := fib.Call(n - 1)
//		if err != nil {
//			return 0, err
//		}
//		y, err := fib.Call(n - 2)
//		return x + y, err
//	}, memo.WithMaxSize(325))
//
// A call builds a key from its arguments (see package key), looks it up,
// and on a miss runs the computation without holding any lock before
// storing the result. Stats reports (hits, misses, maxsize, currsize);
// Clear resets entries and counters together.
//
// Arguments that cannot be hashed are handled by the Policy given with
// WithUnhashable: fail the call, or run the computation uncached with or
// without a logged warning.
package memo
