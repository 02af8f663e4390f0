package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"gomemo/internal/key"
	"gomemo/internal/memo"
)

func fibCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "fib",
		Usage: "compute a Fibonacci number through a recursive memo and print cache stats",
		Flags: append(memoFlags(),
			&cli.IntFlag{
				Name:  "n",
				Value: 300,
				Usage: "index to compute",
			},
			&cli.IntFlag{
				Name:  "repeat",
				Value: 1,
				Usage: "clear the memo and recompute this many times",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n := cmd.Int("n")
			if n < 0 {
				return fmt.Errorf("n must not be negative, got %d", n)
			}

			fib, err := newFibMemo(a.memoConfig(cmd), a.memoOptions()...)
			if err != nil {
				return err
			}

			for round := 1; round <= max(cmd.Int("repeat"), 1); round++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				v, err := fib.Call(n)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "fib(%d) = %s\n", n, humanize.BigComma(v))
				fmt.Fprintf(a.out, "%s\n", fib.Stats())
				log.WithField("round", round).Debug("fib computed")
				fib.Clear()
			}
			return nil
		},
	}
}

// newFibMemo returns fib(n) = fib(n-1) + fib(n-2), recursing through the
// memo itself.
func newFibMemo(cfg memo.Config, opts ...memo.Option) (*memo.Memo[*big.Int], error) {
	var fib *memo.Memo[*big.Int]
	fib, err := memo.NewFromConfig(func(args key.Args) (*big.Int, error) {
		n := args.Arg(0).(int)
		if n < 2 {
			return big.NewInt(int64(n)), nil
		}
		x, err := fib.Call(n - 1)
		if err != nil {
			return nil, err
		}
		y, err := fib.Call(n - 2)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Add(x, y), nil
	}, cfg, opts...)
	return fib, err
}
