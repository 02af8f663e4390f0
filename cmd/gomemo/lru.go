package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"gomemo/internal/key"
	"gomemo/internal/memo"
)

// lruCommand walks through one eviction with capacity 2: a and b are
// stored, a is touched, so c evicts b.
func lruCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "lru",
		Usage: "show least-recently-used eviction on a two-entry memo",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := a.cfg.Memo
			cfg.Name = cmd.Name
			cfg.MaxSize = 2

			upper, err := memo.NewFromConfig(func(args key.Args) (string, error) {
				s := args.Arg(0).(string)
				fmt.Fprintf(a.out, "  compute %q\n", s)
				return strings.ToUpper(s), nil
			}, cfg, a.memoOptions()...)
			if err != nil {
				return err
			}

			call := func(s, note string) error {
				v, err := upper.Call(s)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "call %s = %q (%s)\n", s, v, note)
				return nil
			}

			steps := []struct{ arg, note string }{
				{"a", "miss"},
				{"b", "miss"},
				{"a", "hit, a becomes MRU"},
				{"c", "miss, evicts b as LRU"},
				{"b", "miss again, evicts a"},
			}
			for _, s := range steps {
				if err := call(s.arg, s.note); err != nil {
					return err
				}
			}

			fmt.Fprintf(a.out, "keys (MRU->LRU): %v\n", upper.Cache().Keys())
			fmt.Fprintf(a.out, "%s\n", upper.Stats())
			return nil
		},
	}
}
