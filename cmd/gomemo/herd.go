package main

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"gomemo/internal/cache"
	"gomemo/internal/key"
	"gomemo/internal/memo"
)

// herdCommand runs many workers over a small key space with a slow
// computation. Concurrent misses on one key each run the computation; the
// command reports how much work was duplicated.
func herdCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "herd",
		Usage: "hammer a memo from concurrent workers and report duplicated work",
		Flags: append(memoFlags(),
			&cli.IntFlag{Name: "workers", Value: 8, Usage: "concurrent callers"},
			&cli.IntFlag{Name: "keys", Value: 16, Usage: "distinct arguments"},
			&cli.IntFlag{Name: "calls", Value: 1000, Usage: "calls per worker"},
			&cli.DurationFlag{Name: "delay", Value: time.Millisecond, Usage: "cost of one computation"},
			&cli.DurationFlag{Name: "report", Usage: "log stats at this interval (overrides config)"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			workers, keys, calls := cmd.Int("workers"), cmd.Int("keys"), cmd.Int("calls")
			if workers <= 0 || keys <= 0 || calls < 0 {
				return fmt.Errorf("workers and keys must be positive, calls must not be negative")
			}
			delay := cmd.Duration("delay")

			cfg := a.memoConfig(cmd)
			m, err := memo.NewFromConfig(func(args key.Args) (int, error) {
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				case <-time.After(delay):
				}
				n := args.Arg(0).(int)
				return n * n, nil
			}, cfg, a.memoOptions()...)
			if err != nil {
				return err
			}

			every := a.cfg.Report.Every
			if cmd.IsSet("report") {
				every = cmd.Duration("report")
			}
			reportCtx, stopReport := context.WithCancel(ctx)
			defer stopReport()
			go m.Cache().Report(reportCtx, every, func(s cache.Stats) {
				log.WithFields(log.Fields{
					"hits":      s.Hits,
					"misses":    s.Misses,
					"evictions": s.Evictions,
					"size":      s.Size,
				}).Info("stats")
			})

			start := time.Now()
			g, gctx := errgroup.WithContext(ctx)
			for w := range workers {
				g.Go(func() error {
					for i := range calls {
						if err := gctx.Err(); err != nil {
							return err
						}
						n := (w + i) % keys
						v, err := m.Call(n)
						if err != nil {
							return err
						}
						if v != n*n {
							return fmt.Errorf("worker %d: f(%d) = %d", w, n, v)
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			s := m.Stats()
			total := int64(s.Hits + s.Misses)
			fmt.Fprintf(a.out, "%s calls in %s\n", humanize.Comma(total), time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(a.out, "%s\n", s)
			// Without evictions every miss beyond the first per argument was
			// a concurrent duplicate.
			distinct := 0
			if calls > 0 {
				distinct = min(keys, calls+workers-1)
			}
			if s.Evictions == 0 && int(s.Misses) > distinct {
				fmt.Fprintf(a.out, "duplicated computations: %s\n", humanize.Comma(int64(s.Misses)-int64(distinct)))
			}
			return nil
		},
	}
}
