package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v3"

	"gomemo/internal/config"
	mylog "gomemo/internal/log"
	"gomemo/internal/memo"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// Signal-aware context is the root of ownership for long-running commands.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// app is the state shared by every subcommand once Before has run.
type app struct {
	cfg      config.File
	registry *prometheus.Registry
	out      io.Writer
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	a := &app{out: stdout}

	root := &cli.Command{
		Name:      "gomemo",
		Usage:     "Memoized computations behind a bounded LRU cache",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("GOMEMO_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, error or fatal (default: config, then $" + mylog.EnvLevel + ")",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "print Prometheus metrics when the command finishes",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return ctx, err
			}
			level := cfg.Log.Level
			if cmd.IsSet("log-level") {
				level = cmd.String("log-level")
			}
			if err := mylog.Init(level, stderr); err != nil {
				return ctx, err
			}
			a.cfg = cfg
			if cmd.Bool("metrics") {
				a.registry = prometheus.NewRegistry()
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			return a.dumpMetrics()
		},
		Commands: []*cli.Command{
			fibCommand(a),
			lruCommand(a),
			herdCommand(a),
		},
	}
	return root
}

// memoFlags are accepted by every command that builds a memo.
func memoFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "maxsize",
			Usage: "cache capacity (overrides config)",
		},
		&cli.BoolFlag{
			Name:  "unbounded",
			Usage: "never evict (overrides --maxsize)",
		},
		&cli.BoolFlag{
			Name:  "typed",
			Usage: "cache arguments of different types separately",
		},
	}
}

// memoConfig merges the config file with the command's memo flags.
func (a *app) memoConfig(cmd *cli.Command) memo.Config {
	cfg := a.cfg.Memo
	if cfg.Name == memo.DefaultConfig().Name {
		cfg.Name = cmd.Name
	}
	if cmd.IsSet("maxsize") {
		cfg.MaxSize = memo.Capacity(cmd.Int("maxsize"))
	}
	if cmd.Bool("unbounded") {
		cfg.MaxSize = memo.Unbounded
	}
	if cmd.IsSet("typed") {
		cfg.Typed = cmd.Bool("typed")
	}
	return cfg
}

func (a *app) memoOptions() []memo.Option {
	opts := []memo.Option{memo.WithLogger(log.Log)}
	if a.registry != nil {
		opts = append(opts, memo.WithMetrics(a.registry))
	}
	return opts
}

func (a *app) dumpMetrics() error {
	if a.registry == nil {
		return nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.out, mf); err != nil {
			return err
		}
	}
	return nil
}
