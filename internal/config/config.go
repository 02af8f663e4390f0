// Package config loads the gomemo YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"

	"gomemo/internal/memo"
)

// File is the top-level document.
//
//	memo:
//	  name: fib
//	  maxsize: 325        # or "unbounded"
//	  typed: false
//	  unhashable: warning # error | warning | ignore
//	log:
//	  level: info
//	report:
//	  every: 1s
type File struct {
	Memo   memo.Config `yaml:"memo"`
	Log    Log         `yaml:"log"`
	Report Report      `yaml:"report"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Report controls periodic stats output; zero disables it.
type Report struct {
	Every time.Duration `yaml:"every"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{Memo: memo.DefaultConfig()}
}

// Load reads the file at path over the defaults. An empty path yields the
// defaults unchanged.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Memo.Validate(); err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Report.Every < 0 {
		return File{}, fmt.Errorf("config %s: report.every must not be negative", path)
	}

	log.WithFields(log.Fields{
		"path":    path,
		"maxsize": cfg.Memo.MaxSize,
		"typed":   cfg.Memo.Typed,
	}).Debug("loaded config")
	return cfg, nil
}
