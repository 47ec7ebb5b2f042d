// Package config loads the rackdb command line configuration.
package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dolmen-go/contextio"
	"gopkg.in/yaml.v3"

	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/lock"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the file configuration of the command line.
type Config struct {
	Lock     Lock   `yaml:"lock"`
	IDType   string `yaml:"idType"`
	Log      Log    `yaml:"log"`
	Metrics  bool   `yaml:"metrics"`
	StateLog bool   `yaml:"stateLog"`
}

// Lock configures entry locks.
type Lock struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Log configures the logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Lock:   Lock{Timeout: lock.DefaultTimeout},
		IDType: idgenerator.TypeObjectID,
		Log:    Log{Level: "info", Format: FormatText},
	}
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(ctx context.Context, path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return Read(ctx, f)
}

// Read decodes a YAML configuration from r over the defaults. Values are
// weakly typed, so "3s" and "true" are accepted where a duration or a bool
// is expected.
func Read(ctx context.Context, r io.Reader) (Config, error) {
	raw, err := io.ReadAll(contextio.NewReader(ctx, r))
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg := Default()
	dec := decoder.NewDecoder(decoder.WithTagName("yaml"), decoder.WithWeaklyTyped(true))
	if err := dec.Decode(values, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that have a closed set of options.
func (c Config) Validate() error {
	if _, err := idgenerator.New(c.IDType); err != nil {
		return err
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Lock.Timeout < 0 {
		return fmt.Errorf("negative lock timeout %s", c.Lock.Timeout)
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return lvl, nil
}

// Logger builds the logger described by c, writing to w. When verbose is
// true the level is lowered to debug.
func (c Config) Logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
