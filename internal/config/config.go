// Package config reads the optional TOML file holding the command line defaults.
package config

import (
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/CalebQ42/unpack/engine"
	units "github.com/docker/go-units"
	"github.com/pkg/errors"
)

// Config holds defaults for the unpack command. Flags given on the command line win.
type Config struct {
	Codec   string `toml:"codec"`   // zstd or lz4, used when the input can't be sniffed.
	MaxMem  string `toml:"max_mem"` // Collect output in memory up to this size, e.g. "64MiB".
	Jobs    int    `toml:"jobs"`
	Verbose bool   `toml:"verbose"`
	Keep    bool   `toml:"keep"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	jobs := runtime.NumCPU() / 2
	if jobs < 1 {
		jobs = 1
	}
	return &Config{
		Codec: string(engine.Zstd),
		Jobs:  jobs,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if und := md.Undecoded(); len(und) > 0 {
		return nil, errors.Errorf("config %s: unknown keys %v", path, und)
	}
	return c, c.Validate()
}

// Validate checks the values that can be wrong.
func (c *Config) Validate() error {
	if _, err := engine.ParseCodec(c.Codec); err != nil {
		return err
	}
	if _, err := c.MaxMemBytes(); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return errors.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	return nil
}

// MaxMemBytes parses MaxMem. An empty MaxMem is 0, meaning no in memory output.
func (c *Config) MaxMemBytes() (int64, error) {
	if c.MaxMem == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.MaxMem)
	if err != nil {
		return 0, errors.Wrap(err, "max_mem")
	}
	if n < 0 {
		return 0, errors.Errorf("max_mem must not be negative, got %s", c.MaxMem)
	}
	return n, nil
}
