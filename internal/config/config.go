// Completion: 100% - Configuration loading complete
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
)

// DefaultFile is read from the working directory when no file is named.
const DefaultFile = "bfjit.toml"

// MaxTapeSize is the largest tape the bootstrap stub can map with one
// MOVZ and one MOVK.
const MaxTapeSize = 1<<32 - 1

// Config holds the settings shared by the CLI and the compiler pipeline.
// Precedence, lowest first: defaults, TOML file, environment, flags.
type Config struct {
	TapeSize int    `toml:"tape_size"`
	CodeSize int    `toml:"code_size"`
	Debug    bool   `toml:"debug"`
	CacheDir string `toml:"cache_dir"`
	Color    bool   `toml:"color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TapeSize: 30000,
		CodeSize: 4 << 20,
		Color:    true,
	}
}

// Load returns the defaults overlaid with the TOML file at path and then the
// environment. An empty path means DefaultFile if it exists. The result is
// not validated, since flags may still override it.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.mergeFile(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		} else {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		for i, k := range keys {
			keys[i] = describeUnknown(k)
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides settings from BFJIT_TAPE_SIZE, BFJIT_CODE_SIZE,
// BFJIT_DEBUG, BFJIT_CACHE_DIR and NO_COLOR.
func (c *Config) ApplyEnv() {
	env.Load() // refresh the cached environment
	c.TapeSize = env.Int("BFJIT_TAPE_SIZE", c.TapeSize)
	c.CodeSize = env.Int("BFJIT_CODE_SIZE", c.CodeSize)
	if env.Has("BFJIT_DEBUG") {
		c.Debug = env.Bool("BFJIT_DEBUG")
	}
	c.CacheDir = env.Str("BFJIT_CACHE_DIR", c.CacheDir)
	if env.Has("NO_COLOR") {
		c.Color = false
	}
}

// Validate checks that the sizes can be encoded and allocated.
func (c Config) Validate() error {
	if c.TapeSize < 1 || int64(c.TapeSize) > MaxTapeSize {
		return fmt.Errorf("tape size %d out of range [1, %d]", c.TapeSize, int64(MaxTapeSize))
	}
	if c.CodeSize <= 0 {
		return fmt.Errorf("code size %d must be positive", c.CodeSize)
	}
	return nil
}
