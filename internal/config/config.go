// Package config loads server and pipeline settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/youruser/instagrid/internal/export"
	"github.com/youruser/instagrid/internal/grid"
	imagepkg "github.com/youruser/instagrid/internal/image"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const (
	StoreFile   = "file"
	StoreMemory = "memory"
)

type Config struct {
	Port            string `yaml:"port"`
	DataDir         string `yaml:"data_dir"`
	Store           string `yaml:"store"`
	StoreQuotaBytes int64  `yaml:"store_quota_bytes"`
	WatchDir        string `yaml:"watch_dir"`
	PublicURL       string `yaml:"public_url"`
	DefaultRatio    string `yaml:"default_ratio"`

	CellWidth           int           `yaml:"cell_width"`
	Scale               int           `yaml:"scale"`
	SettleDelay         time.Duration `yaml:"settle_delay"`
	DecodeTimeout       time.Duration `yaml:"decode_timeout"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout"`
	FetchRate           float64       `yaml:"fetch_rate"`
	FetchBurst          int           `yaml:"fetch_burst"`
	Concurrency         int           `yaml:"concurrency"`
	JPEGQuality         int           `yaml:"jpeg_quality"`
	Background          string        `yaml:"background"`
	JPEGTransparentFill string        `yaml:"jpeg_transparent_fill"`
}

func Default() Config {
	return Config{
		Port:                "8080",
		DataDir:             "data",
		Store:               StoreFile,
		DefaultRatio:        string(grid.Square),
		CellWidth:           220,
		Scale:               3,
		SettleDelay:         200 * time.Millisecond,
		DecodeTimeout:       15 * time.Second,
		FetchTimeout:        10 * time.Second,
		FetchRate:           5,
		FetchBurst:          5,
		Concurrency:         4,
		JPEGQuality:         export.DefaultJPEGQuality,
		Background:          imagepkg.HexColor(imagepkg.DefaultBackground),
		JPEGTransparentFill: imagepkg.HexColor(imagepkg.White),
	}
}

// Load applies, in order, the defaults, the YAML file at path (if path is
// set) and environment overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("INSTAGRID_PORT", &c.Port)
	str("INSTAGRID_DATA_DIR", &c.DataDir)
	str("INSTAGRID_STORE", &c.Store)
	str("INSTAGRID_WATCH_DIR", &c.WatchDir)
	str("INSTAGRID_PUBLIC_URL", &c.PublicURL)
	str("INSTAGRID_DEFAULT_RATIO", &c.DefaultRatio)
	str("INSTAGRID_BACKGROUND", &c.Background)
	str("INSTAGRID_JPEG_TRANSPARENT_FILL", &c.JPEGTransparentFill)

	var errs []error
	num := func(key string, set func(string) error) {
		if v, ok := lookup(key); ok && v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	atoi := func(dst *int) func(string) error {
		return func(v string) (err error) {
			*dst, err = strconv.Atoi(v)
			return err
		}
	}
	dur := func(dst *time.Duration) func(string) error {
		return func(v string) (err error) {
			*dst, err = time.ParseDuration(v)
			return err
		}
	}
	num("INSTAGRID_STORE_QUOTA_BYTES", func(v string) (err error) {
		c.StoreQuotaBytes, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	num("INSTAGRID_FETCH_RATE", func(v string) (err error) {
		c.FetchRate, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("INSTAGRID_CELL_WIDTH", atoi(&c.CellWidth))
	num("INSTAGRID_SCALE", atoi(&c.Scale))
	num("INSTAGRID_FETCH_BURST", atoi(&c.FetchBurst))
	num("INSTAGRID_CONCURRENCY", atoi(&c.Concurrency))
	num("INSTAGRID_JPEG_QUALITY", atoi(&c.JPEGQuality))
	num("INSTAGRID_SETTLE_DELAY", dur(&c.SettleDelay))
	num("INSTAGRID_DECODE_TIMEOUT", dur(&c.DecodeTimeout))
	num("INSTAGRID_FETCH_TIMEOUT", dur(&c.FetchTimeout))
	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Store != StoreFile && c.Store != StoreMemory {
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreFile, StoreMemory, c.Store))
	}
	if _, err := grid.ParseAspectRatio(c.DefaultRatio); err != nil {
		errs = append(errs, fmt.Errorf("default_ratio: %w", err))
	}
	if _, err := imagepkg.ParseColor(c.Background); err != nil {
		errs = append(errs, fmt.Errorf("background: %w", err))
	}
	if _, err := imagepkg.ParseColor(c.JPEGTransparentFill); err != nil {
		errs = append(errs, fmt.Errorf("jpeg_transparent_fill: %w", err))
	}
	if c.Scale < 1 || c.Scale > 4 {
		errs = append(errs, fmt.Errorf("scale must be between 1 and 4, got %d", c.Scale))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality))
	}
	return errors.Join(errs...)
}

// Ratio is the parsed default aspect ratio.
func (c Config) Ratio() grid.AspectRatio {
	r, err := grid.ParseAspectRatio(c.DefaultRatio)
	if err != nil {
		return grid.Square
	}
	return r
}

func (c Config) Layout() imagepkg.Layout {
	l := imagepkg.DefaultLayout()
	if c.CellWidth > 0 {
		l.CellWidth = c.CellWidth
	}
	return l
}

func (c Config) FetcherOptions() imagepkg.FetcherOptions {
	return imagepkg.FetcherOptions{
		Timeout:   c.FetchTimeout,
		RateLimit: rate.Limit(c.FetchRate),
		Burst:     c.FetchBurst,
	}
}

// ExportOptions assumes a validated config.
func (c Config) ExportOptions() export.Options {
	bg, _ := imagepkg.ParseColor(c.Background)
	fill, _ := imagepkg.ParseColor(c.JPEGTransparentFill)
	return export.Options{
		Layout:        c.Layout(),
		Scale:         c.Scale,
		SettleDelay:   c.SettleDelay,
		DecodeTimeout: c.DecodeTimeout,
		Concurrency:   c.Concurrency,
		JPEGQuality:   c.JPEGQuality,
		JPEGFill:      fill,
		Background:    bg,
	}
}
