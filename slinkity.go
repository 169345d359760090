// Package slinkity adds islands partial hydration to a static-site
// generator. Component usages found while templates compile become
// islands; after each page renders, their markers are replaced with
// server-rendered markup, and islands that hydrate get a bootstrap script
// that loads the component when its load condition fires.
package slinkity

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Version is the current version of slinkity.
const Version = "0.1.0"

// Config holds the build configuration, usually read from slinkity.yaml.
type Config struct {
	// Input is the site source directory.
	Input string `yaml:"input" validate:"required"`
	// Output is the build directory.
	Output string `yaml:"output" validate:"required"`
	// ComponentDir holds island components. Relative paths are resolved
	// against Input.
	ComponentDir string `yaml:"componentDir" validate:"required"`
	// Dev enables the development server behavior: virtual props module,
	// live reload and the error overlay.
	Dev bool `yaml:"dev"`
	// Addr is the development server address.
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// Concurrency bounds parallel page and island renders. 0 means the
	// defaults of each stage.
	Concurrency int `yaml:"concurrency" validate:"gte=0,lte=256"`

	Renderers []RendererConfig `yaml:"renderers" validate:"dive"`
	Sidecar   SidecarConfig    `yaml:"sidecar"`
	Cache     CacheConfig      `yaml:"cache"`
	Redis     RedisConfig      `yaml:"redis"`
	Publish   PublishConfig    `yaml:"publish"`
	Metrics   bool             `yaml:"metrics"`

	Logger *slog.Logger `yaml:"-"`
}

// RendererConfig declares a renderer served by the sidecar process.
type RendererConfig struct {
	Name       string   `yaml:"name" validate:"required"`
	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,required"`
	// Client is the browser entrypoint. Empty means server-only.
	Client string `yaml:"client"`
	SSR    bool   `yaml:"ssr"`
	Page   bool   `yaml:"page"`
}

// SidecarConfig starts or dials the bundler/renderer process.
type SidecarConfig struct {
	// Command starts the sidecar. Empty means dial Socket.
	Command      []string      `yaml:"command"`
	Socket       string        `yaml:"socket"`
	StartTimeout time.Duration `yaml:"startTimeout" validate:"gte=0"`
}

// CacheConfig controls the island render cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// RedisConfig selects Redis for the render cache and reload messages.
type RedisConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
	DB   int    `yaml:"db" validate:"gte=0"`
}

// PublishConfig uploads the build output to S3 when Bucket is set.
type PublishConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region" validate:"required_with=Bucket"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	Prefix   string `yaml:"prefix"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Input:        ".",
		Output:       "_site",
		ComponentDir: "_components",
		Addr:         "localhost:8080",
		Cache:        CacheConfig{TTL: 10 * time.Minute},
		Sidecar:      SidecarConfig{StartTimeout: 10 * time.Second},
	}
}

var validate = validator.New()

// Validate checks c for missing or malformed settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q validation", v.Namespace(), v.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.Renderers) > 0 && len(c.Sidecar.Command) == 0 && c.Sidecar.Socket == "" {
		return errors.New("invalid config: renderers need a sidecar command or socket")
	}
	return nil
}

// Load reads a YAML config file over DefaultConfig and validates it.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
