// Package config loads go-affect settings from a YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, AFFECT_*
// environment variables. Command-line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/pipeline"
	"github.com/teslashibe/go-affect/pkg/web"
)

// Environment variables read by Load.
const (
	EnvConfig            = "AFFECT_CONFIG"
	EnvCameraIndex       = "AFFECT_CAMERA_INDEX"
	EnvCameraBackend     = "AFFECT_CAMERA_BACKEND"
	EnvDetectorBackend   = "AFFECT_DETECTOR_BACKEND"
	EnvClassifierBackend = "AFFECT_CLASSIFIER_BACKEND"
	EnvModelsDir         = "AFFECT_MODELS_DIR"
	EnvLogLevel          = "AFFECT_LOG_LEVEL"
	EnvPort              = "AFFECT_PORT"
)

// ErrInvalid is returned for unparseable files or environment values.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// ModelsDir relocates relative model paths. Empty keeps them as written.
	ModelsDir string `yaml:"models_dir"`

	// CatalogPath overrides the built-in emotion catalog.
	CatalogPath string `yaml:"catalog_path"`

	// AutoStart begins a session at startup instead of waiting for the dashboard.
	AutoStart bool `yaml:"auto_start"`

	Pipeline pipeline.Config `yaml:"pipeline"`
	Web      web.Config      `yaml:"web"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		AutoStart: true,
		Pipeline:  pipeline.DefaultConfig(),
		Web:       web.DefaultConfig(),
	}
}

// Load reads path, or the file named by AFFECT_CONFIG when path is empty,
// over the defaults, then applies environment overrides. No file is fine.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	cfg.ResolveModels()
	return cfg, nil
}

// Parse decodes YAML over cfg. Fields absent from data keep their values.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ApplyEnv applies AFFECT_* overrides.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvCameraIndex); v != "" {
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalid, EnvCameraIndex, v)
		}
		c.Pipeline.Camera.DeviceIndex = idx
	}
	if v := os.Getenv(EnvCameraBackend); v != "" {
		c.Pipeline.Camera.Backend = camera.Backend(v)
	}
	if v := os.Getenv(EnvDetectorBackend); v != "" {
		c.Pipeline.Detector.Backend = detection.Backend(v)
	}
	if v := os.Getenv(EnvClassifierBackend); v != "" {
		c.Pipeline.Classifier.Backend = classifier.Backend(v)
	}
	if v := os.Getenv(EnvModelsDir); v != "" {
		c.ModelsDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		c.Web.Port = v
	}
	return nil
}

// ResolveModels moves relative model paths into ModelsDir, keeping file names.
func (c *Config) ResolveModels() {
	if c.ModelsDir == "" {
		return
	}
	c.Pipeline.Detector.CascadePath = c.relocate(c.Pipeline.Detector.CascadePath)
	c.Pipeline.Detector.ModelPath = c.relocate(c.Pipeline.Detector.ModelPath)
	c.Pipeline.Classifier.ModelPath = c.relocate(c.Pipeline.Classifier.ModelPath)
}

func (c *Config) relocate(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ModelsDir, filepath.Base(p))
}

// Validate checks the pipeline settings.
func (c Config) Validate() error {
	if c.Web.Port == "" {
		return fmt.Errorf("%w: web port is empty", ErrInvalid)
	}
	return c.Pipeline.Validate()
}
