// Package config resolves server settings from the environment.
//
// Values come from process environment variables. When REQUIRE_ENV_VARS is
// set to "false", .env files are loaded first: one next to the executable,
// then one in the working directory, which overrides it. Variables already
// present in the environment are never replaced by the first file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset or empty.
const (
	DefaultAPIBase            = "https://open.bigmodel.cn/api/paas/v4"
	DefaultImageModel         = "glm-4.5v"
	DefaultLogLevel           = "INFO"
	DefaultMaxImageSizeMB     = 10
	DefaultMaxImageDimension  = 1024
	DefaultMaxImagePixels     = 2 * 89478485
	DefaultImageQuality       = 85
	DefaultRequestTimeout     = 120 * time.Second
	DefaultMaxConcurrentCalls = 4
)

// Config holds the resolved server settings.
type Config struct {
	// APIKey authenticates against the vision API (GLM_API_KEY).
	APIKey string

	// APIBase is the OpenAI-compatible base URL (GLM_API_BASE).
	APIBase string

	// Model is the vision model identifier (GLM_IMAGE_MODEL).
	Model string

	// LogLevel is one of DEBUG, INFO, WARN, ERROR (LOG_LEVEL).
	LogLevel string

	// LogFile, when set, receives a copy of every log line (LOG_FILE).
	LogFile string

	// MaxImageSize is the largest accepted image file in bytes (MAX_IMAGE_SIZE_MB).
	MaxImageSize int64

	// MaxImagePixels bounds width*height of a decoded image (MAX_IMAGE_PIXELS).
	MaxImagePixels int64

	// MaxImageDimension bounds the longest side after transcoding (MAX_IMAGE_DIMENSION).
	MaxImageDimension int

	// ImageQuality is the JPEG quality used for transcoding (IMAGE_QUALITY).
	ImageQuality int

	// RequestTimeout bounds a single vision API call; zero disables it (GLM_REQUEST_TIMEOUT).
	RequestTimeout time.Duration

	// MaxConcurrentCalls bounds in-flight tool calls (MAX_CONCURRENT_CALLS).
	MaxConcurrentCalls int

	// RequireEnvVars disables .env loading (REQUIRE_ENV_VARS, default true).
	RequireEnvVars bool

	// EnvFiles lists the .env files that were loaded, in order.
	EnvFiles []string
}

// Load reads the configuration from the environment, loading .env files
// first when REQUIRE_ENV_VARS=false. Malformed numeric or duration values and
// out-of-range limits are reported as errors; missing credentials are not
// (see ValidateClient).
func Load() (*Config, error) {
	cfg := &Config{RequireEnvVars: parseBool(os.Getenv("REQUIRE_ENV_VARS"), true)}

	if !cfg.RequireEnvVars {
		loaded, err := loadEnvFiles(envFileCandidates())
		if err != nil {
			return nil, err
		}
		cfg.EnvFiles = loaded
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("GLM_API_KEY"))
	cfg.APIBase = envOr("GLM_API_BASE", DefaultAPIBase)
	cfg.Model = envOr("GLM_IMAGE_MODEL", DefaultImageModel)
	cfg.LogLevel = strings.ToUpper(envOr("LOG_LEVEL", DefaultLogLevel))
	cfg.LogFile = os.Getenv("LOG_FILE")

	var errs []error

	sizeMB, err := envInt("MAX_IMAGE_SIZE_MB", DefaultMaxImageSizeMB)
	errs = append(errs, err)
	cfg.MaxImageSize = int64(sizeMB) * 1024 * 1024

	pixels, err := envInt("MAX_IMAGE_PIXELS", DefaultMaxImagePixels)
	errs = append(errs, err)
	cfg.MaxImagePixels = int64(pixels)

	cfg.MaxImageDimension, err = envInt("MAX_IMAGE_DIMENSION", DefaultMaxImageDimension)
	errs = append(errs, err)

	cfg.ImageQuality, err = envInt("IMAGE_QUALITY", DefaultImageQuality)
	errs = append(errs, err)

	cfg.MaxConcurrentCalls, err = envInt("MAX_CONCURRENT_CALLS", DefaultMaxConcurrentCalls)
	errs = append(errs, err)

	cfg.RequestTimeout, err = envDuration("GLM_REQUEST_TIMEOUT", DefaultRequestTimeout)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.validateLimits(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration: the vision client
// settings and the image and concurrency limits.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateClient(), c.validateLimits())
}

// ValidateClient reports every problem that prevents building a vision
// client. A nil result means a client can be built.
func (c *Config) ValidateClient() error {
	var errs []error

	if c.APIKey == "" {
		errs = append(errs, errors.New("GLM_API_KEY is not set"))
	}
	if !isHTTPURL(c.APIBase) {
		errs = append(errs, fmt.Errorf("GLM_API_BASE is not an http(s) URL: %q", c.APIBase))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("GLM_IMAGE_MODEL is not set"))
	}

	return errors.Join(errs...)
}

// validateLimits checks the image and concurrency limits. Load rejects a
// configuration that fails here.
func (c *Config) validateLimits() error {
	var errs []error

	if c.MaxImageSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_SIZE_MB must be positive, got %d", c.MaxImageSize/(1024*1024)))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_PIXELS must be positive, got %d", c.MaxImagePixels))
	}
	if c.MaxImageDimension <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_DIMENSION must be positive, got %d", c.MaxImageDimension))
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		errs = append(errs, fmt.Errorf("IMAGE_QUALITY must be between 1 and 100, got %d", c.ImageQuality))
	}
	if c.MaxConcurrentCalls <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CALLS must be positive, got %d", c.MaxConcurrentCalls))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("GLM_REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout))
	}

	return errors.Join(errs...)
}

// Summary returns a loggable view of the configuration. The API key itself
// is never included, only whether it is set.
func (c *Config) Summary() map[string]any {
	wd, _ := os.Getwd()
	return map[string]any{
		"api_base":             c.APIBase,
		"image_model":          c.Model,
		"log_level":            c.LogLevel,
		"log_file":             c.LogFile,
		"api_key_set":          c.APIKey != "",
		"max_image_size":       c.MaxImageSize,
		"max_image_pixels":     c.MaxImagePixels,
		"max_image_dimension":  c.MaxImageDimension,
		"image_quality":        c.ImageQuality,
		"request_timeout":      c.RequestTimeout.String(),
		"max_concurrent_calls": c.MaxConcurrentCalls,
		"require_env_vars":     c.RequireEnvVars,
		"env_files":            c.EnvFiles,
		"working_directory":    wd,
	}
}

func envFileCandidates() []string {
	var paths []string
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		paths = append(paths, filepath.Join(filepath.Dir(exe), ".env"))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, ".env"))
	}
	return paths
}

// loadEnvFiles loads the given files in order, skipping ones that do not
// exist. The first file only fills unset variables; later files override.
func loadEnvFiles(paths []string) ([]string, error) {
	var loaded []string
	seen := make(map[string]bool)

	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err == nil {
			p = abs
		}
		if seen[p] {
			continue
		}
		seen[p] = true

		if _, err := os.Stat(p); err != nil {
			continue
		}

		if i == 0 {
			err = godotenv.Load(p)
		} else {
			err = godotenv.Overload(p)
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	// Bare integers are seconds.
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func parseBool(raw string, fallback bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
