// Package config loads OtoAnaliz settings from .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"otoanaliz/gateway"
	"otoanaliz/gemini"
	"otoanaliz/geo"
)

// DefaultUpdateRepo is the GitHub slug the update command checks
const DefaultUpdateRepo = "otoanaliz/otoanaliz"

// Config holds every runtime setting
type Config struct {
	APIKey        string
	BaseURL       string
	Models        gateway.Models
	Timeout       time.Duration
	LogFile       string
	Lat           string
	Lng           string
	ChatTransport gateway.ChatTransport
	Debug         bool
	UpdateRepo    string
}

// apiKeyVars are checked in order; the first non-empty value wins
var apiKeyVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

// Load reads .env files (missing files are ignored) and then the environment.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		BaseURL:    strings.TrimSpace(getenv("GEMINI_BASE_URL")),
		Timeout:    gemini.DefaultTimeout,
		LogFile:    getenv("OTOANALIZ_LOG_FILE"),
		Lat:        getenv("OTOANALIZ_LAT"),
		Lng:        getenv("OTOANALIZ_LNG"),
		UpdateRepo: getenv("OTOANALIZ_UPDATE_REPO"),
		Models: gateway.Models{
			Vision: getenv("OTOANALIZ_VISION_MODEL"),
			Price:  getenv("OTOANALIZ_PRICE_MODEL"),
			Maps:   getenv("OTOANALIZ_MAPS_MODEL"),
			Chat:   getenv("OTOANALIZ_CHAT_MODEL"),
			Live:   getenv("OTOANALIZ_LIVE_MODEL"),
		},
	}
	for _, name := range apiKeyVars {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			cfg.APIKey = v
			break
		}
	}

	var errs []error
	if v := getenv("OTOANALIZ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("OTOANALIZ_TIMEOUT %q: want a positive duration such as 90s", v))
		} else {
			cfg.Timeout = d
		}
	}
	if v := getenv("OTOANALIZ_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTOANALIZ_DEBUG %q: %w", v, err))
		}
		cfg.Debug = b
	}
	transport, err := gateway.ParseChatTransport(getenv("OTOANALIZ_CHAT_TRANSPORT"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ChatTransport = transport

	if cfg.UpdateRepo == "" {
		cfg.UpdateRepo = DefaultUpdateRepo
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile()
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CheckConfig validates that the settings needed for AI calls are present
func (c *Config) CheckConfig() error {
	if c.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	if _, err := geo.ParsePosition(c.Lat, c.Lng); err != nil && !errors.Is(err, geo.ErrPermissionDenied) {
		return fmt.Errorf("OTOANALIZ_LAT/OTOANALIZ_LNG: %w", err)
	}
	return nil
}

// Locator returns the position source for nearby lookups
func (c *Config) Locator() (geo.Locator, error) {
	return geo.FromStrings(c.Lat, c.Lng)
}

// NewClient builds the Gemini client described by the config
func (c *Config) NewClient(logger *slog.Logger, opts ...gemini.ClientOption) (*gemini.Client, error) {
	base := []gemini.ClientOption{
		gemini.WithTimeout(c.Timeout),
		gemini.WithDebug(c.Debug),
		gemini.WithLogger(logger),
	}
	if c.BaseURL != "" {
		base = append(base, gemini.WithBaseURL(c.BaseURL))
	}
	return gemini.NewClient(c.APIKey, append(base, opts...)...)
}

// GatewayOptions returns the gateway options described by the config
func (c *Config) GatewayOptions(logger *slog.Logger) gateway.Options {
	return gateway.Options{
		Models:        c.Models,
		Logger:        logger,
		ChatTransport: c.ChatTransport,
	}
}

// GetAPIKeyHelp returns help text for setting up the Gemini API key
func GetAPIKeyHelp() string {
	return `To use OtoAnaliz, you need a Google Gemini API key.

Option 1: Create a .env file in the working directory:
  cp .env.example .env
  # Then edit .env and set GEMINI_API_KEY

Option 2: Set environment variables:
  export GEMINI_API_KEY="your-api-key"
  export OTOANALIZ_LAT="41.0082"   # optional, enables nearby services
  export OTOANALIZ_LNG="28.9784"

Get a key from https://aistudio.google.com/apikey`
}

// DefaultLogFile is otoanaliz.log in the user cache directory, or in the
// temp directory when no cache directory is available.
func DefaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "otoanaliz", "otoanaliz.log")
}

// NewLogger opens path for appending and returns a text logger writing to
// it. The returned closer releases the file. An empty path discards logs.
func NewLogger(path string, debug bool) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, f, nil
}
