package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"github.com/wallgarden/wallgarden/internal/listing"
	"github.com/wallgarden/wallgarden/internal/transform"
)

const (
	AppName        = "wallgarden"
	ConfigFileName = "config.toml"
	StateFileName  = "image_properties.json"

	ImagesDirName    = "images"
	OriginalsDirName = "original_images"

	DefaultCommunity       = "EarthPorn"
	DefaultIntervalMinutes = 10
	DefaultSchedulerLabel  = AppName
)

// DefaultResolution is used when neither the config nor the display
// detection provides one.
var DefaultResolution = transform.Resolution{Width: 2560, Height: 1440}

type StorageConfig struct {
	DataDir string `toml:"data-dir"`
	State   string `toml:"state"`
}

type ListingConfig struct {
	BaseURL        string            `toml:"base-url"`
	Community      string            `toml:"community"`
	Sort           listing.Sort      `toml:"sort"`
	Timeframe      listing.Timeframe `toml:"timeframe"`
	Limit          int               `toml:"limit"`
	TimeoutSeconds int               `toml:"timeout-seconds"`
}

type DownloadConfig struct {
	TimeoutSeconds int  `toml:"timeout-seconds"`
	UniqueNames    bool `toml:"unique-names"`
}

// DisplayConfig overrides the detected resolution when both values are set.
type DisplayConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type SlideshowConfig struct {
	IntervalMinutes int    `toml:"interval-minutes"`
	Pinned          bool   `toml:"pinned"`
	Label           string `toml:"label"`
}

type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Listing   ListingConfig   `toml:"listing"`
	Download  DownloadConfig  `toml:"download"`
	Display   DisplayConfig   `toml:"display"`
	Slideshow SlideshowConfig `toml:"slideshow"`

	configPath string
}

func DefaultConfigDir() string {
	return configdir.LocalConfig(AppName)
}

// DefaultDataDir follows XDG_DATA_HOME, falling back to ~/.local/share.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: DefaultDataDir(),
		},
		Listing: ListingConfig{
			BaseURL:        listing.DefaultBaseURL,
			Community:      DefaultCommunity,
			Sort:           listing.SortHot,
			Timeframe:      listing.TimeframeDay,
			Limit:          listing.DefaultLimit,
			TimeoutSeconds: int(listing.DefaultTimeout / time.Second),
		},
		Download: DownloadConfig{
			TimeoutSeconds: int(listing.DefaultDownloadTimeout / time.Second),
		},
		Slideshow: SlideshowConfig{
			IntervalMinutes: DefaultIntervalMinutes,
			Label:           DefaultSchedulerLabel,
		},
	}
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), ConfigFileName)
	}

	path = expandPath(path)

	cfg := DefaultConfig()
	cfg.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.postProcess()
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.postProcess()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) postProcess() {
	c.Storage.DataDir = expandPath(expandEnv(c.Storage.DataDir))
	c.Storage.State = expandPath(expandEnv(c.Storage.State))
	c.Listing.BaseURL = strings.TrimRight(expandEnv(c.Listing.BaseURL), "/")
	if c.Slideshow.Label == "" {
		c.Slideshow.Label = DefaultSchedulerLabel
	}
}

func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage: data-dir is required")
	}
	if c.Listing.BaseURL == "" {
		return fmt.Errorf("listing: base-url is required")
	}
	if _, err := listing.ParseSort(string(c.Listing.Sort)); err != nil {
		return fmt.Errorf("listing: %w", err)
	}
	if _, err := listing.ParseTimeframe(string(c.Listing.Timeframe)); err != nil {
		return fmt.Errorf("listing: %w", err)
	}
	if c.Listing.Limit <= 0 {
		return fmt.Errorf("listing: limit must be positive, got %d", c.Listing.Limit)
	}
	if c.Listing.TimeoutSeconds <= 0 {
		return fmt.Errorf("listing: timeout-seconds must be positive")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download: timeout-seconds must be positive")
	}
	if c.Display.Width < 0 || c.Display.Height < 0 || (c.Display.Width == 0) != (c.Display.Height == 0) {
		return fmt.Errorf("display: width and height must both be set or both be zero")
	}
	if c.Slideshow.IntervalMinutes <= 0 {
		return fmt.Errorf("slideshow: interval-minutes must be positive")
	}
	return nil
}

func (c *Config) ImagesDir() string {
	return filepath.Join(c.Storage.DataDir, ImagesDirName)
}

func (c *Config) OriginalsDir() string {
	return filepath.Join(c.Storage.DataDir, OriginalsDirName)
}

// StatePath defaults to the state file inside the data directory.
func (c *Config) StatePath() string {
	if c.Storage.State != "" {
		return c.Storage.State
	}
	return filepath.Join(c.Storage.DataDir, StateFileName)
}

// Resolution returns the configured override, zero when unset.
func (c *Config) Resolution() transform.Resolution {
	return transform.Resolution{Width: c.Display.Width, Height: c.Display.Height}
}

// ListingClient returns the client configuration for the listing service.
func (c *Config) ListingClient() listing.Config {
	return listing.Config{
		BaseURL:         c.Listing.BaseURL,
		Timeout:         time.Duration(c.Listing.TimeoutSeconds) * time.Second,
		DownloadTimeout: time.Duration(c.Download.TimeoutSeconds) * time.Second,
		Headers:         listing.BrowserHeaders,
	}
}

// DefaultQuery builds a query for community from the configured defaults.
// An empty community means the configured one.
func (c *Config) DefaultQuery(community string) listing.Query {
	if community == "" {
		community = c.Listing.Community
	}
	return listing.Query{
		Community: community,
		Sort:      c.Listing.Sort,
		Timeframe: c.Listing.Timeframe,
		Limit:     c.Listing.Limit,
	}
}

func (c *Config) SlideshowInterval() time.Duration {
	return time.Duration(c.Slideshow.IntervalMinutes) * time.Minute
}

func (c *Config) ConfigPath() string {
	return c.configPath
}

func (c *Config) Save(path string) error {
	if path == "" {
		path = c.configPath
	}
	if path == "" {
		path = filepath.Join(DefaultConfigDir(), ConfigFileName)
	}

	path = expandPath(path)

	if err := configdir.MakePath(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.ImagesDir(),
		c.OriginalsDir(),
		filepath.Dir(c.StatePath()),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandEnv resolves a value of the form $VAR, ${VAR} or ${VAR:-default}.
func expandEnv(s string) string {
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		inner := s[2 : len(s)-1]

		if idx := strings.Index(inner, ":-"); idx != -1 {
			varName := inner[:idx]
			defaultVal := inner[idx+2:]
			if val := os.Getenv(varName); val != "" {
				return val
			}
			return defaultVal
		}

		return os.Getenv(inner)
	}

	if strings.HasPrefix(s, "$") && !strings.Contains(s, " ") && !strings.Contains(s, "/") {
		return os.Getenv(s[1:])
	}

	return s
}
