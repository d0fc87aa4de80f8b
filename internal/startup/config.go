package startup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"photoshelf/internal/filesystem"
	"photoshelf/internal/logging"
	"photoshelf/internal/media"
	"photoshelf/internal/tools"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfig is returned for any configuration that cannot be used to start
// the service.
var ErrConfig = errors.New("invalid configuration")

// Config holds all application configuration. Values are layered: defaults,
// then the optional YAML file, then .env, then the process environment.
type Config struct {
	UploadsDir      string        `yaml:"uploads_dir"`
	DatabaseDir     string        `yaml:"database_dir"`
	Port            string        `yaml:"port"`
	MetricsPort     string        `yaml:"metrics_port"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	LogLevel        string        `yaml:"log_level"`
	LogHealthChecks bool          `yaml:"log_health_checks"`
	ImageBackend    string        `yaml:"image_backend"`
	UseExiftool     bool          `yaml:"use_exiftool"`
	DeleteImported  bool          `yaml:"delete_imported"`
	SkipDuplicates  bool          `yaml:"skip_duplicates"`
	MediumMaxWidth  int           `yaml:"medium_max_width"`
	MediumMaxHeight int           `yaml:"medium_max_height"`
	SmallMaxWidth   int           `yaml:"small_max_width"`
	SmallMaxHeight  int           `yaml:"small_max_height"`
	DefaultLicense  string        `yaml:"default_license"`
	ToolTimeout     time.Duration `yaml:"tool_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ImportWorkers   int           `yaml:"import_workers"`

	// Derived paths
	BigDir       string `yaml:"-"`
	MediumDir    string `yaml:"-"`
	SmallDir     string `yaml:"-"`
	ThumbDir     string `yaml:"-"`
	DatabasePath string `yaml:"-"`

	// External tools found on PATH at startup
	ExiftoolAvailable bool `yaml:"-"`
	FFmpegAvailable   bool `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		UploadsDir:      "/uploads",
		DatabaseDir:     "/database",
		Port:            "8080",
		MetricsPort:     "9090",
		MetricsEnabled:  true,
		LogLevel:        "info",
		LogHealthChecks: true,
		ImageBackend:    media.BackendAuto,
		UseExiftool:     true,
		MediumMaxWidth:  1920,
		MediumMaxHeight: 1080,
		SmallMaxWidth:   0,
		SmallMaxHeight:  360,
		DefaultLicense:  "none",
		ToolTimeout:     tools.DefaultTimeout,
		MaxUploadBytes:  64 << 20,
	}
}

// LoadConfig loads, validates and prepares configuration. path names an
// optional YAML file; an empty path skips it. Every upload directory and
// the database directory must be writable, otherwise an error is returned.
func LoadConfig(path string) (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		logging.Info("  Config file:         %s", path)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logging.SetLevel(level)
	} else {
		logging.Warn("  Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
		logging.SetLevel(logging.LevelInfo)
	}

	cfg.logValues()

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.prepareDirectories(); err != nil {
		return nil, err
	}

	cfg.detectTools()

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:         ENABLED (required)")
	logging.Info("    Exiftool:         %s", enabledString(cfg.UseExiftool && cfg.ExiftoolAvailable))
	logging.Info("    Video thumbnails: %s", enabledString(cfg.FFmpegAvailable))
	logging.Info("    Metrics:          %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open config file: %w", ErrConfig, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode %s: %w", ErrConfig, path, err)
	}
	return nil
}

// loadDotEnv loads a .env file into the environment when one exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: stat %s: %w", ErrConfig, path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: load %s: %w", ErrConfig, path, err)
	}
	logging.Debug("  Loaded environment from %s", path)
	return nil
}

func (c *Config) applyEnv() {
	c.UploadsDir = getEnv("UPLOADS_DIR", c.UploadsDir)
	c.DatabaseDir = getEnv("DATABASE_DIR", c.DatabaseDir)
	c.Port = getEnv("PORT", c.Port)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	c.ImageBackend = strings.ToLower(getEnv("IMAGE_BACKEND", c.ImageBackend))
	c.UseExiftool = getEnvBool("USE_EXIFTOOL", c.UseExiftool)
	c.DeleteImported = getEnvBool("DELETE_IMPORTED", c.DeleteImported)
	c.SkipDuplicates = getEnvBool("SKIP_DUPLICATES", c.SkipDuplicates)
	c.MediumMaxWidth = getEnvInt("MEDIUM_MAX_WIDTH", c.MediumMaxWidth)
	c.MediumMaxHeight = getEnvInt("MEDIUM_MAX_HEIGHT", c.MediumMaxHeight)
	c.SmallMaxWidth = getEnvInt("SMALL_MAX_WIDTH", c.SmallMaxWidth)
	c.SmallMaxHeight = getEnvInt("SMALL_MAX_HEIGHT", c.SmallMaxHeight)
	c.DefaultLicense = getEnv("DEFAULT_LICENSE", c.DefaultLicense)
	c.ToolTimeout = getEnvDuration("TOOL_TIMEOUT", c.ToolTimeout)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.ImportWorkers = getEnvInt("IMPORT_WORKERS", c.ImportWorkers)
}

func (c *Config) validate() error {
	switch c.ImageBackend {
	case media.BackendAuto, media.BackendRich, media.BackendBasic:
	default:
		return fmt.Errorf("%w: IMAGE_BACKEND must be auto, rich or basic, got %q", ErrConfig, c.ImageBackend)
	}

	bounds := map[string]int{
		"MEDIUM_MAX_WIDTH":  c.MediumMaxWidth,
		"MEDIUM_MAX_HEIGHT": c.MediumMaxHeight,
		"SMALL_MAX_WIDTH":   c.SmallMaxWidth,
		"SMALL_MAX_HEIGHT":  c.SmallMaxHeight,
	}
	for name, v := range bounds {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrConfig, name)
		}
	}
	if c.MediumMaxWidth == 0 && c.MediumMaxHeight == 0 {
		return fmt.Errorf("%w: medium variant needs at least one bound", ErrConfig)
	}
	if c.SmallMaxWidth == 0 && c.SmallMaxHeight == 0 {
		return fmt.Errorf("%w: small variant needs at least one bound", ErrConfig)
	}

	if c.ToolTimeout <= 0 {
		return fmt.Errorf("%w: TOOL_TIMEOUT must be positive", ErrConfig)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES must be positive", ErrConfig)
	}
	if c.ImportWorkers < 0 {
		return fmt.Errorf("%w: IMPORT_WORKERS must not be negative", ErrConfig)
	}
	if c.DefaultLicense == "" {
		c.DefaultLicense = "none"
	}
	return nil
}

func (c *Config) logValues() {
	logging.Info("  UPLOADS_DIR:         %s", c.UploadsDir)
	logging.Info("  DATABASE_DIR:        %s", c.DatabaseDir)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  IMAGE_BACKEND:       %s", c.ImageBackend)
	logging.Info("  USE_EXIFTOOL:        %v", c.UseExiftool)
	logging.Info("  DELETE_IMPORTED:     %v", c.DeleteImported)
	logging.Info("  SKIP_DUPLICATES:     %v", c.SkipDuplicates)
	logging.Info("  MEDIUM bounds:       %dx%d", c.MediumMaxWidth, c.MediumMaxHeight)
	logging.Info("  SMALL bounds:        %dx%d", c.SmallMaxWidth, c.SmallMaxHeight)
	logging.Info("  DEFAULT_LICENSE:     %s", c.DefaultLicense)
	logging.Info("  TOOL_TIMEOUT:        %s", c.ToolTimeout)
	logging.Info("  MAX_UPLOAD_BYTES:    %s", formatBytes(c.MaxUploadBytes))
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func (c *Config) resolvePaths() error {
	uploadsDir, err := filepath.Abs(c.UploadsDir)
	if err != nil {
		return fmt.Errorf("failed to resolve uploads directory path: %w", err)
	}
	databaseDir, err := filepath.Abs(c.DatabaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	c.UploadsDir = uploadsDir
	c.DatabaseDir = databaseDir
	c.BigDir = filepath.Join(uploadsDir, "big")
	c.MediumDir = filepath.Join(uploadsDir, "medium")
	c.SmallDir = filepath.Join(uploadsDir, "small")
	c.ThumbDir = filepath.Join(uploadsDir, "thumb")
	c.DatabasePath = filepath.Join(databaseDir, "photoshelf.db")

	logging.Info("  Uploads directory (absolute):  %s", uploadsDir)
	logging.Info("  Database directory (absolute): %s", databaseDir)
	return nil
}

// prepareDirectories creates every required directory and probes it for
// write access. Any failure is fatal to startup.
func (c *Config) prepareDirectories() error {
	dirs := []struct {
		name string
		path string
	}{
		{"database", c.DatabaseDir},
		{"big", c.BigDir},
		{"medium", c.MediumDir},
		{"small", c.SmallDir},
		{"thumb", c.ThumbDir},
	}

	for _, d := range dirs {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return fmt.Errorf("%w: %s directory %s: %w", ErrConfig, d.name, d.path, err)
		}
		if err := filesystem.CheckWritable(d.path); err != nil {
			return fmt.Errorf("%w: %s directory %s is not writable: %w", ErrConfig, d.name, d.path, err)
		}
		logging.Info("  [OK] %-8s directory is writable", d.name)
	}
	return nil
}

func (c *Config) detectTools() {
	c.ExiftoolAvailable = tools.Available("exiftool")
	switch {
	case c.UseExiftool && !c.ExiftoolAvailable:
		logging.Warn("  exiftool not found in PATH, falling back to the built-in EXIF reader")
	case c.UseExiftool:
		if err := probeTool("exiftool", "-ver"); err != nil {
			logging.Warn("  exiftool check failed: %v", err)
		}
	}

	c.FFmpegAvailable = tools.Available("ffmpeg") && tools.Available("ffprobe")
	if !c.FFmpegAvailable {
		logging.Warn("  ffmpeg/ffprobe not found in PATH, video thumbnails will be skipped")
		return
	}
	if err := probeTool("ffmpeg", "-version"); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
