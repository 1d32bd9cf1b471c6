package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultMaxFileSize    = 10 * 1024 * 1024 // 10MB
	DefaultAIBaseURL      = "https://api.anthropic.com/v1/"
	DefaultAIModel        = "claude-3-5-haiku-20241022"
	DefaultAITimeout      = 60 * time.Second
	DefaultAIMaxRetries   = 2
	DefaultRedisTTL       = 24 * time.Hour
	DefaultSoffice        = "soffice"
	DefaultConvertTimeout = 30 * time.Second

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "SAISINE"
)

// AIConfig holds the model endpoint settings
type AIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // requests per second, 0 for unlimited
}

// Config holds all configuration for the referral server and CLI
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document directories
	Directory       string // uploads and watched inbox
	OutputDirectory string // rendered PDFs
	Watch           bool

	// Logging
	LogLevel  string
	LogFormat string

	MaxFileSize int64 // bytes

	AI AIConfig

	DatabaseURL string // empty for the in-memory store
	RedisURL    string // empty disables the AI cache
	RedisTTL    time.Duration

	// Rendering
	FicheTemplate   string
	AnalyseTemplate string
	Soffice         string
	ConvertTimeout  time.Duration

	// Request catalog
	CatalogPath string // empty for the built-in catalog
	FoldAccents bool

	ConfigFile string

	// Application configuration
	Version    string
	ServerName string

	v *viper.Viper
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio, // Default to stdio mode for MCP compatibility
		Host:            DefaultHost,
		Port:            DefaultPort,
		Directory:       currentDir,
		OutputDirectory: filepath.Join(currentDir, "output"),
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		MaxFileSize:     DefaultMaxFileSize,
		AI: AIConfig{
			BaseURL:    DefaultAIBaseURL,
			Model:      DefaultAIModel,
			Timeout:    DefaultAITimeout,
			MaxRetries: DefaultAIMaxRetries,
		},
		RedisTTL:       DefaultRedisTTL,
		Soffice:        DefaultSoffice,
		ConvertTimeout: DefaultConvertTimeout,
		Version:        "1.0.0",
		ServerName:     "saisine-prd",
	}
}

// LoadFromFlags parses the process command line and returns a configuration
func LoadFromFlags() (*Config, error) {
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(os.Args[1:]); err != nil {
		return nil, err
	}

	return Load(pflag.CommandLine, os.Args[1:])
}

// Load defines the configuration flags on fs, parses args and merges flags,
// SAISINE_* environment variables, the optional --config file and defaults,
// in that order of precedence.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	DefineFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := BindFlags(v, fs); err != nil {
		return nil, err
	}

	return fromViper(v)
}

// LoadFlagSet reads a configuration from a flag set that was already parsed,
// e.g. by a command framework. The flags must have been defined with
// DefineFlags.
func LoadFlagSet(fs *pflag.FlagSet) (*Config, error) {
	v := newViper(DefaultConfig())
	if err := BindFlags(v, fs); err != nil {
		return nil, err
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	populateConfigFromViper(v, cfg)
	cfg.v = v

	expandPaths(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// newViper configures a viper instance with environment variables and defaults
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.Directory)
	v.SetDefault("output", cfg.OutputDirectory)
	v.SetDefault("watch", cfg.Watch)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("logformat", cfg.LogFormat)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
	v.SetDefault("ai.base_url", cfg.AI.BaseURL)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", cfg.AI.Model)
	v.SetDefault("ai.timeout", cfg.AI.Timeout)
	v.SetDefault("ai.max_retries", cfg.AI.MaxRetries)
	v.SetDefault("ai.rate_limit", cfg.AI.RateLimit)
	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", cfg.RedisTTL)
	v.SetDefault("template", "")
	v.SetDefault("analyse_template", "")
	v.SetDefault("soffice", cfg.Soffice)
	v.SetDefault("convert_timeout", cfg.ConvertTimeout)
	v.SetDefault("catalog", "")
	v.SetDefault("fold_accents", cfg.FoldAccents)
	v.SetDefault("config", "")
	return v
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"mode":             "mode",
	"host":             "host",
	"port":             "port",
	"dir":              "dir",
	"output":           "output",
	"watch":            "watch",
	"loglevel":         "loglevel",
	"logformat":        "logformat",
	"maxfilesize":      "maxfilesize",
	"ai-base-url":      "ai.base_url",
	"ai-model":         "ai.model",
	"ai-timeout":       "ai.timeout",
	"ai-max-retries":   "ai.max_retries",
	"ai-rate-limit":    "ai.rate_limit",
	"database-url":     "database.url",
	"redis-url":        "redis.url",
	"redis-ttl":        "redis.ttl",
	"template":         "template",
	"analyse-template": "analyse_template",
	"soffice":          "soffice",
	"convert-timeout":  "convert_timeout",
	"catalog":          "catalog",
	"fold-accents":     "fold_accents",
	"config":           "config",
}

// DefineFlags sets up all configuration flags on fs. The API key has no
// flag so it never shows in process listings.
func DefineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("dir", cfg.Directory, "Directory holding uploaded and inbox documents")
	fs.String("output", cfg.OutputDirectory, "Directory for rendered PDF documents")
	fs.Bool("watch", cfg.Watch, "Process documents dropped into --dir (server mode only)")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("logformat", cfg.LogFormat, "Log format (json, console)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum document size in bytes")
	fs.String("ai-base-url", cfg.AI.BaseURL, "OpenAI-compatible model endpoint")
	fs.String("ai-model", cfg.AI.Model, "Model used for extraction")
	fs.Duration("ai-timeout", cfg.AI.Timeout, "Timeout of one model request")
	fs.Int("ai-max-retries", cfg.AI.MaxRetries, "Extra attempts on transient model errors")
	fs.Float64("ai-rate-limit", cfg.AI.RateLimit, "Model requests per second (0 for unlimited)")
	fs.String("database-url", "", "PostgreSQL URL (in-memory store when empty)")
	fs.String("redis-url", "", "Redis URL for the model answer cache (disabled when empty)")
	fs.Duration("redis-ttl", cfg.RedisTTL, "Lifetime of cached model answers")
	fs.String("template", "", "Return form .docx template")
	fs.String("analyse-template", "", "Analysis .docx template")
	fs.String("soffice", cfg.Soffice, "LibreOffice binary used for PDF conversion")
	fs.Duration("convert-timeout", cfg.ConvertTimeout, "Timeout of one PDF conversion")
	fs.String("catalog", "", "YAML request catalog (built-in catalog when empty)")
	fs.Bool("fold-accents", cfg.FoldAccents, "Match request keywords without accents")
	fs.String("config", "", "YAML configuration file")
}

// BindFlags binds the flags of fs to their configuration keys
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSaisine PRD - extraction of PRD referral forms over MCP\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/srv/saisines                           # stdio mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/srv/saisines --watch     # server mode with inbox\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config=/etc/saisine.yaml                    # settings from a file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SAISINE_MODE, SAISINE_DIR, SAISINE_OUTPUT, SAISINE_LOGLEVEL, ...\n")
		fmt.Fprintf(os.Stderr, "  SAISINE_AI_API_KEY      Model endpoint API key\n")
		fmt.Fprintf(os.Stderr, "  SAISINE_DATABASE_URL    PostgreSQL URL\n")
		fmt.Fprintf(os.Stderr, "  SAISINE_REDIS_URL       Redis URL\n")
	}
}

// ErrVersionRequested is returned when the command line asks for the version
var ErrVersionRequested = errors.New("version requested")

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.Directory = v.GetString("dir")
	cfg.OutputDirectory = v.GetString("output")
	cfg.Watch = v.GetBool("watch")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.LogFormat = v.GetString("logformat")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.AI = AIConfig{
		BaseURL:    v.GetString("ai.base_url"),
		APIKey:     v.GetString("ai.api_key"),
		Model:      v.GetString("ai.model"),
		Timeout:    v.GetDuration("ai.timeout"),
		MaxRetries: v.GetInt("ai.max_retries"),
		RateLimit:  v.GetFloat64("ai.rate_limit"),
	}
	cfg.DatabaseURL = v.GetString("database.url")
	cfg.RedisURL = v.GetString("redis.url")
	cfg.RedisTTL = v.GetDuration("redis.ttl")
	cfg.FicheTemplate = v.GetString("template")
	cfg.AnalyseTemplate = v.GetString("analyse_template")
	cfg.Soffice = v.GetString("soffice")
	cfg.ConvertTimeout = v.GetDuration("convert_timeout")
	cfg.CatalogPath = v.GetString("catalog")
	cfg.FoldAccents = v.GetBool("fold_accents")
	cfg.ConfigFile = v.GetString("config")
}

func expandPaths(cfg *Config) {
	for _, p := range []*string{&cfg.Directory, &cfg.OutputDirectory, &cfg.CatalogPath, &cfg.FicheTemplate, &cfg.AnalyseTemplate} {
		if *p == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*p); err == nil {
			*p = expandedPath
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Directory == "" {
		return errors.New("document directory cannot be empty")
	}
	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}

	// Check if directories exist, create them if they don't
	for _, dir := range []string{c.Directory, c.OutputDirectory} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access directory %s: %w", dir, err)
		}
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	if c.AI.MaxRetries < 0 {
		return errors.New("ai max retries cannot be negative")
	}
	if c.AI.RateLimit < 0 {
		return errors.New("ai rate limit cannot be negative")
	}
	if c.ConvertTimeout <= 0 {
		return errors.New("convert timeout must be positive")
	}

	return nil
}

// Matcher builds the request matcher from the configured catalog
func (c *Config) Matcher() (*saisine.Matcher, error) {
	catalog := saisine.DefaultCatalog()
	if c.CatalogPath != "" {
		loaded, err := saisine.LoadCatalog(c.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}

	var opts []saisine.MatcherOption
	if c.FoldAccents {
		opts = append(opts, saisine.WithAccentFolding())
	}
	return saisine.NewMatcher(catalog, opts...), nil
}

// WatchConfigFile calls onChange with the reloaded configuration every time
// the --config file changes. Reloads that fail validation are passed to
// onError and otherwise ignored. It does nothing without a config file.
func (c *Config) WatchConfigFile(onChange func(*Config), onError func(error)) bool {
	if c.v == nil || c.ConfigFile == "" {
		return false
	}

	c.v.OnConfigChange(func(fsnotify.Event) {
		next := DefaultConfig()
		populateConfigFromViper(c.v, next)
		next.v = c.v
		expandPaths(next)
		if err := next.Validate(); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next)
	})
	c.v.WatchConfig()
	return true
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. Secrets are
// left out.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Directory: %s, Output: %s, LogLevel: %s, MaxFileSize: %d, Model: %s}",
		c.Mode, c.Host, c.Port, c.Directory, c.OutputDirectory, c.LogLevel, c.MaxFileSize, c.AI.Model)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
