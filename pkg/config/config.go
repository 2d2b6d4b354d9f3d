package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName is used for config search paths, env prefixes and data directories
const AppName = "igleads"

const envPrefix = "IGLEADS_"

// Config holds all configuration for a lead discovery run. It is loaded once
// at startup and treated as read-only afterward.
type Config struct {
	Instagram  InstagramConfig   `yaml:"instagram" json:"instagram"`
	Crawl      CrawlConfig       `yaml:"crawl" json:"crawl"`
	Classifier ClassifierConfig  `yaml:"classifier" json:"classifier"`
	Regions    map[string]string `yaml:"regions" json:"regions"`
	RateLimit  RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Sink       SinkConfig        `yaml:"sink" json:"sink"`
	Checkpoint CheckpointConfig  `yaml:"checkpoint" json:"checkpoint"`
	Metrics    MetricsConfig     `yaml:"metrics" json:"metrics"`
	Logging    LoggingConfig     `yaml:"logging" json:"logging"`
}

// InstagramConfig holds session and transport settings for the fetcher
type InstagramConfig struct {
	Account      string        `yaml:"account" json:"account"`
	SessionID    string        `yaml:"session_id" json:"session_id"`
	CSRFToken    string        `yaml:"csrf_token" json:"csrf_token"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	AppID        string        `yaml:"app_id" json:"app_id"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxNeighbors int           `yaml:"max_neighbors" json:"max_neighbors"`
	PageFallback bool          `yaml:"page_fallback" json:"page_fallback"`
}

// CrawlConfig bounds the traversal
type CrawlConfig struct {
	Seeds       []string      `yaml:"seeds" json:"seeds"`
	SeedFile    string        `yaml:"seed_file" json:"seed_file"`
	MaxDepth    int           `yaml:"max_depth" json:"max_depth"`
	MaxProfiles int           `yaml:"max_profiles" json:"max_profiles"`
	MinDelay    time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Workers     int           `yaml:"workers" json:"workers"`
	TimeBudget  time.Duration `yaml:"time_budget" json:"time_budget"`
}

// ClassifierConfig holds keyword lists and the optional embedding classifier
type ClassifierConfig struct {
	Keywords KeywordsConfig `yaml:"keywords" json:"keywords"`
	Semantic SemanticConfig `yaml:"semantic" json:"semantic"`
}

// KeywordsConfig holds one keyword list per category plus the relevance list
type KeywordsConfig struct {
	Relevance   []string `yaml:"relevance" json:"relevance"`
	RepairShop  []string `yaml:"repair_shop" json:"repair_shop"`
	Distributor []string `yaml:"distributor" json:"distributor"`
	Reseller    []string `yaml:"reseller" json:"reseller"`
	Retailer    []string `yaml:"retailer" json:"retailer"`
	Generic     []string `yaml:"generic" json:"generic"`
}

// SemanticConfig configures the embedding-based relevance check
type SemanticConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	Model     string  `yaml:"model" json:"model"`
	APIKey    string  `yaml:"api_key" json:"-"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// RateLimitConfig holds request pacing and HTTP retry settings
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// SinkConfig selects the output formats
type SinkConfig struct {
	OutputDir     string        `yaml:"output_dir" json:"output_dir"`
	Formats       []string      `yaml:"formats" json:"formats"`
	SQLitePath    string        `yaml:"sqlite_path" json:"sqlite_path"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts"`
	WriteTimeout  time.Duration `yaml:"write_timeout" json:"write_timeout"`
	QueueSize     int           `yaml:"queue_size" json:"queue_size"`
	Report        bool          `yaml:"report" json:"report"`
}

// CheckpointConfig controls resumable crawl snapshots
type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
	Every   int    `yaml:"every" json:"every"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// Supported sink formats
const (
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

// DefaultConfig returns a Config with defaults suited to a small, polite crawl
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			AppID:        "936619743392459",
			Timeout:      30 * time.Second,
			MaxNeighbors: 200,
			PageFallback: true,
		},
		Crawl: CrawlConfig{
			MaxDepth:    1,
			MaxProfiles: 100,
			MinDelay:    2 * time.Second,
			MaxDelay:    5 * time.Second,
			Workers:     1,
		},
		Classifier: ClassifierConfig{
			Keywords: DefaultKeywords(),
			Semantic: SemanticConfig{
				Model:     "gemini-embedding-001",
				Threshold: 0.75,
			},
		},
		Regions: DefaultRegions(),
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
			BackoffMultiplier: 2.0,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Sink: SinkConfig{
			OutputDir:     "./leads",
			Formats:       []string{FormatCSV},
			SQLitePath:    "leads.db",
			RetryAttempts: 3,
			WriteTimeout:  10 * time.Second,
			QueueSize:     64,
			Report:        true,
		},
		Checkpoint: CheckpointConfig{
			Every: 25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultKeywords returns the Spanish and Portuguese keyword lists
func DefaultKeywords() KeywordsConfig {
	return KeywordsConfig{
		Relevance: []string{
			"celular", "celulares", "móvil", "moviles", "smartphone", "iphone", "samsung", "xiaomi",
			"tecnología", "telefone", "loja de celulares", "accesorios para celular",
			"assistência técnica", "pantallas", "refacciones",
		},
		RepairShop:  []string{"reparación", "servicio técnico", "arreglos", "diagnóstico", "unlock", "repair", "arregla"},
		Distributor: []string{"distribuidor", "mayorista", "suministros", "importador", "distribución", "provider"},
		Reseller:    []string{"reventa", "oportunidad", "flipping", "mayoreo", "wholesale", "revendedor"},
		Retailer:    []string{"venta", "tienda", "local", "compra y venta", "store", "shop", "retail", "loja"},
		Generic:     []string{"celulares", "smartphones", "accesorios", "telefone"},
	}
}

// DefaultRegions maps country calling codes to region labels
func DefaultRegions() map[string]string {
	return map[string]string{
		"1":   "North America",
		"51":  "Peru",
		"52":  "Mexico",
		"53":  "Cuba",
		"54":  "Argentina",
		"55":  "Brazil",
		"56":  "Chile",
		"57":  "Colombia",
		"58":  "Venezuela",
		"502": "Guatemala",
		"503": "El Salvador",
		"504": "Honduras",
		"505": "Nicaragua",
		"506": "Costa Rica",
		"507": "Panama",
		"591": "Bolivia",
		"593": "Ecuador",
		"595": "Paraguay",
		"598": "Uruguay",
	}
}

// LoadFromEnv overrides values from IGLEADS_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString(&c.Instagram.SessionID, "SESSION_ID")
	setString(&c.Instagram.CSRFToken, "CSRF_TOKEN")
	setString(&c.Instagram.UserAgent, "USER_AGENT")
	setString(&c.Instagram.Account, "ACCOUNT")
	setString(&c.Sink.OutputDir, "OUTPUT_DIR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Metrics.Listen, "METRICS_LISTEN")
	setString(&c.Crawl.SeedFile, "SEED_FILE")

	if seeds := os.Getenv(envPrefix + "SEEDS"); seeds != "" {
		c.Crawl.Seeds = splitList(seeds)
	}
	if formats := os.Getenv(envPrefix + "FORMATS"); formats != "" {
		c.Sink.Formats = splitList(formats)
	}

	errs = append(errs,
		setInt(&c.Crawl.MaxDepth, "MAX_DEPTH"),
		setInt(&c.Crawl.MaxProfiles, "MAX_PROFILES"),
		setInt(&c.Crawl.Workers, "WORKERS"),
		setInt(&c.RateLimit.RequestsPerMinute, "REQUESTS_PER_MINUTE"),
		setDuration(&c.Crawl.MinDelay, "MIN_DELAY"),
		setDuration(&c.Crawl.MaxDelay, "MAX_DELAY"),
		setDuration(&c.Crawl.TimeBudget, "TIME_BUDGET"),
	)

	// The genai SDK reads GEMINI_API_KEY itself; we also accept the prefixed name.
	if key := os.Getenv(envPrefix + "GEMINI_API_KEY"); key != "" {
		c.Classifier.Semantic.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Classifier.Semantic.APIKey == "" {
		c.Classifier.Semantic.APIKey = key
	}

	return errors.Join(errs...)
}

func setString(dst *string, name string) {
	if v := os.Getenv(envPrefix + name); v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, name, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name string) error {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, name, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches the working directory, then the XDG config dirs
func findConfigFile() string {
	for _, loc := range []string{AppName + ".yaml", AppName + ".yml", "." + AppName + ".yaml"} {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	if path, err := xdg.SearchConfigFile(filepath.Join(AppName, "config.yaml")); err == nil {
		return path
	}
	return ""
}

// DefaultConfigPath is where `config init` writes a new file
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
}

// Validate checks everything that can be checked without seeds. Traversal
// bounds are re-checked by the crawler, which owns them.
func (c *Config) Validate() error {
	var errs []error

	if c.Crawl.MaxDepth < 0 {
		errs = append(errs, errors.New("crawl.max_depth cannot be negative"))
	}
	if c.Crawl.MaxProfiles < 1 {
		errs = append(errs, errors.New("crawl.max_profiles must be at least 1"))
	}
	if c.Crawl.MinDelay < 0 || c.Crawl.MaxDelay < 0 {
		errs = append(errs, errors.New("crawl delays cannot be negative"))
	}
	if c.Crawl.MaxDelay < c.Crawl.MinDelay {
		errs = append(errs, errors.New("crawl.max_delay must not be less than crawl.min_delay"))
	}
	if c.Crawl.Workers < 1 {
		errs = append(errs, errors.New("crawl.workers must be at least 1"))
	}
	if c.Crawl.TimeBudget < 0 {
		errs = append(errs, errors.New("crawl.time_budget cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Instagram.Timeout <= 0 {
		errs = append(errs, errors.New("instagram.timeout must be positive"))
	}

	sem := c.Classifier.Semantic
	if sem.Enabled && (sem.Threshold <= 0 || sem.Threshold > 1) {
		errs = append(errs, errors.New("classifier.semantic.threshold must be in (0, 1]"))
	}
	if len(c.Classifier.Keywords.Relevance) == 0 && !sem.Enabled {
		errs = append(errs, errors.New("classifier.keywords.relevance must not be empty"))
	}

	if c.Sink.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if len(c.Sink.Formats) == 0 {
		errs = append(errs, errors.New("at least one sink format is required"))
	}
	for _, f := range c.Sink.Formats {
		switch strings.ToLower(f) {
		case FormatCSV, FormatJSONL, FormatSQLite:
		default:
			errs = append(errs, fmt.Errorf("unknown sink format %q", f))
		}
	}
	if c.Sink.RetryAttempts < 1 {
		errs = append(errs, errors.New("sink.retry_attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ResolveSeeds returns the configured seeds followed by the seed file's
// entries. Blank lines and lines starting with '#' are ignored.
func (c *CrawlConfig) ResolveSeeds() ([]string, error) {
	seeds := append([]string(nil), c.Seeds...)
	if c.SeedFile == "" {
		return seeds, nil
	}

	f, err := os.Open(c.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return seeds, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags applies values set on the command line. Keys match
// the flag names of the crawl command.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["session-id"].(string); ok && v != "" {
		c.Instagram.SessionID = v
	}
	if v, ok := flags["csrf-token"].(string); ok && v != "" {
		c.Instagram.CSRFToken = v
	}
	if v, ok := flags["account"].(string); ok && v != "" {
		c.Instagram.Account = v
	}
	if v, ok := flags["seeds"].([]string); ok && len(v) > 0 {
		c.Crawl.Seeds = v
	}
	if v, ok := flags["seed-file"].(string); ok && v != "" {
		c.Crawl.SeedFile = v
	}
	if v, ok := flags["max-depth"].(int); ok {
		c.Crawl.MaxDepth = v
	}
	if v, ok := flags["max-profiles"].(int); ok {
		c.Crawl.MaxProfiles = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Crawl.Workers = v
	}
	if v, ok := flags["min-delay"].(time.Duration); ok {
		c.Crawl.MinDelay = v
	}
	if v, ok := flags["max-delay"].(time.Duration); ok {
		c.Crawl.MaxDelay = v
	}
	if v, ok := flags["time-budget"].(time.Duration); ok {
		c.Crawl.TimeBudget = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Sink.OutputDir = v
	}
	if v, ok := flags["formats"].([]string); ok && len(v) > 0 {
		c.Sink.Formats = v
	}
	if v, ok := flags["semantic"].(bool); ok {
		c.Classifier.Semantic.Enabled = v
	}
	if v, ok := flags["checkpoint"].(bool); ok {
		c.Checkpoint.Enabled = v
	}
	if v, ok := flags["metrics-listen"].(string); ok && v != "" {
		c.Metrics.Listen = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment (including .env) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(xdg.ConfigHome, AppName, ".env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
