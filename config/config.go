package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort string `yaml:"server.port"`

	// Scheduler configuration
	TickSchedule string        `yaml:"scheduler.tick_schedule"`
	WorkerPool   int           `yaml:"scheduler.worker_pool"`
	ClaimTimeout time.Duration `yaml:"-"`

	// Browser configuration
	Headless  bool   `yaml:"browser.headless"`
	UserAgent string `yaml:"browser.user_agent"`

	// Stage execution configuration
	InteractionTimeout time.Duration `yaml:"-"`
	UploadTimeout      time.Duration `yaml:"-"`
	StageRetries       int           `yaml:"stages.retries"`
	RetryBackoff       time.Duration `yaml:"-"`
	JobCeiling         time.Duration `yaml:"-"`

	// Storage configuration
	PendingDir string `yaml:"storage.pending_dir"`
	PostedDir  string `yaml:"storage.posted_dir"`
	FailedDir  string `yaml:"storage.failed_dir"`

	// Database configuration
	DatabaseURL string `yaml:"database.url"`

	// Logging configuration
	LogDirectory  string `yaml:"logging.dir"`
	LogOutputFile string `yaml:"logging.output_file"`
	LogErrorFile  string `yaml:"logging.error_file"`

	// Bootstrap account definitions
	BootstrapAccounts []AccountBootstrap `yaml:"accounts"`
}

// AccountBootstrap defines an account and its schedule loaded from config
type AccountBootstrap struct {
	Handle      string   `yaml:"handle"`
	CookiesPath string   `yaml:"cookies_path"`
	DailyQuota  int      `yaml:"daily_quota"`
	Slots       []string `yaml:"slots"`
	IsActive    *bool    `yaml:"is_active,omitempty"`
}

// configFile represents the YAML structure
type configFile struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Scheduler struct {
		TickSchedule string `yaml:"tick_schedule"`
		WorkerPool   int    `yaml:"worker_pool"`
		ClaimTimeout string `yaml:"claim_timeout"`
	} `yaml:"scheduler"`
	Browser struct {
		Headless  *bool  `yaml:"headless"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"browser"`
	Stages struct {
		InteractionTimeout string `yaml:"interaction_timeout"`
		UploadTimeout      string `yaml:"upload_timeout"`
		Retries            *int   `yaml:"retries"`
		RetryBackoff       string `yaml:"retry_backoff"`
		JobCeiling         string `yaml:"job_ceiling"`
	} `yaml:"stages"`
	Storage struct {
		PendingDir string `yaml:"pending_dir"`
		PostedDir  string `yaml:"posted_dir"`
		FailedDir  string `yaml:"failed_dir"`
	} `yaml:"storage"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Logging struct {
		Directory  string `yaml:"dir"`
		OutputFile string `yaml:"output_file"`
		ErrorFile  string `yaml:"error_file"`
	} `yaml:"logging"`
	Accounts []AccountBootstrap `yaml:"accounts"`
}

// Manager handles configuration loading and saving
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	if configPath == "" {
		configPath = "config.yaml"
	}
	return &Manager{
		configPath: configPath,
	}
}

// Load reads configuration from the YAML file. A .env file, when present,
// is loaded first so environment variables can override file paths and
// secrets without editing the YAML.
func (m *Manager) Load() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = godotenv.Load()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return m.createDefaultConfig()
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(data, &cfgFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &Config{
		ServerPort:    cfgFile.Server.Port,
		TickSchedule:  cfgFile.Scheduler.TickSchedule,
		WorkerPool:    cfgFile.Scheduler.WorkerPool,
		Headless:      true,
		UserAgent:     cfgFile.Browser.UserAgent,
		StageRetries:  2,
		PendingDir:    cfgFile.Storage.PendingDir,
		PostedDir:     cfgFile.Storage.PostedDir,
		FailedDir:     cfgFile.Storage.FailedDir,
		DatabaseURL:   cfgFile.Database.URL,
		LogDirectory:  cfgFile.Logging.Directory,
		LogOutputFile: cfgFile.Logging.OutputFile,
		LogErrorFile:  cfgFile.Logging.ErrorFile,
	}

	if cfgFile.Browser.Headless != nil {
		cfg.Headless = *cfgFile.Browser.Headless
	}
	if cfgFile.Stages.Retries != nil {
		cfg.StageRetries = *cfgFile.Stages.Retries
	}
	if len(cfgFile.Accounts) > 0 {
		cfg.BootstrapAccounts = append(cfg.BootstrapAccounts, cfgFile.Accounts...)
	}

	if envPort := os.Getenv("SERVER_PORT"); envPort != "" {
		cfg.ServerPort = envPort
	}
	if envDB := os.Getenv("DATABASE_URL"); envDB != "" {
		cfg.DatabaseURL = envDB
	}

	applyDefaults(cfg)

	cfg.ClaimTimeout = parseDurationOr(cfgFile.Scheduler.ClaimTimeout, 30*time.Minute)
	cfg.InteractionTimeout = parseDurationOr(cfgFile.Stages.InteractionTimeout, 15*time.Second)
	cfg.UploadTimeout = parseDurationOr(cfgFile.Stages.UploadTimeout, 3*time.Minute)
	cfg.RetryBackoff = parseDurationOr(cfgFile.Stages.RetryBackoff, 3*time.Second)
	cfg.JobCeiling = parseDurationOr(cfgFile.Stages.JobCeiling, 10*time.Minute)

	m.config = cfg
	return cfg, nil
}

// Save writes configuration to the YAML file
func (m *Manager) Save(cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveUnlocked(cfg)
}

// saveUnlocked persists config assuming caller already holds the write lock.
func (m *Manager) saveUnlocked(cfg *Config) error {
	var cfgFile configFile
	cfgFile.Server.Port = cfg.ServerPort
	cfgFile.Scheduler.TickSchedule = cfg.TickSchedule
	cfgFile.Scheduler.WorkerPool = cfg.WorkerPool
	cfgFile.Scheduler.ClaimTimeout = cfg.ClaimTimeout.String()
	headless := cfg.Headless
	cfgFile.Browser.Headless = &headless
	cfgFile.Browser.UserAgent = cfg.UserAgent
	cfgFile.Stages.InteractionTimeout = cfg.InteractionTimeout.String()
	cfgFile.Stages.UploadTimeout = cfg.UploadTimeout.String()
	retries := cfg.StageRetries
	cfgFile.Stages.Retries = &retries
	cfgFile.Stages.RetryBackoff = cfg.RetryBackoff.String()
	cfgFile.Stages.JobCeiling = cfg.JobCeiling.String()
	cfgFile.Storage.PendingDir = cfg.PendingDir
	cfgFile.Storage.PostedDir = cfg.PostedDir
	cfgFile.Storage.FailedDir = cfg.FailedDir
	cfgFile.Database.URL = cfg.DatabaseURL
	cfgFile.Logging.Directory = cfg.LogDirectory
	cfgFile.Logging.OutputFile = cfg.LogOutputFile
	cfgFile.Logging.ErrorFile = cfg.LogErrorFile
	cfgFile.Accounts = cfg.BootstrapAccounts

	data, err := yaml.Marshal(&cfgFile)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.config = cfg
	return nil
}

// Get returns the current configuration (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// createDefaultConfig creates a default configuration file
func (m *Manager) createDefaultConfig() (*Config, error) {
	cfg := &Config{
		Headless:           true,
		StageRetries:       2,
		ClaimTimeout:       30 * time.Minute,
		InteractionTimeout: 15 * time.Second,
		UploadTimeout:      3 * time.Minute,
		RetryBackoff:       3 * time.Second,
		JobCeiling:         10 * time.Minute,
	}
	applyDefaults(cfg)

	if err := m.saveUnlocked(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.TickSchedule == "" {
		cfg.TickSchedule = "*/30 * * * * *"
	}
	if cfg.WorkerPool <= 0 {
		// Each worker holds a full browser session, so the pool stays small
		// even on large machines
		cfg.WorkerPool = runtime.NumCPU()
		if cfg.WorkerPool > 4 {
			cfg.WorkerPool = 4
		}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if cfg.StageRetries < 0 {
		cfg.StageRetries = 0
	}
	if cfg.PendingDir == "" {
		cfg.PendingDir = "./videos/pending"
	}
	if cfg.PostedDir == "" {
		cfg.PostedDir = "./videos/posted"
	}
	if cfg.FailedDir == "" {
		cfg.FailedDir = "./videos/failed"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite3:./data.db"
	}
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = "./logs"
	}
	if cfg.LogOutputFile == "" {
		cfg.LogOutputFile = "app.log"
	}
	if cfg.LogErrorFile == "" {
		cfg.LogErrorFile = "app.error.log"
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Global config manager instance
var globalManager *Manager

// Load loads configuration from the YAML file using the global manager
func Load() (*Config, error) {
	return GetManager().Load()
}

// GetManager returns the global config manager
func GetManager() *Manager {
	if globalManager == nil {
		configPath := "config.yaml"
		if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		}
		globalManager = NewManager(configPath)
	}
	return globalManager
}
