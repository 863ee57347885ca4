package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	mu   sync.RWMutex
	conf *Config
	v    *viper.Viper
)

// Config struct is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Carp     CarpConfig     `mapstructure:"carp"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Forms    FormsConfig    `mapstructure:"forms"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port            string   `mapstructure:"port"`
	SessionSecret   string   `mapstructure:"session_secret"`
	SecureCookies   bool     `mapstructure:"secure_cookies"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	SubmitRateLimit int      `mapstructure:"submit_rate_limit"`
}

// CarpConfig points the portal at the CARP webservices deployment.
type CarpConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryMax    int           `mapstructure:"retry_max"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port)
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// FormsConfig locates the schema files the participant data form is built from.
type FormsConfig struct {
	InputTypes string `mapstructure:"input_types"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "change-me")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.submit_rate_limit", 10) // per minute per client

	// CARP defaults
	v.SetDefault("carp.base_url", "http://localhost:8080")
	v.SetDefault("carp.access_token", "")
	v.SetDefault("carp.timeout", 30*time.Second)
	v.SetDefault("carp.retry_max", 1)
	v.SetDefault("carp.cache_ttl", 5*time.Minute)

	// Database defaults
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "carp-portal")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	v.SetDefault("forms.input_types", "")
}

// Init reads the configuration with Viper. It runs before the logger exists,
// so reload logging is attached later with Watch.
func Init(projectRoot string) error {
	nv := viper.New()

	// Set default values
	setDefaults(nv)

	// --- File Configuration ---
	nv.AddConfigPath(filepath.Join(projectRoot, "config"))
	nv.SetConfigName("config")
	nv.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	nv.SetEnvPrefix("CARP_PORTAL") // e.g., CARP_PORTAL_CARP_BASE_URL
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := nv.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	var c Config
	if err := nv.Unmarshal(&c); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	mu.Lock()
	v = nv
	conf = &c
	mu.Unlock()
	return nil
}

// Watch sets up hot-reloading of the config file.
func Watch(log *zap.Logger) {
	mu.RLock()
	wv := v
	mu.RUnlock()
	if wv == nil {
		return
	}

	wv.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		var c Config
		if err := wv.Unmarshal(&c); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		mu.Lock()
		conf = &c
		mu.Unlock()
	})
	wv.WatchConfig()
}

// Get returns the current configuration. It panics if Init has not run.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if conf == nil {
		panic("config: Get called before Init")
	}
	return conf
}
