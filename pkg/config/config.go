// Package config provides configuration loading and management for JellyGuard
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/supporttools/JellyGuard/pkg/dbproviders/options"
)

// DatabaseConfig defines the PostgreSQL connection settings handed to the
// provider as a generic option bag. Empty fields are omitted from the bag so
// the provider's own defaults apply.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LocalConfig defines local backup artifact settings
type LocalConfig struct {
	Enabled bool `yaml:"enabled"`
}

// S3Config defines S3 offsite storage settings
type S3Config struct {
	Enabled            bool   `yaml:"enabled"`
	Bucket             string `yaml:"bucket"`
	Region             string `yaml:"region"`
	Endpoint           string `yaml:"endpoint"`
	AccessKey          string `yaml:"accessKey"`
	SecretKey          string `yaml:"secretKey"`
	Prefix             string `yaml:"prefix"`
	PathStyle          bool   `yaml:"pathStyle"`
	UseSSL             bool   `yaml:"useSSL"`
	CustomCAPath       string `yaml:"customCAPath"`
	SkipCertValidation bool   `yaml:"skipCertValidation"`
}

// MetricsConfig defines metrics server settings
type MetricsConfig struct {
	Port string `yaml:"port"`
}

// RetentionRule defines how long backup artifacts are kept
type RetentionRule struct {
	Duration string `yaml:"duration"`
	Forever  bool   `yaml:"forever"`
}

// BackupConfig defines scheduled backup settings
type BackupConfig struct {
	Schedule  string        `yaml:"schedule"` // Cron schedule format, empty disables scheduling
	Retention RetentionRule `yaml:"retention"`
}

// HistoryConfig defines the optional backup history record
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AdminConfig defines admin API server settings
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// AppConfig contains the complete application configuration
type AppConfig struct {
	// DataDirectory is the host application data directory; backup
	// artifacts live in its "backups" subdirectory.
	DataDirectory string `yaml:"dataDirectory"`

	Database DatabaseConfig `yaml:"database"`
	Local    LocalConfig    `yaml:"local"`
	S3       S3Config       `yaml:"s3"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Backup   BackupConfig   `yaml:"backup"`
	History  HistoryConfig  `yaml:"history"`
	Admin    AdminConfig    `yaml:"admin"`

	Debug      bool   `yaml:"debug"`
	ConfigFile string `yaml:"-"`
}

// CFG is the global configuration object
var CFG AppConfig

// LoadConfiguration loads configuration from environment variables, then
// overlays values from an optional YAML config file named by CONFIG_FILE.
func LoadConfiguration() {
	log.Println("Loading configuration from environment variables...")
	loadFromEnvironment()

	if CFG.ConfigFile != "" {
		if err := loadFromFile(CFG.ConfigFile); err != nil {
			log.Printf("Warning: Failed to load config file %s: %v", CFG.ConfigFile, err)
		} else {
			log.Printf("Loaded configuration overrides from %s", CFG.ConfigFile)
		}
	}
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment() {
	// Debug setting
	CFG.Debug = parseEnvBool("DEBUG", false)
	CFG.ConfigFile = getEnvOrDefault("CONFIG_FILE", "")

	// Data directory for backup artifacts
	CFG.DataDirectory = getEnvOrDefault("DATA_DIRECTORY", "/var/lib/jellyfin")

	// PostgreSQL connection settings; unset values fall through to the
	// provider defaults
	CFG.Database.Host = getEnvOrDefault("POSTGRES_HOST", "")
	CFG.Database.Port = getEnvOrDefault("POSTGRES_PORT", "")
	CFG.Database.Database = getEnvOrDefault("POSTGRES_DATABASE", "")
	CFG.Database.Username = getEnvOrDefault("POSTGRES_USERNAME", "")
	CFG.Database.Password = getEnvOrDefault("POSTGRES_PASSWORD", "")

	// Local storage settings
	CFG.Local.Enabled = parseEnvBool("LOCAL_BACKUP_ENABLED", true)

	// S3 settings
	CFG.S3.Enabled = parseEnvBool("S3_BACKUP_ENABLED", false)
	CFG.S3.Bucket = getEnvOrDefault("S3_BUCKET", "")
	CFG.S3.Region = getEnvOrDefault("S3_REGION", "us-east-1")
	CFG.S3.Endpoint = getEnvOrDefault("S3_ENDPOINT", "")
	CFG.S3.AccessKey = getEnvOrDefault("S3_ACCESS_KEY", "")
	CFG.S3.SecretKey = getEnvOrDefault("S3_SECRET_KEY", "")
	CFG.S3.Prefix = getEnvOrDefault("S3_PREFIX", "jellyfin-backups")
	CFG.S3.PathStyle = parseEnvBool("S3_PATH_STYLE", false)
	CFG.S3.UseSSL = parseEnvBool("S3_USE_SSL", true)
	CFG.S3.CustomCAPath = getEnvOrDefault("S3_CUSTOM_CA_PATH", "")
	CFG.S3.SkipCertValidation = parseEnvBool("S3_SKIP_CERT_VALIDATION", false)

	// Metrics settings
	CFG.Metrics.Port = getEnvOrDefault("METRICS_PORT", "9101")

	// Scheduled backup settings
	CFG.Backup.Schedule = getEnvOrDefault("BACKUP_SCHEDULE", "")
	CFG.Backup.Retention.Duration = getEnvOrDefault("BACKUP_RETENTION", "168h")
	CFG.Backup.Retention.Forever = parseEnvBool("BACKUP_RETENTION_FOREVER", false)

	// Backup history settings
	CFG.History.Enabled = parseEnvBool("HISTORY_ENABLED", false)

	// Admin API settings
	CFG.Admin.Enabled = parseEnvBool("ADMIN_SERVER_ENABLED", true)
	CFG.Admin.Port = getEnvOrDefault("ADMIN_SERVER_PORT", "8080")
}

// loadFromFile overlays configuration from a YAML file
func loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &CFG); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DatabaseOptions converts the configured connection settings into the
// generic option bag consumed by provider Initialise. Unset settings are
// left out so the provider applies its own defaults.
func DatabaseOptions() options.Bag {
	var bag options.Bag

	appendOption := func(key, value string) {
		if value != "" {
			bag = append(bag, options.Option{Key: key, Value: value})
		}
	}

	appendOption("host", CFG.Database.Host)
	appendOption("port", CFG.Database.Port)
	appendOption("database", CFG.Database.Database)
	appendOption("username", CFG.Database.Username)
	appendOption("password", CFG.Database.Password)

	return bag
}

// ValidateConfig verifies the loaded configuration is usable
func ValidateConfig() error {
	if CFG.DataDirectory == "" {
		return fmt.Errorf("data directory must be configured")
	}

	if CFG.Database.Port != "" {
		if _, err := strconv.Atoi(CFG.Database.Port); err != nil {
			return fmt.Errorf("invalid PostgreSQL port %q: %w", CFG.Database.Port, err)
		}
	}

	if CFG.S3.Enabled && CFG.S3.Bucket == "" {
		return fmt.Errorf("S3 storage is enabled but no bucket is configured")
	}

	if !CFG.Backup.Retention.Forever && CFG.Backup.Retention.Duration == "" {
		return fmt.Errorf("backup retention requires a duration unless set to forever")
	}

	return nil
}

// Helper functions for environment variables

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if defaultValue != "" && os.Getenv("DEBUG") == "true" {
		log.Printf("Environment variable %s not set. Using default: %s", key, defaultValue)
	}
	return defaultValue
}

func parseEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		if os.Getenv("DEBUG") == "true" {
			log.Printf("Environment variable %s not set. Using default: %t", key, defaultValue)
		}
		return defaultValue
	}
	value = strings.ToLower(value)

	// Handle additional truthy and falsy values
	switch value {
	case "1", "t", "true", "yes", "on", "enabled":
		return true
	case "0", "f", "false", "no", "off", "disabled":
		return false
	default:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Error parsing %s as bool: %v. Using default value: %t", key, err, defaultValue)
			return defaultValue
		}
		return boolValue
	}
}

// DisplayConfiguration outputs the current configuration in a readable format
// while masking sensitive information
func DisplayConfiguration() {
	log.Println("========== JellyGuard Configuration ==========")

	log.Printf("Debug Mode: %t", CFG.Debug)
	log.Printf("Data Directory: %s", CFG.DataDirectory)
	log.Printf("Config File: %s", CFG.ConfigFile)

	log.Println("\n----- PostgreSQL Connection -----")
	log.Printf("Host: %s", CFG.Database.Host)
	log.Printf("Port: %s", CFG.Database.Port)
	log.Printf("Database: %s", CFG.Database.Database)
	log.Printf("Username: %s", CFG.Database.Username)
	log.Printf("Password: %s", maskSensitiveInfo(CFG.Database.Password))

	log.Println("\n----- Storage -----")
	log.Printf("Local Enabled: %t", CFG.Local.Enabled)
	log.Printf("S3 Enabled: %t", CFG.S3.Enabled)
	if CFG.S3.Enabled {
		log.Printf("S3 Bucket: %s", CFG.S3.Bucket)
		log.Printf("S3 Region: %s", CFG.S3.Region)
		log.Printf("S3 Endpoint: %s", CFG.S3.Endpoint)
		log.Printf("S3 Prefix: %s", CFG.S3.Prefix)
		log.Printf("S3 Access Key: %s", maskSensitiveInfo(CFG.S3.AccessKey))
	}

	log.Println("\n----- Scheduling -----")
	log.Printf("Backup Schedule: %s", CFG.Backup.Schedule)
	log.Printf("Retention Duration: %s", CFG.Backup.Retention.Duration)
	log.Printf("Retention Forever: %t", CFG.Backup.Retention.Forever)

	log.Println("\n----- Servers -----")
	log.Printf("Metrics Port: %s", CFG.Metrics.Port)
	log.Printf("Admin Enabled: %t", CFG.Admin.Enabled)
	log.Printf("Admin Port: %s", CFG.Admin.Port)
	log.Printf("History Enabled: %t", CFG.History.Enabled)

	log.Println("==============================================")
}

// maskSensitiveInfo replaces all but the first and last characters of a
// sensitive value with asterisks
func maskSensitiveInfo(info string) string {
	if info == "" {
		return ""
	}
	if len(info) <= 2 {
		return "**"
	}
	return info[:1] + strings.Repeat("*", len(info)-2) + info[len(info)-1:]
}
