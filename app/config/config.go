package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"PrintRelay/app/security"
)

const appDirName = "PrintRelay"

// AppConfig holds all application configuration
type AppConfig struct {
	// Job history database
	Database DatabaseConfig `json:"database"`

	// Remote print relay
	Relay RelayConfig `json:"relay"`

	// Store branding and defaults for receipts
	Store StoreConfig `json:"store"`

	// Retry policy
	Dispatch DispatchConfig `json:"dispatch"`

	// Background status polling
	Reconcile ReconcileConfig `json:"reconcile"`

	// Job status hub for UI clients
	Status StatusConfig `json:"status"`

	// Optional job history export
	Sheets SheetsConfig `json:"sheets"`

	System SystemConfig `json:"system"`
}

// DatabaseConfig holds database connection settings.
// When Host and URL are empty the agent uses a local SQLite file.
type DatabaseConfig struct {
	URL      string `json:"url,omitempty"`
	Path     string `json:"path"` // SQLite file
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

// UsesPostgres reports whether a PostgreSQL server is configured
func (d DatabaseConfig) UsesPostgres() bool {
	return d.URL != "" || d.Host != ""
}

// RelayConfig holds print relay settings
type RelayConfig struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"token"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout returns the HTTP timeout for relay calls
func (r RelayConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// StoreConfig holds store information printed on receipts
type StoreConfig struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Tagline           string `json:"tagline"`
	Handle            string `json:"handle"`
	ThankYou          string `json:"thank_you"`
	CurrencySymbol    string `json:"currency_symbol"`
	TrackingURL       string `json:"tracking_url"` // "{order}" is replaced by the order number
	TimeZone          string `json:"time_zone"`
	DefaultPrinterID  string `json:"default_printer_id"`
	DefaultPaperWidth string `json:"default_paper_width"` // "58mm", "76mm", "80mm"
}

// Location resolves the store time zone, falling back to local time
func (s StoreConfig) Location() *time.Location {
	if s.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DispatchConfig holds the bounded retry policy
type DispatchConfig struct {
	MaxRetries        int `json:"max_retries"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
}

// ReconcileConfig holds the status polling settings
type ReconcileConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
}

// StatusConfig holds the job status hub settings
type StatusConfig struct {
	Enabled       bool   `json:"enabled"`
	Port          string `json:"port"`            // ":8090"
	AccessKeyHash string `json:"access_key_hash"` // bcrypt hash; empty disables auth
	AnnounceMDNS  bool   `json:"announce_mdns"`
}

// SheetsConfig holds Google Sheets export settings
type SheetsConfig struct {
	Enabled           bool   `json:"enabled"`
	SpreadsheetID     string `json:"spreadsheet_id"`
	SheetName         string `json:"sheet_name"`
	ServiceAccountKey string `json:"service_account_key"` // JSON key
}

// SystemConfig holds system settings
type SystemConfig struct {
	DataPath string `json:"data_path"`
	LogDir   string `json:"log_dir"`
}

// GetAppDir returns the application data directory, creating it if needed
func GetAppDir() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		appData = filepath.Join(homeDir, "AppData", "Roaming")
	}

	appDir := filepath.Join(appData, appDirName)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	return appDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, "config.json"), nil
}

// LoadConfig loads configuration from config.json and decrypts sensitive fields
func LoadConfig() (*AppConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file: %w", err)
	}

	cfg.decryptSensitiveFields()
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadOrCreateConfig loads config.json, writing a default one on first run,
// then applies environment overrides
func LoadOrCreateConfig() (*AppConfig, error) {
	exists, err := ConfigExists()
	if err != nil {
		return nil, err
	}

	var cfg *AppConfig
	if exists {
		cfg, err = LoadConfig()
	} else {
		cfg, err = CreateDefaultConfig()
	}
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)
	return cfg, nil
}

// SaveConfig saves configuration to config.json after encrypting sensitive fields
func SaveConfig(cfg *AppConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	cfgCopy := *cfg
	if err := cfgCopy.encryptSensitiveFields(); err != nil {
		return fmt.Errorf("could not encrypt sensitive fields: %w", err)
	}

	data, err := json.MarshalIndent(&cfgCopy, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}

// ConfigExists checks if config file exists
func ConfigExists() (bool, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// CreateDefaultConfig creates a default configuration file
func CreateDefaultConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		Relay: RelayConfig{
			BaseURL:        "",
			TimeoutSeconds: 10,
		},
		Store: StoreConfig{
			Name:              "My Store",
			CurrencySymbol:    "$",
			DefaultPaperWidth: "80mm",
		},
		Dispatch: DispatchConfig{
			MaxRetries:        2,
			RetryDelaySeconds: 2,
		},
		Reconcile: ReconcileConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
		Status: StatusConfig{
			Enabled:      true,
			Port:         ":8090",
			AnnounceMDNS: true,
		},
		Sheets: SheetsConfig{
			SheetName: "PrintJobs",
		},
	}
	cfg.applyDefaults()

	if err := SaveConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides lets deployment environments override config.json
func ApplyEnvOverrides(cfg *AppConfig) {
	cfg.Relay.BaseURL = getEnv("RELAY_URL", cfg.Relay.BaseURL)
	cfg.Relay.Token = getEnv("RELAY_TOKEN", cfg.Relay.Token)
	cfg.Relay.TimeoutSeconds = getEnvInt("RELAY_TIMEOUT_SECONDS", cfg.Relay.TimeoutSeconds)

	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Username = getEnv("DB_USER", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Store.ID = getEnv("STORE_ID", cfg.Store.ID)
	cfg.Store.DefaultPrinterID = getEnv("DEFAULT_PRINTER_ID", cfg.Store.DefaultPrinterID)
	cfg.Status.Port = getEnv("STATUS_PORT", cfg.Status.Port)
	cfg.Dispatch.MaxRetries = getEnvInt("PRINT_MAX_RETRIES", cfg.Dispatch.MaxRetries)
}

// applyDefaults fills zero values left by older config files
func (cfg *AppConfig) applyDefaults() {
	if cfg.Database.Path == "" {
		if appDir, err := GetAppDir(); err == nil {
			cfg.Database.Path = filepath.Join(appDir, "data", "print_jobs.db")
		} else {
			cfg.Database.Path = filepath.Join("data", "print_jobs.db")
		}
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Dispatch.RetryDelaySeconds <= 0 {
		cfg.Dispatch.RetryDelaySeconds = 2
	}
	if cfg.Dispatch.MaxRetries < 0 {
		cfg.Dispatch.MaxRetries = 2
	}
	if cfg.Reconcile.IntervalSeconds <= 0 {
		cfg.Reconcile.IntervalSeconds = 30
	}
	if cfg.Status.Port == "" {
		cfg.Status.Port = ":8090"
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// encryptSensitiveFields encrypts sensitive configuration fields
func (cfg *AppConfig) encryptSensitiveFields() error {
	var err error

	if cfg.Database.Password != "" {
		cfg.Database.Password, err = security.Encrypt(cfg.Database.Password)
		if err != nil {
			return fmt.Errorf("could not encrypt database password: %w", err)
		}
	}

	if cfg.Relay.Token != "" {
		cfg.Relay.Token, err = security.Encrypt(cfg.Relay.Token)
		if err != nil {
			return fmt.Errorf("could not encrypt relay token: %w", err)
		}
	}

	if cfg.Sheets.ServiceAccountKey != "" {
		cfg.Sheets.ServiceAccountKey, err = security.Encrypt(cfg.Sheets.ServiceAccountKey)
		if err != nil {
			return fmt.Errorf("could not encrypt sheets key: %w", err)
		}
	}

	return nil
}

// decryptSensitiveFields decrypts sensitive configuration fields.
// Values that fail to decrypt are kept as plain text.
func (cfg *AppConfig) decryptSensitiveFields() {
	for _, field := range []*string{&cfg.Database.Password, &cfg.Relay.Token, &cfg.Sheets.ServiceAccountKey} {
		if *field == "" {
			continue
		}
		if decrypted, err := security.Decrypt(*field); err == nil {
			*field = decrypted
		}
	}
}
