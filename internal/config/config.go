package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"keuangan/internal/tabular"
)

// Backend names accepted by LEDGER_BACKEND and MIRROR_BACKEND.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel string

	// Ledger storage
	Backend     string
	DataDir     string
	IncomeFile  string
	ExpenseFile string

	// Database
	SQLiteDBPath string

	// Month that bare day-of-month dates in legacy data are placed in.
	// Zero means the current month.
	LegacyYear  int
	LegacyMonth int

	// AMQP (empty URL disables change events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleIncomeSheet        string
	GoogleExpenseSheet       string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	// OAuth user credentials, used when no service account is set
	GoogleOAuthClientFile string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenFile  string
	GoogleOAuthTokenJSON  string

	// Mirror worker
	MirrorBackend  string
	MirrorDir      string
	MirrorInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		Backend:     strings.ToLower(getEnv("LEDGER_BACKEND", BackendCSV)),
		DataDir:     getEnv("LEDGER_DATA_DIR", "."),
		IncomeFile:  getEnv("INCOME_FILE", "pemasukan.csv"),
		ExpenseFile: getEnv("EXPENSE_FILE", "pengeluaran.csv"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/keuangan.db"),

		LegacyYear:  getEnvInt("LEDGER_LEGACY_YEAR", 0),
		LegacyMonth: getEnvInt("LEDGER_LEGACY_MONTH", 0),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "keuangan"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleIncomeSheet:        getEnv("GOOGLE_INCOME_SHEET", "Pemasukan"),
		GoogleExpenseSheet:       getEnv("GOOGLE_EXPENSE_SHEET", "Pengeluaran"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		MirrorBackend:  strings.ToLower(getEnv("MIRROR_BACKEND", BackendSheets)),
		MirrorDir:      getEnv("MIRROR_DIR", "./mirror"),
		MirrorInterval: getEnvDuration("MIRROR_INTERVAL", 5*time.Minute),
	}

	return cfg
}

// MirrorSQLitePath is where the sqlite mirror keeps its database.
func (c *Config) MirrorSQLitePath() string {
	return filepath.Join(c.MirrorDir, "keuangan-mirror.db")
}

// Legacy returns the legacy month for date coercion. Unset values fall back
// to the current month inside the codec.
func (c *Config) Legacy() tabular.Legacy {
	return tabular.Legacy{Year: c.LegacyYear, Month: c.LegacyMonth}
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if !validBackend(c.Backend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.Backend, backends))
	}
	errors = append(errors, c.validateBackend(c.Backend, c.DataDir, true)...)

	if c.LegacyMonth < 0 || c.LegacyMonth > 12 {
		errors = append(errors, fmt.Sprintf("invalid legacy month %d: must be between 1 and 12", c.LegacyMonth))
	}
	if c.LegacyYear < 0 || c.LegacyYear > 9999 {
		errors = append(errors, fmt.Sprintf("invalid legacy year %d", c.LegacyYear))
	}
	if (c.LegacyYear == 0) != (c.LegacyMonth == 0) {
		errors = append(errors, "LEDGER_LEGACY_YEAR and LEDGER_LEGACY_MONTH must be set together")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMirror checks the settings only the mirror worker needs.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the mirror worker")
	}
	if !validBackend(c.MirrorBackend) || c.MirrorBackend == BackendMemory {
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of [csv sqlite sheets]", c.MirrorBackend))
	} else {
		errors = append(errors, c.validateBackend(c.MirrorBackend, c.MirrorDir, false)...)
	}
	if c.MirrorBackend == c.Backend && c.MirrorBackend == BackendCSV && filepath.Clean(c.MirrorDir) == filepath.Clean(c.DataDir) {
		errors = append(errors, "mirror directory must differ from the ledger data directory")
	}
	if c.MirrorInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must not be negative", c.MirrorInterval))
	} else if c.MirrorInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at most 24 hours", c.MirrorInterval))
	}
	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

var backends = []string{BackendCSV, BackendSQLite, BackendSheets, BackendMemory}

func validBackend(name string) bool {
	for _, b := range backends {
		if name == b {
			return true
		}
	}
	return false
}

func (c *Config) validateBackend(backend, dir string, primary bool) []string {
	var errors []string
	switch backend {
	case BackendCSV:
		if dir == "" {
			errors = append(errors, "data directory cannot be empty when using csv backend")
		}
		if c.IncomeFile == "" || c.ExpenseFile == "" {
			errors = append(errors, "income and expense file names cannot be empty when using csv backend")
		} else if c.IncomeFile == c.ExpenseFile {
			errors = append(errors, "income and expense files must differ")
		}
	case BackendSQLite:
		if primary && c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
		if !primary && dir == "" {
			errors = append(errors, "mirror directory cannot be empty when mirroring to sqlite")
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleIncomeSheet == "" || c.GoogleExpenseSheet == "" {
			errors = append(errors, "Google income and expense sheet names are required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasOAuthClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasOAuthToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
		switch {
		case hasFile || hasJSON || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		case hasOAuthClient && !hasOAuthToken:
			errors = append(errors, "GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON is required with an OAuth client (run keuangan-cli auth google)")
		case !hasOAuthClient:
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	return errors
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
