package backend

import (
	"fmt"

	"keuangan/internal/config"
)

// FromAppConfig converts the application config to the primary store config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := fromShared(appConfig, BackendType(appConfig.Backend))
	cfg.DataDir = appConfig.DataDir
	cfg.SQLiteDBPath = appConfig.SQLiteDBPath
	cfg.AMQPURL = appConfig.AMQPURL
	cfg.AMQPExchange = appConfig.AMQPExchange
	cfg.AMQPQueue = appConfig.AMQPQueue
	return cfg, cfg.Validate()
}

// MirrorFromAppConfig converts the application config to the mirror store
// config. The mirror never publishes change events.
func MirrorFromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := fromShared(appConfig, BackendType(appConfig.MirrorBackend))
	cfg.DataDir = appConfig.MirrorDir
	cfg.SQLiteDBPath = appConfig.MirrorSQLitePath()
	if cfg.Type == MemoryBackend {
		return Config{}, fmt.Errorf("memory backend cannot be used as a mirror")
	}
	return cfg, cfg.Validate()
}

func fromShared(appConfig *config.Config, t BackendType) Config {
	return Config{
		Type:        t,
		IncomeFile:  appConfig.IncomeFile,
		ExpenseFile: appConfig.ExpenseFile,
		Legacy:      appConfig.Legacy(),

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleIncomeSheet:        appConfig.GoogleIncomeSheet,
		GoogleExpenseSheet:       appConfig.GoogleExpenseSheet,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
		GoogleOAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case CSVBackend:
		if c.DataDir == "" {
			return fmt.Errorf("data directory is required for csv backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		// nothing to configure
	}

	// AMQP is optional, but a URL needs somewhere to publish
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{CSVBackend, SQLiteBackend, SheetsBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
