package backend

import (
	"context"
	"errors"
	"fmt"

	"keuangan/internal/amqp"
	applog "keuangan/internal/log"
	gsheet "keuangan/internal/sheets/google"
	"keuangan/internal/storage"
	"keuangan/internal/storage/csvfile"
	"keuangan/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case CSVBackend:
		res, err = f.createCSVBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(res, config)
	return res, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) (*Result, error) {
	store := csvfile.New(config.DataDir, config.IncomeFile, config.ExpenseFile, config.Legacy)
	income, expense := store.Paths()

	f.logger.Info("Initialized CSV backend",
		applog.FieldBackend, config.Type,
		"income_file", income,
		"expense_file", expense)

	return &Result{Store: store, Cleanup: noCleanup}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger.WithComponent(applog.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		applog.FieldBackend, config.Type,
		"db_path", config.SQLiteDBPath)

	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		IncomeSheet:     config.GoogleIncomeSheet,
		ExpenseSheet:    config.GoogleExpenseSheet,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
		OAuth: gsheet.OAuthConfig{
			ClientJSON: config.GoogleOAuthClientJSON,
			ClientFile: config.GoogleOAuthClientFile,
			TokenJSON:  config.GoogleOAuthTokenJSON,
			TokenFile:  config.GoogleOAuthTokenFile,
		},
		Legacy: config.Legacy,
	}, f.logger.WithComponent(applog.ComponentSheets))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		applog.FieldBackend, config.Type,
		"spreadsheet_id", config.GoogleSpreadsheetID)

	return &Result{Store: cli, Cleanup: noCleanup}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	f.logger.Warn("Initialized memory backend, ledger will not survive a restart",
		applog.FieldBackend, MemoryBackend)
	return &Result{Store: memory.New(nil, nil), Cleanup: noCleanup}, nil
}

// attachPublisher connects to AMQP when configured. A broker that is down at
// startup only disables change events.
func (f *DefaultFactory) attachPublisher(res *Result, config Config) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger.WithComponent(applog.ComponentAMQP))
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change events", applog.FieldError, err)
		return
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	storeCleanup := res.Cleanup
	res.Publisher = client
	res.Cleanup = func() error {
		return errors.Join(client.Close(), storeCleanup())
	}
}

func noCleanup() error { return nil }
