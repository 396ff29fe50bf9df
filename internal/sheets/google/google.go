// Package google stores the ledger in two tabs of a Google spreadsheet.
// The tabs use the same header layout as the CSV files.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	oauthgoogle "golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
	"keuangan/internal/tabular"
)

const (
	DefaultIncomeSheet  = "Pemasukan"
	DefaultExpenseSheet = "Pengeluaran"
)

// Config selects the spreadsheet, its tabs and the service account.
type Config struct {
	SpreadsheetID   string
	IncomeSheet     string
	ExpenseSheet    string
	CredentialsJSON string
	CredentialsFile string
	// OAuth is used when no service account credentials are available.
	OAuth  OAuthConfig
	Legacy tabular.Legacy
}

// valuesAPI is the subset of the Sheets values resource the store needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	incomeSheet   string
	expenseSheet  string
	legacy        tabular.Legacy
	logger        *applog.Logger
}

var _ ledger.Store = (*Client)(nil)

// New creates a Sheets-backed store authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, cfg, logger), nil
}

func newClient(values valuesAPI, cfg Config, logger *applog.Logger) *Client {
	income := strings.TrimSpace(cfg.IncomeSheet)
	if income == "" {
		income = DefaultIncomeSheet
	}
	expense := strings.TrimSpace(cfg.ExpenseSheet)
	if expense == "" {
		expense = DefaultExpenseSheet
	}
	return &Client{
		values:        values,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		incomeSheet:   income,
		expenseSheet:  expense,
		legacy:        cfg.Legacy,
		logger:        logger,
	}
}

// newSheetsService initializes a Sheets Service. Service account credentials
// win: inline JSON, then the file, then GOOGLE_APPLICATION_CREDENTIALS. Without
// any of them the OAuth user token is used.
func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	case cfg.OAuth.configured():
		logger.InfoContext(ctx, "Using OAuth user credentials")
		ts, err := cfg.OAuth.tokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return gsheet.NewService(ctx, goption.WithTokenSource(ts))
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_CLIENT_FILE)")
	}

	jwtCfg, err := oauthgoogle.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	service, err := gsheet.NewService(ctx, goption.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "client_email", jwtCfg.Email)
	return service, nil
}

// Load implements ledger.Store. Both tabs are fetched concurrently and
// independently: a tab that cannot be read or decoded is reported in a
// *ledger.LoadError and the other tab is still returned. A tab with no
// values is an empty table.
func (c *Client) Load(ctx context.Context) (ledger.Snapshot, error) {
	var (
		incomeRows, expenseRows [][]interface{}
		loadErr                 ledger.LoadError
		g                       errgroup.Group
	)

	g.Go(func() error {
		v, err := c.values.Get(ctx, c.spreadsheetID, tabRange(c.incomeSheet))
		if err != nil {
			loadErr.Income = fmt.Errorf("read %s: %w", c.incomeSheet, err)
		}
		incomeRows = v
		return nil
	})
	g.Go(func() error {
		v, err := c.values.Get(ctx, c.spreadsheetID, tabRange(c.expenseSheet))
		if err != nil {
			loadErr.Expense = fmt.Errorf("read %s: %w", c.expenseSheet, err)
		}
		expenseRows = v
		return nil
	})
	_ = g.Wait()

	var snap ledger.Snapshot
	if loadErr.Income == nil {
		income, notes, err := tabular.DecodeIncome(toRows(incomeRows), c.legacy)
		if err != nil {
			loadErr.Income = fmt.Errorf("decode %s: %w", c.incomeSheet, err)
		} else {
			snap.Income = income
			snap.Normalized = append(snap.Normalized, notes...)
		}
	}
	if loadErr.Expense == nil {
		expenses, notes, err := tabular.DecodeExpenses(toRows(expenseRows), c.legacy)
		if err != nil {
			loadErr.Expense = fmt.Errorf("decode %s: %w", c.expenseSheet, err)
		} else {
			snap.Expenses = expenses
			snap.Normalized = append(snap.Normalized, notes...)
		}
	}

	c.logger.DebugContext(ctx, "Ledger read from Sheets",
		applog.FieldOperation, applog.OpLoad,
		"income_records", len(snap.Income),
		"expense_records", len(snap.Expenses))
	return snap, loadErr.OrNil()
}

// Save implements ledger.Store. Each tab is cleared and rewritten; the two
// tabs are written concurrently and are not atomic with each other.
func (c *Client) Save(ctx context.Context, snap ledger.Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.rewrite(gctx, c.incomeSheet, tabular.EncodeIncome(snap.Income))
	})
	g.Go(func() error {
		return c.rewrite(gctx, c.expenseSheet, tabular.EncodeExpenses(snap.Expenses))
	})
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Ledger written to Sheets",
		applog.FieldOperation, applog.OpPersist,
		"income_records", len(snap.Income),
		"expense_records", len(snap.Expenses))
	return nil
}

func (c *Client) rewrite(ctx context.Context, sheet string, rows [][]string) error {
	rng := tabRange(sheet)
	if err := c.values.Clear(ctx, c.spreadsheetID, rng); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	if err := c.values.Update(ctx, c.spreadsheetID, fmt.Sprintf("%s!A1", quoteSheet(sheet)), tabular.ToCells(rows)); err != nil {
		return fmt.Errorf("update %s: %w", sheet, err)
	}
	return nil
}

func tabRange(sheet string) string {
	return fmt.Sprintf("%s!A:D", quoteSheet(sheet))
}

// quoteSheet wraps names containing anything but letters and digits in
// single quotes, as A1 notation requires.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

func toRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = tabular.ToStrings(v)
	}
	return rows
}

// serviceValues adapts *gsheet.Service to valuesAPI.
type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s serviceValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}
