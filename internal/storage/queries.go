package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Income struct {
	Position    int64
	Date        string
	Source      string
	AmountCents int64
}

type Expense struct {
	Position    int64
	Date        string
	Name        string
	AmountCents int64
	Category    string
}

const listIncome = `SELECT position, date, source, amount_cents FROM income ORDER BY position`

func (q *Queries) ListIncome(ctx context.Context) ([]Income, error) {
	rows, err := q.db.QueryContext(ctx, listIncome)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Income
	for rows.Next() {
		var i Income
		if err := rows.Scan(&i.Position, &i.Date, &i.Source, &i.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpenses = `SELECT position, date, name, amount_cents, category FROM expense ORDER BY position`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.Position, &i.Date, &i.Name, &i.AmountCents, &i.Category); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertIncome = `INSERT INTO income (position, date, source, amount_cents) VALUES (?, ?, ?, ?)`

type InsertIncomeParams struct {
	Position    int64
	Date        string
	Source      string
	AmountCents int64
}

func (q *Queries) InsertIncome(ctx context.Context, arg InsertIncomeParams) error {
	_, err := q.db.ExecContext(ctx, insertIncome, arg.Position, arg.Date, arg.Source, arg.AmountCents)
	return err
}

const insertExpense = `INSERT INTO expense (position, date, name, amount_cents, category) VALUES (?, ?, ?, ?, ?)`

type InsertExpenseParams struct {
	Position    int64
	Date        string
	Name        string
	AmountCents int64
	Category    string
}

func (q *Queries) InsertExpense(ctx context.Context, arg InsertExpenseParams) error {
	_, err := q.db.ExecContext(ctx, insertExpense, arg.Position, arg.Date, arg.Name, arg.AmountCents, arg.Category)
	return err
}

const deleteAllIncome = `DELETE FROM income`

func (q *Queries) DeleteAllIncome(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllIncome)
	return err
}

const deleteAllExpenses = `DELETE FROM expense`

func (q *Queries) DeleteAllExpenses(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllExpenses)
	return err
}
