// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
)

// Querier is the statement surface shared by [pgxpool.Pool] and [pgx.Tx].
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a [Querier] that can open transactions. Satisfied by *pgxpool.Pool
// and by pgxmock pools in tests.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Conn returns the transaction bound to ctx, falling back to db.
//
// Repositories call it on every statement so that work started inside
// [Transactor.WithinTx] runs on the same transaction.
func Conn(ctx context.Context, db DB) Querier {
	if transaction := ctxutil.GetTransaction(ctx); transaction != nil {
		return transaction
	}
	return db
}

// Transactor runs a function as a single unit of work.
type Transactor struct {
	db DB
}

// NewTransactor creates a new [Transactor].
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx executes work inside a transaction and commits if it returns nil.
//
// Nested calls join the outermost transaction. Any error, or a panic,
// rolls the whole unit back.
func (transactor *Transactor) WithinTx(ctx context.Context, work func(ctx context.Context) error) error {
	if ctxutil.GetTransaction(ctx) != nil {
		return work(ctx)
	}

	transaction, err := transactor.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer func() { _ = transaction.Rollback(ctx) }()

	if err := work(ctxutil.WithTransaction(ctx, transaction)); err != nil {
		return err
	}

	if err := transaction.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transaction: %w", err)
	}
	return nil
}
