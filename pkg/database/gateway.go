package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Observer receives the latency of every statement issued through a Gateway.
type Observer interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

type txKey struct{}

// Gateway is the single entry point repositories use to reach the database. Statements run on
// the transaction carried by ctx when WithinTx started one, otherwise on the pool.
type Gateway struct {
	db       *sqlx.DB
	observer Observer
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithObserver reports statement timings to o.
func WithObserver(o Observer) Option {
	return func(g *Gateway) {
		g.observer = o
	}
}

// NewGateway wraps db.
func NewGateway(db *sqlx.DB, opts ...Option) *Gateway {
	g := &Gateway{db: db}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DB exposes the underlying pool.
func (g *Gateway) DB() *sqlx.DB {
	return g.db
}

// Ping checks connectivity.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Get scans a single row into dest. It returns sql.ErrNoRows when nothing matched.
func (g *Gateway) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer g.observe(query, time.Now())
	return g.conn(ctx).GetContext(ctx, dest, query, args...)
}

// Select scans every row into dest, which must be a pointer to a slice.
func (g *Gateway) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	defer g.observe(query, time.Now())
	return g.conn(ctx).SelectContext(ctx, dest, query, args...)
}

// Exec runs a statement and returns the number of affected rows.
func (g *Gateway) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	defer g.observe(query, time.Now())
	res, err := g.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// NamedExec runs a statement with :name bindings taken from arg.
func (g *Gateway) NamedExec(ctx context.Context, query string, arg interface{}) (int64, error) {
	defer g.observe(query, time.Now())
	res, err := g.conn(ctx).NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// WithinTx runs fn inside a transaction. The transaction commits when fn returns nil and rolls
// back on error or panic. Nested calls join the outer transaction.
func (g *Gateway) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

func (g *Gateway) conn(ctx context.Context) queryer {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return g.db
}

func (g *Gateway) observe(query string, start time.Time) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveDBQuery(statementLabel(query), time.Since(start))
}

func statementLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
