// Package client provides the single connection every builder funnels through.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/jmoiron/sqlx"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/internal/debug"
)

// Conn is the network primitive used by statement builders. Implementations
// must issue statements one at a time.
type Conn interface {
	Dialect() *dialect.Dialect
	Query(ctx context.Context, query string) ([]Row, error)
	Exec(ctx context.Context, query string) (Result, error)
}

// Result is the outcome of an Exec.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Client is the default Conn backed by sqlx.
type Client struct {
	db      *sqlx.DB
	dialect *dialect.Dialect
	mu      sync.Mutex
}

// Open opens a connection for the dialect's driver. The pool is capped at a
// single connection.
func Open(d *dialect.Dialect, dsn string) (*Client, error) {
	db, err := sqlx.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d.Name, err)
	}
	db.SetMaxOpenConns(1)

	return New(db, d), nil
}

// New wraps an existing database handle.
func New(db *sqlx.DB, d *dialect.Dialect) *Client {
	return &Client{db: db, dialect: d}
}

// Dialect returns the dialect bound to this connection.
func (c *Client) Dialect() *dialect.Dialect {
	return c.dialect
}

// DB returns the underlying database handle.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return dialect.WrapDriverError(c.dialect, "", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// Query runs a rendered statement and returns every row as a column map.
// Byte slices are converted to strings.
func (c *Client) Query(ctx context.Context, query string) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		debug.Debug("Query failed", "dialect", c.dialect.Name, "sql", query, "error", err)
		return nil, dialect.WrapDriverError(c.dialect, query, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, dialect.WrapDriverError(c.dialect, query, err)
		}
		result = append(result, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, dialect.WrapDriverError(c.dialect, query, err)
	}

	debug.Debug("Query", "dialect", c.dialect.Name, "sql", query, "rows", len(result), "elapsed", time.Since(start))
	return result, nil
}

// Exec runs a rendered statement that returns no rows. Multi-statement
// batches are sent as one call.
func (c *Client) Exec(ctx context.Context, query string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	res, err := c.db.ExecContext(ctx, query)
	if err != nil {
		debug.Debug("Exec failed", "dialect", c.dialect.Name, "sql", query, "error", err)
		return Result{}, dialect.WrapDriverError(c.dialect, query, err)
	}

	debug.Debug("Exec", "dialect", c.dialect.Name, "sql", query, "elapsed", time.Since(start))
	return toResult(res), nil
}

func toResult(res sql.Result) Result {
	var out Result
	// PostgreSQL does not support LastInsertId; inserts use RETURNING instead.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out
}

var versionPattern = regexp.MustCompile(`\d+(\.\d+)+`)

// ServerVersion returns the engine version reported by SELECT VERSION().
func ServerVersion(ctx context.Context, conn Conn) (*version.Version, error) {
	rows, err := conn.Query(ctx, "SELECT VERSION() AS version")
	if err != nil {
		return nil, fmt.Errorf("failed to read server version: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to read server version: empty result")
	}

	raw := rows[0].String("version")
	match := versionPattern.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("failed to parse server version %q", raw)
	}

	v, err := version.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server version %q: %w", raw, err)
	}
	return v, nil
}

// CheckVersion fails when the server is older than the dialect's minimum version.
func CheckVersion(ctx context.Context, conn Conn) (*version.Version, error) {
	current, err := ServerVersion(ctx, conn)
	if err != nil {
		return nil, err
	}

	minimum, err := version.NewVersion(conn.Dialect().MinVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum version for %s: %w", conn.Dialect().Name, err)
	}

	if current.LessThan(minimum) {
		return current, fmt.Errorf("%s %s is not supported, %s or newer is required", conn.Dialect().Name, current, minimum)
	}
	return current, nil
}
