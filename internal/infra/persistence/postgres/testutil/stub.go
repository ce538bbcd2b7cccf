// Package testutil provides a database/sql connector that stands in for
// Postgres in store tests. It models the single board_snapshot row and the
// revision guard applied by the upsert.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Row is the stored snapshot.
type Row struct {
	Revision   int64
	Categories []byte
	SavedAt    time.Time
}

// StubConn answers the statements issued by the postgres store.
type StubConn struct {
	mu sync.Mutex

	Statements []string
	Row        *Row
	// Writes counts upserts that replaced the row, Skipped those rejected by
	// the revision guard.
	Writes  int
	Skipped int

	FailPing  bool
	FailExec  bool
	FailQuery bool
}

// NewStubDB returns a sql.DB whose every connection is the returned StubConn.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	return sql.OpenDB(connector{conn: conn}), conn
}

// Stored returns a copy of the snapshot row, if any.
func (c *StubConn) Stored() (Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Row == nil {
		return Row{}, false
	}
	row := *c.Row
	row.Categories = append([]byte(nil), c.Row.Categories...)
	return row, true
}

type connector struct {
	conn *StubConn
}

func (c connector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c connector) Driver() driver.Driver                       { return stubDriver{conn: c.conn} }

type stubDriver struct {
	conn *StubConn
}

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn. The store only uses direct exec and query.
func (c *StubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("connection refused")
	}
	return nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statements = append(c.Statements, compact(query))
	if c.FailExec {
		return nil, errors.New("exec failed")
	}
	switch {
	case strings.HasPrefix(compact(query), "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(compact(query), "INSERT INTO board_snapshot"):
		row, err := rowFromArgs(args)
		if err != nil {
			return nil, err
		}
		if c.Row != nil && c.Row.Revision >= row.Revision {
			c.Skipped++
			return driver.RowsAffected(0), nil
		}
		c.Row = &row
		c.Writes++
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", compact(query))
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statements = append(c.Statements, compact(query))
	if c.FailQuery {
		return nil, errors.New("query failed")
	}
	if !strings.HasPrefix(compact(query), "SELECT revision, categories FROM board_snapshot") {
		return nil, fmt.Errorf("unsupported query: %s", compact(query))
	}
	rows := &snapshotRows{}
	if c.Row != nil {
		rows.values = [][]driver.Value{{c.Row.Revision, append([]byte(nil), c.Row.Categories...)}}
	}
	return rows, nil
}

func rowFromArgs(args []driver.NamedValue) (Row, error) {
	if len(args) != 3 {
		return Row{}, fmt.Errorf("upsert expects 3 args, got %d", len(args))
	}
	revision, ok := args[0].Value.(int64)
	if !ok {
		return Row{}, fmt.Errorf("revision: unexpected %T", args[0].Value)
	}
	var payload []byte
	switch v := args[1].Value.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = append([]byte(nil), v...)
	default:
		return Row{}, fmt.Errorf("categories: unexpected %T", args[1].Value)
	}
	savedAt, _ := args[2].Value.(time.Time)
	return Row{Revision: revision, Categories: payload, SavedAt: savedAt}, nil
}

// compact collapses whitespace so multi-line statements compare by prefix.
func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

type snapshotRows struct {
	values [][]driver.Value
	next   int
}

func (r *snapshotRows) Columns() []string { return []string{"revision", "categories"} }
func (r *snapshotRows) Close() error      { return nil }

func (r *snapshotRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}
