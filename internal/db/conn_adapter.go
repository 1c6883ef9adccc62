package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// SQLConn adapts *sql.DB to implement the sfdash.Conn interface.
// This decouples the manager and query service from database/sql and
// driver-specific types.
//
// Thread-Safety: Safe for concurrent use (*sql.DB is a pool).
type SQLConn struct {
	db *sql.DB
}

// NewSQLConn creates a new SQLConn wrapping the given pool.
func NewSQLConn(db *sql.DB) *SQLConn {
	return &SQLConn{db: db}
}

// Query executes query and collects every row as a Record keyed by the
// column names the driver reports, unchanged. Row order is preserved.
func (c *SQLConn) Query(ctx context.Context, query string) ([]sfdash.Record, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	kinds := make([]columnKind, len(columnTypes))
	for i, ct := range columnTypes {
		kinds[i] = kindOf(ct)
	}

	values := make([]any, len(columnTypes))
	dest := make([]any, len(columnTypes))
	for i := range values {
		dest[i] = &values[i]
	}

	records := make([]sfdash.Record, 0)
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		record := make(sfdash.Record, len(kinds))
		for i, k := range kinds {
			record[k.name] = normalizeValue(k, values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Ping verifies the session is alive.
func (c *SQLConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (c *SQLConn) Close() error {
	return c.db.Close()
}

type columnKind struct {
	name     string
	typeName string
	scale    int64
}

func kindOf(ct *sql.ColumnType) columnKind {
	k := columnKind{name: ct.Name(), typeName: strings.ToUpper(ct.DatabaseTypeName())}
	if _, scale, ok := ct.DecimalSize(); ok {
		k.scale = scale
	}
	return k
}

// normalizeValue converts the textual values Snowflake returns for numeric
// and boolean columns into Go scalars. Everything else passes through;
// []byte becomes string.
func normalizeValue(k columnKind, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	s, ok := v.(string)
	if !ok {
		return v
	}

	switch k.typeName {
	case "FIXED", "NUMBER", "DECIMAL", "NUMERIC":
		if k.scale == 0 {
			// NUMBER(38,0) can exceed int64; keep the exact text then.
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
			return s
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "INTEGER", "INT", "BIGINT", "SMALLINT":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "REAL", "FLOAT", "DOUBLE":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BOOLEAN":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}

var _ sfdash.Conn = (*SQLConn)(nil)
