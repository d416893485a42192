package database

import (
	"database/sql"
	"strconv"
	"strings"
)

// Rebind rewrites '?' placeholders into the dialect's bind syntax
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ReadTxOptions returns the transaction options used for read-only work.
// Only postgres is asked for a read-only transaction.
func (d Dialect) ReadTxOptions() *sql.TxOptions {
	if d == DialectPostgres {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}
