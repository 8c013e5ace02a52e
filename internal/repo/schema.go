package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return DialectSQLite, nil
	case "pgx", "postgres":
		return DialectPostgres, nil
	}
	return 0, fmt.Errorf("unsupported database driver %q", driver)
}

// rebind turns ? placeholders into $n for Postgres.
func (d Dialect) rebind(q string) string {
	if d != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
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

func (d Dialect) schema() []string {
	ts, ver := "DATETIME", "INTEGER"
	if d == DialectPostgres {
		ts, ver = "TIMESTAMPTZ", "BIGINT"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS leads (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			phone           TEXT NOT NULL UNIQUE,
			interest        TEXT NOT NULL DEFAULT '',
			email           TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'not_sent',
			replied         BOOLEAN NOT NULL DEFAULT FALSE,
			last_sent_at    %[1]s,
			last_reply_at   %[1]s,
			last_reply_text TEXT,
			template_used   TEXT,
			message_sid     TEXT,
			delivery_status TEXT,
			last_error      TEXT,
			version         %[2]s NOT NULL DEFAULT 1,
			created_at      %[1]s NOT NULL,
			updated_at      %[1]s NOT NULL
		)`, ts, ver),
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_message_sid ON leads (message_sid)`,
	}
}

// Migrate creates the leads table and its indexes if they do not exist.
func (r *SQLLeadRepo) Migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.schema() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
