package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/LeventeLantos/lead-outreach/internal/model"
)

const leadColumns = `id, name, phone, interest, email, status, replied,
	last_sent_at, last_reply_at, last_reply_text, template_used, message_sid,
	delivery_status, last_error, version, created_at, updated_at`

type SQLLeadRepo struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

type Option func(*SQLLeadRepo)

// WithClock replaces the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *SQLLeadRepo) { r.now = now }
}

func NewSQLLeadRepo(db *sql.DB, dialect Dialect, opts ...Option) *SQLLeadRepo {
	r := &SQLLeadRepo{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open connects to the store behind driver ("pgx" or "sqlite") and dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLLeadRepo, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dialect == DialectPostgres {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if dialect == DialectSQLite {
		// One writer at a time avoids "database is locked" errors.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewSQLLeadRepo(db, dialect, opts...), nil
}

func (r *SQLLeadRepo) DB() *sql.DB { return r.db }

func (r *SQLLeadRepo) Close() error { return r.db.Close() }

func (r *SQLLeadRepo) Insert(ctx context.Context, nl model.NewLead) (model.Lead, error) {
	now := r.now().UTC()
	l := model.Lead{
		ID:        uuid.NewString(),
		Name:      nl.Name,
		Phone:     nl.Phone,
		Interest:  nl.Interest,
		Email:     nl.Email,
		Status:    model.NotSent,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO leads (id, name, phone, interest, email, status, replied, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), l.ID, l.Name, l.Phone, l.Interest, l.Email, string(l.Status), false, l.Version, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Lead{}, ErrDuplicatePhone
		}
		return model.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return l, nil
}

func (r *SQLLeadRepo) Get(ctx context.Context, id string) (model.Lead, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *SQLLeadRepo) GetByPhone(ctx context.Context, phone string) (model.Lead, error) {
	return r.getOne(ctx, "phone = ?", phone)
}

func (r *SQLLeadRepo) GetByMessageSID(ctx context.Context, sid string) (model.Lead, error) {
	if sid == "" {
		return model.Lead{}, ErrLeadNotFound
	}
	return r.getOne(ctx, "message_sid = ?", sid)
}

func (r *SQLLeadRepo) getOne(ctx context.Context, where string, arg any) (model.Lead, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(
		"SELECT "+leadColumns+" FROM leads WHERE "+where+" LIMIT 1"), arg)

	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lead{}, ErrLeadNotFound
	}
	if err != nil {
		return model.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *SQLLeadRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := "SELECT " + leadColumns + " FROM leads WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY created_at ASC"
	return r.query(ctx, q, args...)
}

func (r *SQLLeadRepo) List(ctx context.Context, f LeadFilter) ([]model.Lead, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.Replied != nil {
		where = append(where, "replied = ?")
		args = append(args, *f.Replied)
	}

	q := "SELECT " + leadColumns + " FROM leads"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"

	// Timestamp comparison is done in Go since SQLite stores times as text, so
	// paging has to follow it.
	if f.LastSentBefore.IsZero() && f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	leads, err := r.query(ctx, q, args...)
	if err != nil || f.LastSentBefore.IsZero() {
		return leads, err
	}

	out := leads[:0]
	for _, l := range leads {
		if l.LastSentAt != nil && !l.LastSentAt.After(f.LastSentBefore) {
			out = append(out, l)
		}
	}
	return page(out, f.Limit, f.Offset), nil
}

func page(leads []model.Lead, limit, offset int) []model.Lead {
	if offset > 0 {
		if offset >= len(leads) {
			return nil
		}
		leads = leads[offset:]
	}
	if limit > 0 && limit < len(leads) {
		leads = leads[:limit]
	}
	return leads
}

func (r *SQLLeadRepo) query(ctx context.Context, q string, args ...any) ([]model.Lead, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *SQLLeadRepo) Transition(ctx context.Context, id string, from model.Status, version int64, u Update) (model.Lead, error) {
	now := r.now().UTC()

	set := []string{"version = version + 1", "updated_at = ?"}
	args := []any{now}

	if u.Status != "" {
		set = append(set, "status = ?")
		args = append(args, string(u.Status))
	}
	if u.Replied != nil {
		set = append(set, "replied = ?")
		args = append(args, *u.Replied)
	}
	if u.LastSentAt != nil {
		set = append(set, "last_sent_at = ?")
		args = append(args, u.LastSentAt.UTC())
	}
	if u.LastReplyAt != nil {
		set = append(set, "last_reply_at = ?")
		args = append(args, u.LastReplyAt.UTC())
	}
	for _, col := range []struct {
		name string
		val  *string
	}{
		{"last_reply_text", u.LastReplyText},
		{"template_used", u.TemplateUsed},
		{"message_sid", u.MessageSID},
		{"delivery_status", u.DeliveryStatus},
		{"last_error", u.LastError},
	} {
		if col.val != nil {
			set = append(set, col.name+" = ?")
			args = append(args, *col.val)
		}
	}
	if u.LastError == nil && u.ClearError {
		set = append(set, "last_error = NULL")
	}

	args = append(args, id, string(from), version)
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(
		"UPDATE leads SET "+strings.Join(set, ", ")+" WHERE id = ? AND status = ? AND version = ?"), args...)
	if err != nil {
		return model.Lead{}, fmt.Errorf("update lead: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return model.Lead{}, fmt.Errorf("update lead: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return model.Lead{}, err
		}
		return model.Lead{}, ErrStaleLead
	}
	return r.Get(ctx, id)
}

func (r *SQLLeadRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM leads WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (r *SQLLeadRepo) Stats(ctx context.Context) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), SUM(CASE WHEN replied THEN 1 ELSE 0 END)
		FROM leads
		GROUP BY status
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("lead stats: %w", err)
	}
	defer rows.Close()

	st := Stats{ByStatus: map[model.Status]int{}}
	for rows.Next() {
		var (
			status         string
			count, replied int
		)
		if err := rows.Scan(&status, &count, &replied); err != nil {
			return Stats{}, fmt.Errorf("lead stats: %w", err)
		}
		st.ByStatus[model.Status(status)] = count
		st.Total += count
		st.Replied += replied
	}
	return st, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s rowScanner) (model.Lead, error) {
	var (
		l                                                                 model.Lead
		status                                                            string
		lastSent, lastReply                                               sql.NullTime
		replyText, templateUsed, messageSID, deliveryStatus, lastErrorMsg sql.NullString
	)
	if err := s.Scan(
		&l.ID,
		&l.Name,
		&l.Phone,
		&l.Interest,
		&l.Email,
		&status,
		&l.Replied,
		&lastSent,
		&lastReply,
		&replyText,
		&templateUsed,
		&messageSID,
		&deliveryStatus,
		&lastErrorMsg,
		&l.Version,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return model.Lead{}, err
	}

	l.Status = model.Status(status)
	l.LastSentAt = timePtr(lastSent)
	l.LastReplyAt = timePtr(lastReply)
	l.LastReplyText = stringPtr(replyText)
	l.TemplateUsed = stringPtr(templateUsed)
	l.MessageSID = stringPtr(messageSID)
	l.DeliveryStatus = stringPtr(deliveryStatus)
	l.LastError = stringPtr(lastErrorMsg)
	return l, nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
