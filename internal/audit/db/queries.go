package auditdb

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/elimika/auditlog/internal/audit"
)

//go:embed schema.sql
var schemaSQL string

const selectColumns = `SELECT id::text, event, actor_id, actor_email, actor_name, resource_id, resource_name, resource_type, status, ip_address, created_at FROM audit_log_entries`

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Queries implements audit.Repository on PostgreSQL.
type Queries struct {
	db DBTX
}

// New wraps a connection or pool.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Migrate creates the audit tables when missing.
func (q *Queries) Migrate(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("auditdb: migrate: %w", err)
	}
	return nil
}

// ListEntries returns one window of matching rows newest first.
func (q *Queries) ListEntries(ctx context.Context, filters audit.Filters, offset, limit int) ([]audit.LogEntry, error) {
	where, args := buildWhere(filters)
	args = append(args, int32(limit), int32(offset))
	sql := selectColumns + where + ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	return q.query(ctx, sql, args...)
}

// ListAll returns every matching row newest first.
func (q *Queries) ListAll(ctx context.Context, filters audit.Filters) ([]audit.LogEntry, error) {
	where, args := buildWhere(filters)
	return q.query(ctx, selectColumns+where+` ORDER BY created_at DESC, id DESC`, args...)
}

// Insert stores one entry.
func (q *Queries) Insert(ctx context.Context, entry audit.LogEntry) error {
	var actorID, actorEmail, actorName pgtype.Text
	if entry.Actor != nil {
		actorID, actorEmail, actorName = optionalText(entry.Actor.ID), optionalText(entry.Actor.Email), optionalText(entry.Actor.Name)
	}
	var resourceID, resourceName, resourceType pgtype.Text
	if entry.Resource != nil {
		resourceID, resourceName, resourceType = optionalText(entry.Resource.ID), optionalText(entry.Resource.Name), optionalText(entry.Resource.Type)
	}
	_, err := q.db.Exec(ctx, `INSERT INTO audit_log_entries (id, event, actor_id, actor_email, actor_name, resource_id, resource_name, resource_type, status, ip_address, created_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))`,
		entry.ID, entry.Event,
		actorID, actorEmail, actorName,
		resourceID, resourceName, resourceType,
		optionalText(string(entry.Status)), optionalText(entry.IPAddress), toPgTime(entry.CreatedAt),
	)
	return err
}

// DistinctEvents lists event names in alphabetical order.
func (q *Queries) DistinctEvents(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, `SELECT DISTINCT event FROM audit_log_entries ORDER BY event`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]string, 0)
	for rows.Next() {
		var event string
		if err := rows.Scan(&event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// DeleteBefore removes rows older than cutoff.
func (q *Queries) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM audit_log_entries WHERE created_at < $1`, toPgTime(cutoff))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) query(ctx context.Context, sql string, args ...any) ([]audit.LogEntry, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]audit.LogEntry, 0)
	for rows.Next() {
		var (
			id, event                                                  string
			actorID, actorEmail, actorName                             pgtype.Text
			resourceID, resourceName, resourceType, status, ipAddress pgtype.Text
			createdAt                                                  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &event, &actorID, &actorEmail, &actorName, &resourceID, &resourceName, &resourceType, &status, &ipAddress, &createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, mapEntry(id, event, actorID, actorEmail, actorName, resourceID, resourceName, resourceType, status, ipAddress, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// buildWhere renders the filter predicates with positional arguments.
func buildWhere(filters audit.Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if v := strings.TrimSpace(filters.Event); v != "" {
		add(`lower(event) = lower(?)`, v)
	}
	if v := strings.TrimSpace(filters.Actor); v != "" {
		add(`(actor_email ILIKE ? OR actor_name ILIKE ? OR actor_id ILIKE ?)`, likePattern(v))
	}
	if filters.Status != "" {
		add(`status = ?`, string(filters.Status))
	}
	if !filters.Start.IsZero() {
		add(`created_at >= ?`, toPgTime(filters.Start))
	}
	if !filters.End.IsZero() {
		add(`created_at <= ?`, toPgTime(filters.End))
	}
	if v := strings.TrimSpace(filters.Search); v != "" {
		add(`(event ILIKE ? OR actor_email ILIKE ? OR actor_name ILIKE ? OR actor_id ILIKE ? OR resource_name ILIKE ? OR resource_id ILIKE ? OR resource_type ILIKE ? OR ip_address ILIKE ?)`, likePattern(v))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func likePattern(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
	return "%" + escaped + "%"
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func mapEntry(id, event string, actorID, actorEmail, actorName, resourceID, resourceName, resourceType, status, ipAddress pgtype.Text, createdAt pgtype.Timestamptz) audit.LogEntry {
	entry := audit.LogEntry{ID: id, Event: event}
	if actorID.Valid || actorEmail.Valid || actorName.Valid {
		entry.Actor = &audit.Actor{ID: actorID.String, Email: actorEmail.String, Name: actorName.String}
	}
	if resourceID.Valid || resourceName.Valid || resourceType.Valid {
		entry.Resource = &audit.Resource{ID: resourceID.String, Name: resourceName.String, Type: resourceType.String}
	}
	if status.Valid {
		entry.Status = audit.Status(status.String)
	}
	if ipAddress.Valid {
		entry.IPAddress = ipAddress.String
	}
	if createdAt.Valid {
		entry.CreatedAt = createdAt.Time
	}
	return entry
}
