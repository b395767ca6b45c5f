package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // "mysql" driver
	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" driver
)

const selectRegistrants = `SELECT Id, Name, Designation, Organization, Email, Mobile, City, Mode,
	AttendanceDay1, AttendanceDay2, regtime FROM registrants`

// SQLStore reads registrants from a MySQL or PostgreSQL database.
type SQLStore struct {
	db     *sql.DB
	prefix byte // placeholder prefix: '?' or '$'
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database described by conf and pings it.
func Open(ctx context.Context, conf *Conf) (*SQLStore, error) {
	driver, err := conf.driverName()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, conf.dsn())
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: %s ping failed: %w", conf.Type, err)
	}
	log.Printf("[INFO] registry: %s client initialized", conf.Type)
	return NewSQLStore(db, conf.Type), nil
}

// NewSQLStore wraps an open database. dbType selects the placeholder
// style: "pgsql" uses $1, $2, ...; anything else uses ?.
func NewSQLStore(db *sql.DB, dbType string) *SQLStore {
	s := &SQLStore{db: db, prefix: '?'}
	if dbType == "pgsql" {
		s.prefix = '$'
	}
	return s
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind numbers the ? placeholders of query for ordinal dialects.
func rebind(query string, prefix byte) string {
	if prefix == '?' {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte(prefix)
		b.WriteString(strconv.Itoa(n))
		n++
	}
	return b.String()
}

func (r *Registrant) fieldsToScan() []any {
	return []any{
		&r.ID, &r.Name, &r.Designation, &r.Organization, &r.Email, &r.Mobile, &r.City, &r.Mode,
		&r.AttendanceDay1, &r.AttendanceDay2, &r.RegisteredAt,
	}
}

func (s *SQLStore) query(ctx context.Context, where string, args ...any) ([]Registrant, error) {
	rows, err := s.db.QueryContext(ctx, rebind(selectRegistrants+" WHERE "+where+" ORDER BY Id", s.prefix), args...)
	if err != nil {
		return nil, fmt.Errorf("registry: query failed: %w", err)
	}
	defer rows.Close()

	var out []Registrant
	for rows.Next() {
		var r Registrant
		if err := rows.Scan(r.fieldsToScan()...); err != nil {
			return nil, fmt.Errorf("registry: scan failed: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: error during iterating rows: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// FindByID implements Store.
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*Registrant, error) {
	found, err := s.query(ctx, "Id = ?", id)
	if err != nil {
		return nil, err
	}
	return &found[0], nil
}

// FindByIdentifier implements Store. The id column is only compared when
// identifier is an integer, which keeps the query valid on PostgreSQL.
func (s *SQLStore) FindByIdentifier(ctx context.Context, identifier string) ([]Registrant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return s.query(ctx, "Id = ? OR Mobile = ? OR Email = ?", id, identifier, identifier)
	}
	return s.query(ctx, "Mobile = ? OR Email = ?", identifier, identifier)
}
