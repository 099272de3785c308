package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"epsilon-backend/internal/models"
)

//go:embed schema.sql
var schema string

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// Store handles all relational persistence: users, observations,
// correlation results and chat history.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to Postgres when databaseURL is set, otherwise to a local
// sqlite database at sqlitePath, and initializes the schema.
func Open(databaseURL, sqlitePath string) (*Store, error) {
	driver, dsn := driverSQLite, sqlitePath
	if databaseURL != "" {
		driver, dsn = driverPostgres, databaseURL
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $N for the Postgres driver. Queries in
// this package are written with ? throughout.
func (s *Store) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureUser creates the user row on first login and refreshes the email
// and updated_at on subsequent logins.
func (s *Store) EnsureUser(id, email string) (*models.User, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO users (id, email, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at`),
		id, email, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	var u models.User
	err = s.db.QueryRow(s.rebind(
		"SELECT id, email, created_at, updated_at FROM users WHERE id = ?"), id,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
