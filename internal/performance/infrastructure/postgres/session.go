package postgres

import (
	"context"
	"database/sql"
	"errors"

	performance "railwatch/internal/performance/domain"
)

// SessionOpener hands out one dedicated connection per pipeline run.
type SessionOpener struct {
	db *sql.DB
}

// NewSessionOpener constructs a SessionOpener.
func NewSessionOpener(db *sql.DB) *SessionOpener {
	return &SessionOpener{db: db}
}

// Open acquires a connection. Callers must Close the session.
func (o *SessionOpener) Open(ctx context.Context) (performance.Session, error) {
	if o == nil || o.db == nil {
		return nil, errors.New("session opener: nil db")
	}
	conn, err := o.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		IdentityStore: NewIdentityStore(conn),
		FactStore:     NewFactStore(conn),
		conn:          conn,
	}, nil
}

// Session binds the identity and fact stores to one connection.
type Session struct {
	*IdentityStore
	*FactStore
	conn *sql.Conn
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
