package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/stellar/go/support/db"
	"github.com/stellar/go/support/log"
)

//go:embed sqlmigrations/*.sql
var sqlMigrations embed.FS

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// ErrAnchorNotFound is returned by TransactionsBefore when the fromHash
// anchor does not identify a stored transaction.
var ErrAnchorNotFound = errors.New("anchor transaction not found")

// Store is the durable, per-account transaction store. Writes are serialized
// by the store; reads may run concurrently.
type Store struct {
	sess    db.SessionInterface
	log     *log.Entry
	writeMu sync.Mutex
}

func openSQLiteDB(dbFilePath string) (*db.Session, error) {
	// 1. Use Write-Ahead Logging (WAL).
	// 2. Use synchronous=NORMAL, which is faster and still safe in WAL mode.
	session, err := db.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", dbFilePath))
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	if err = runSQLMigrations(session.DB.DB, "sqlite3"); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("could not run SQL migrations: %w", err)
	}
	return session, nil
}

// Open opens (creating if necessary) the sqlite database at dbFilePath and
// applies any pending schema migrations.
func Open(dbFilePath string, logger *log.Entry) (*Store, error) {
	session, err := openSQLiteDB(dbFilePath)
	if err != nil {
		return nil, err
	}
	return &Store{sess: session, log: logger}, nil
}

func (s *Store) Close() error {
	return s.sess.Close()
}

// inWriteTx runs fn inside one database transaction. A batch either commits
// wholly or not at all.
func (s *Store) inWriteTx(ctx context.Context, fn func(sess db.SessionInterface) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	txSession := s.sess.Clone()
	if err := txSession.Begin(ctx); err != nil {
		return err
	}
	if err := fn(txSession); err != nil {
		_ = txSession.Rollback()
		return err
	}
	return txSession.Commit()
}

func runSQLMigrations(db *sql.DB, dialect string) error {
	m := &migrate.AssetMigrationSource{
		Asset: sqlMigrations.ReadFile,
		AssetDir: func() func(string) ([]string, error) {
			return func(path string) ([]string, error) {
				dirEntry, err := sqlMigrations.ReadDir(path)
				if err != nil {
					return nil, err
				}
				entries := make([]string, 0)
				for _, e := range dirEntry {
					entries = append(entries, e.Name())
				}

				return entries, nil
			}
		}(),
		Dir: "sqlmigrations",
	}
	_, err := migrate.ExecMax(db, dialect, m, migrate.Up, 0)
	return err
}
