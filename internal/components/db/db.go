package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Open opens the ledger database. `location` is either a local file path
// (opened with modernc sqlite) or a libsql:// / https:// url to a remote
// libsql server. The schema is applied on every open.
func Open(ctx context.Context, location string) (*sql.DB, error) {
	if location == "" {
		return nil, fmt.Errorf("a database location was not specified")
	}

	var (
		db  *sql.DB
		err error
	)
	if isRemote(location) {
		db, err = sql.Open("libsql", location)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = openFile(location)
		if err != nil {
			return nil, err
		}
	}

	_, err = db.ExecContext(ctx, Schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "libsql://") ||
		strings.HasPrefix(location, "https://") ||
		strings.HasPrefix(location, "http://")
}

func openFile(path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only allows a single writer, and :memory: databases are per
	// connection.
	db.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}
