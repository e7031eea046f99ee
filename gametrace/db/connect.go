package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/go-libsql"
)

// libsqlPragmas tunes the embedded database for the engine's read-heavy
// workload: WAL keeps turn inserts from blocking catalogue reads.
const libsqlPragmas = "_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-64000&_temp_store=memory"

// ConnectToDB opens the embedded libsql database at path, creating the file
// and its parent directory on first use. The connection is verified before
// being handed back.
func ConnectToDB(path string) (*sql.DB, error) {
	if err := ensureDatabaseFile(path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?%s", path, libsqlPragmas)
	slog.Info("opening embedded libsql database", "path", path)

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err := verifyConnection(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func ensureDatabaseFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create database directory for %s: %w", path, err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("database not found, creating a new one", "path", path)
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create database at %s: %w", path, err)
		}
		file.Close()
	}
	return nil
}

// verifyConnection performs a basic connectivity check on a fresh connection.
func verifyConnection(conn *sql.DB) error {
	var result int
	if err := conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("connectivity check failed: unexpected result %d", result)
	}
	return nil
}
