package audit

import (
	"cfsync/log"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migration represents a database migration, either a SQL file or Apply
type migration struct {
	Version  string
	Filename string
	SQL      string
	Apply    func(ctx context.Context, tx *sql.Tx) error
}

// codeMigrations are the steps plain SQL cannot express.
var codeMigrations = []migration{
	{Version: "0002_record_columns", Filename: "0002_record_columns (code)", Apply: addRecordColumns},
}

// addRecordColumns upgrades an updates table created without per-record
// columns, as the single-record daemon did.
func addRecordColumns(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "SELECT name FROM pragma_table_info('updates')")
	if err != nil {
		return err
	}

	columns := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		columns[name] = struct{}{}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, column := range []string{"record_name", "record_id"} {
		if _, ok := columns[column]; ok {
			continue
		}

		log.S(ctx).Infow("adding column to legacy table", "table", "updates", "column", column)
		if _, err := tx.ExecContext(ctx, "ALTER TABLE updates ADD COLUMN "+column+" TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}

	return nil
}

// runMigrations executes all pending migrations
func runMigrations(ctx context.Context, db *sql.DB) error {
	if err := createMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}

		log.S(ctx).Infow("running migration", "file", m.Filename)
		if err := runMigration(ctx, db, m); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.Filename, err)
		}
	}

	return nil
}

func createMigrationsTable(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := db.ExecContext(ctx, query)
	return err
}

// loadMigrations loads the embedded migration files sorted by version
func loadMigrations() ([]migration, error) {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files embedded")
	}

	var migrations []migration
	for _, file := range files {
		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		filename := path.Base(file)
		migrations = append(migrations, migration{
			Version:  strings.TrimSuffix(filename, ".sql"),
			Filename: filename,
			SQL:      string(content),
		})
	}

	migrations = append(migrations, codeMigrations...)

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func getAppliedMigrations(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := map[string]struct{}{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions[version] = struct{}{}
	}

	return versions, rows.Err()
}

// runMigration applies one migration and records it in the same transaction
func runMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if m.Apply != nil {
		err = m.Apply(ctx, tx)
	} else {
		_, err = tx.ExecContext(ctx, m.SQL)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO migrations (version) VALUES (?)", m.Version); err != nil {
		return err
	}

	return tx.Commit()
}
