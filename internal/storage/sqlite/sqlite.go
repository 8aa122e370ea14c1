// Package sqlite stores lookup tables in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/deltah/internal/storage"
	"github.com/chrissnell/deltah/pkg/lookup"
	"github.com/chrissnell/deltah/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a storage.TableStore backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

var _ storage.TableStore = (*Store)(nil)

// Open opens (or creates) the database at path and brings its schema up to date.
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// One writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := NewMigrator(db, logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}

	return &Store{db: db, logger: logger}, nil
}

// NewMigrator returns a migrator for the table store schema.
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", ""), logger)
}

// SaveTable stores t under name in a single transaction and returns the new run id.
func (s *Store) SaveTable(ctx context.Context, name string, t *lookup.Table) (string, error) {
	ids, err := s.SaveTables(ctx, []storage.NamedTable{{Name: name, Table: t}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// SaveTables stores every table in one transaction and returns their run ids in order.
func (s *Store) SaveTables(ctx context.Context, tables []storage.NamedTable) ([]string, error) {
	if err := storage.ValidateAll(tables); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO lookup_cells (table_id, increment, unit_id, area, volume) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()

	runIDs := make([]string, len(tables))
	for i, nt := range tables {
		runIDs[i] = uuid.New().String()
		res, err := tx.ExecContext(ctx,
			"INSERT INTO lookup_tables (run_id, name, increments) VALUES (?, ?, ?)",
			runIDs[i], nt.Name, nt.Table.Increments())
		if err != nil {
			return nil, fmt.Errorf("failed to insert table header of %s: %w", nt.Name, err)
		}
		tableID, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}

		for _, c := range storage.Cells(nt.Table) {
			if _, err := stmt.ExecContext(ctx, tableID, c.Increment, c.UnitID, c.Area, c.Volume); err != nil {
				return nil, fmt.Errorf("failed to insert cell (%d, %d) of %s: %w", c.Increment, c.UnitID, nt.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %d tables: %w", len(tables), err)
	}

	for i, nt := range tables {
		s.logger.Infow("stored lookup table", "name", nt.Name, "run_id", runIDs[i], "units", len(nt.Table.UnitIDs))
	}
	return runIDs, nil
}

// LoadTable returns the most recently saved table with the given name.
func (s *Store) LoadTable(ctx context.Context, name string) (*lookup.Table, error) {
	var tableID int64
	var increments int
	err := s.db.QueryRowContext(ctx,
		"SELECT id, increments FROM lookup_tables WHERE name = ? ORDER BY id DESC LIMIT 1", name,
	).Scan(&tableID, &increments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT increment, unit_id, area, volume FROM lookup_cells WHERE table_id = ?", tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells of %s: %w", name, err)
	}
	defer rows.Close()

	var cells []storage.Cell
	for rows.Next() {
		var c storage.Cell
		if err := rows.Scan(&c.Increment, &c.UnitID, &c.Area, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan cell row: %w", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return storage.Assemble(increments, cells)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
