// Package postgres stores lookup tables in PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/deltah/internal/log"
	"github.com/chrissnell/deltah/internal/storage"
	"github.com/chrissnell/deltah/pkg/lookup"
)

// Cells are inserted in batches of this size.
const cellBatchSize = 1000

// Store is a storage.TableStore backed by PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

var _ storage.TableStore = (*Store)(nil)

// Open connects to PostgreSQL and migrates the lookup table schema.
func Open(connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	logger.Info("connecting to PostgreSQL...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("unable to create a PostgreSQL connection: %w", err)
	}
	return New(db, logger)
}

// New wraps an existing gorm connection and migrates the schema.
func New(db *gorm.DB, logger *zap.SugaredLogger) (*Store, error) {
	if err := db.AutoMigrate(&TableRecord{}, &CellRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate lookup table schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func gormLogger() logger.Interface {
	return logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
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

	records := make([]TableRecord, len(tables))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, nt := range tables {
			records[i] = TableRecord{
				RunID:      uuid.New().String(),
				Name:       nt.Name,
				Increments: nt.Table.Increments(),
			}
			if err := tx.Omit("Cells").Create(&records[i]).Error; err != nil {
				return fmt.Errorf("failed to insert table header of %s: %w", nt.Name, err)
			}

			cells := storage.Cells(nt.Table)
			rows := make([]CellRecord, len(cells))
			for j, c := range cells {
				rows[j] = CellRecord{
					TableID:   records[i].ID,
					Increment: c.Increment,
					UnitID:    c.UnitID,
					Area:      c.Area,
					Volume:    c.Volume,
				}
			}
			if err := tx.CreateInBatches(rows, cellBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert cells of %s: %w", nt.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	runIDs := make([]string, len(records))
	for i, r := range records {
		runIDs[i] = r.RunID
		s.logger.Infow("stored lookup table", "name", r.Name, "run_id", r.RunID, "units", len(tables[i].Table.UnitIDs))
	}
	return runIDs, nil
}

// LoadTable returns the most recently saved table with the given name.
func (s *Store) LoadTable(ctx context.Context, name string) (*lookup.Table, error) {
	var record TableRecord
	err := s.db.WithContext(ctx).
		Preload("Cells").
		Where("name = ?", name).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", name, err)
	}

	cells := make([]storage.Cell, len(record.Cells))
	for i, c := range record.Cells {
		cells[i] = storage.Cell{Increment: c.Increment, UnitID: c.UnitID, Area: c.Area, Volume: c.Volume}
	}
	return storage.Assemble(record.Increments, cells)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
