package config

import (
	"database/sql"
	"embed"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/deltah/pkg/migrate"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens the configuration database, creating the schema when needed.
func NewSQLiteProvider(dbPath string, logger *zap.SugaredLogger) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	m := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", "config_migrations"), logger)
	if err := m.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads, defaults and validates the complete configuration.
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	cfg := &ConfigData{}

	runs, err := s.GetRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	cfg.Runs = runs

	seasonal, err := s.GetSeasonal()
	if err != nil {
		return nil, fmt.Errorf("failed to load seasonal conversions: %w", err)
	}
	cfg.Seasonal = seasonal

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	cfg.Storage = *storage

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetRuns returns run configurations from the database
func (s *SQLiteProvider) GetRuns() ([]RunData, error) {
	rows, err := s.db.Query(`
		SELECT name, engine, increments, width_update, density_ratio, catchment_area,
		       pixel_area, geometry_file, output_dir, land_cover, month
		FROM runs
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunData
	for rows.Next() {
		var r RunData
		var pixelArea sql.NullFloat64
		var outputDir, landCover, month sql.NullString

		err := rows.Scan(
			&r.Name, &r.Engine, &r.Increments, &r.WidthUpdate, &r.DensityRatio, &r.CatchmentArea,
			&pixelArea, &r.GeometryFile, &outputDir, &landCover, &month,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		r.PixelArea = pixelArea.Float64
		r.OutputDir = outputDir.String
		r.LandCover = landCover.String
		if month.Valid && month.String != "" {
			r.Month = month.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetSeasonal returns the seasonal conversion triggers from the database
func (s *SQLiteProvider) GetSeasonal() ([]SeasonalData, error) {
	rows, err := s.db.Query("SELECT land_cover, month, day FROM seasonal_conversions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query seasonal conversions: %w", err)
	}
	defer rows.Close()

	var out []SeasonalData
	for rows.Next() {
		var sd SeasonalData
		var month string
		if err := rows.Scan(&sd.LandCover, &month, &sd.Day); err != nil {
			return nil, fmt.Errorf("failed to scan seasonal conversion row: %w", err)
		}
		sd.Month = month
		out = append(out, sd)
	}
	return out, rows.Err()
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	rows, err := s.db.Query("SELECT backend_type, path, connection_string FROM storage_configs")
	if err != nil {
		return nil, fmt.Errorf("failed to query storage configs: %w", err)
	}
	defer rows.Close()

	storage := &StorageData{}
	for rows.Next() {
		var backendType string
		var path, connectionString sql.NullString
		if err := rows.Scan(&backendType, &path, &connectionString); err != nil {
			return nil, fmt.Errorf("failed to scan storage config row: %w", err)
		}

		switch backendType {
		case "sqlite":
			storage.SQLite = &SQLiteData{Path: path.String}
		case "postgres":
			storage.Postgres = &PostgresData{ConnectionString: connectionString.String}
		default:
			return nil, fmt.Errorf("unknown storage backend %q", backendType)
		}
	}
	return storage, rows.Err()
}

// IsReadOnly returns false since SQLite supports read-write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with cfg in one transaction.
func (s *SQLiteProvider) SaveConfig(cfg *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"runs", "seasonal_conversions", "storage_configs"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, r := range cfg.Runs {
		if err := insertRun(tx, r); err != nil {
			return fmt.Errorf("failed to insert run %s: %w", r.Name, err)
		}
	}

	for _, sd := range cfg.Seasonal {
		_, err := tx.Exec("INSERT INTO seasonal_conversions (land_cover, month, day) VALUES (?, ?, ?)",
			sd.LandCover, fmt.Sprint(sd.Month), sd.Day)
		if err != nil {
			return fmt.Errorf("failed to insert seasonal conversion: %w", err)
		}
	}

	if cfg.Storage.SQLite != nil {
		if _, err := tx.Exec("INSERT INTO storage_configs (backend_type, path) VALUES ('sqlite', ?)",
			cfg.Storage.SQLite.Path); err != nil {
			return fmt.Errorf("failed to insert sqlite storage config: %w", err)
		}
	}
	if cfg.Storage.Postgres != nil {
		if _, err := tx.Exec("INSERT INTO storage_configs (backend_type, connection_string) VALUES ('postgres', ?)",
			cfg.Storage.Postgres.ConnectionString); err != nil {
			return fmt.Errorf("failed to insert postgres storage config: %w", err)
		}
	}

	return tx.Commit()
}

func insertRun(tx *sql.Tx, r RunData) error {
	var month sql.NullString
	if r.Month != nil {
		month = nullString(fmt.Sprint(r.Month))
	}

	_, err := tx.Exec(`
		INSERT INTO runs (name, engine, increments, width_update, density_ratio, catchment_area,
		                  pixel_area, geometry_file, output_dir, land_cover, month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Name, nonEmpty(r.Engine, DefaultEngine), nonZero(r.Increments, DefaultIncrements),
		nonEmpty(r.WidthUpdate, DefaultWidthUpdate), r.DensityRatio, r.CatchmentArea,
		nullFloat64(r.PixelArea), r.GeometryFile, nullString(r.OutputDir), nullString(r.LandCover), month,
	)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nonEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
