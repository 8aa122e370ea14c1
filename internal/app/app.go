// Package app runs the configured lookup table computations end to end.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/deltah/internal/geometry"
	"github.com/chrissnell/deltah/internal/glacier"
	"github.com/chrissnell/deltah/internal/schedule"
	"github.com/chrissnell/deltah/internal/storage"
	"github.com/chrissnell/deltah/internal/storage/postgres"
	"github.com/chrissnell/deltah/internal/storage/sqlite"
	"github.com/chrissnell/deltah/pkg/config"
	"github.com/chrissnell/deltah/pkg/lookup"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	binder         schedule.Binder
	year           int
}

// Result is the outcome of one configured run.
type Result struct {
	Run   config.RunData
	Table *lookup.Table
	RunID string
	Files []string
}

// New creates a new application instance. The schedule is bound to a logging binder
// unless SetBinder is called.
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
		binder:         schedule.LogBinder{Logger: logger},
		year:           time.Now().Year(),
	}
}

// SetYear sets the calendar year the schedule is reported for.
func (a *App) SetYear(year int) {
	a.year = year
}

// SetBinder sets the engine the schedule is registered with.
func (a *App) SetBinder(b schedule.Binder) {
	a.binder = b
}

// Run computes every configured table, writes and stores the results and binds the schedule.
// Nothing is written until every run has succeeded, and written files are removed again if a
// later step fails.
func (a *App) Run(ctx context.Context) (results []Result, err error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	results, err = a.Compute(ctx, cfg.Runs)
	if err != nil {
		return nil, err
	}

	sched, err := BuildSchedule(cfg, results)
	if err != nil {
		return nil, err
	}

	if err := writeOutputs(results); err != nil {
		return nil, err
	}
	written := results
	defer func() {
		if err != nil {
			removeOutputs(written)
		}
	}()

	if err := a.persist(ctx, cfg.Storage, results); err != nil {
		return nil, err
	}

	if err := sched.BindAll(a.binder); err != nil {
		return nil, err
	}

	for _, e := range sched.Timeline(a.year) {
		a.logger.Infow("scheduled change",
			"kind", e.Kind,
			"land_cover", e.LandCover,
			"month", schedule.MonthName(e.Month),
			"day_of_year", e.DayOfYear,
			"year", a.year,
		)
	}

	a.logger.Infow("preprocessing complete", "runs", len(results), "scheduled_changes", sched.Len())
	return results, nil
}

// Compute runs the configured computations in parallel. Each engine run is independent;
// the first failure cancels the rest and no results are returned. Compute writes nothing.
func (a *App) Compute(ctx context.Context, runs []config.RunData) ([]Result, error) {
	results := make([]Result, len(runs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, run := range runs {
		i, run := i, run
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.computeRun(run)
			if err != nil {
				return fmt.Errorf("run %s: %w", run.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *App) computeRun(run config.RunData) (Result, error) {
	engineType, err := glacier.ParseEngineType(run.Engine)
	if err != nil {
		return Result{}, err
	}
	widthUpdate, err := glacier.ParseWidthUpdate(run.WidthUpdate)
	if err != nil {
		return Result{}, err
	}

	geom, err := geometry.Load(run.GeometryFile, engineType, run.DensityRatio)
	if err != nil {
		return Result{}, err
	}
	geom.CatchmentArea = run.CatchmentArea
	geom.PixelArea = run.PixelArea

	opts := glacier.Options{WidthUpdate: widthUpdate, DensityRatio: run.DensityRatio}
	calc, err := glacier.NewCalculator(engineType, geom, opts, a.logger.With("run", run.Name))
	if err != nil {
		return Result{}, err
	}

	table, err := calc.Calculate(run.Increments)
	if err != nil {
		return Result{}, err
	}

	return Result{Run: run, Table: table}, nil
}

func writeOutputs(results []Result) error {
	for i := range results {
		run := results[i].Run
		if run.OutputDir == "" {
			continue
		}
		files, err := WriteTable(run.OutputDir, run.Name, results[i].Table)
		results[i].Files = files
		if err != nil {
			removeOutputs(results)
			return fmt.Errorf("run %s: %w", run.Name, err)
		}
	}
	return nil
}

func removeOutputs(results []Result) {
	for i := range results {
		for _, f := range results[i].Files {
			os.Remove(f)
		}
		results[i].Files = nil
	}
}

// WriteTable writes <name>_area.csv, <name>_volume.csv and <name>.msgpack into dir. On
// failure it returns the files it already created alongside the error.
func WriteTable(dir, name string, t *lookup.Table) (files []string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	areaPath := filepath.Join(dir, name+"_area.csv")
	volumePath := filepath.Join(dir, name+"_volume.csv")
	packPath := filepath.Join(dir, name+".msgpack")

	create := func(path string) (*os.File, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		files = append(files, path)
		return f, nil
	}

	areaF, err := create(areaPath)
	if err != nil {
		return files, err
	}
	defer areaF.Close()
	volumeF, err := create(volumePath)
	if err != nil {
		return files, err
	}
	defer volumeF.Close()

	if err := t.WriteCSV(areaF, volumeF); err != nil {
		return files, fmt.Errorf("failed to write %s tables: %w", name, err)
	}

	packF, err := create(packPath)
	if err != nil {
		return files, err
	}
	defer packF.Close()
	if err := t.EncodeMsgpack(packF); err != nil {
		return files, fmt.Errorf("failed to write %s: %w", packPath, err)
	}

	for _, f := range []*os.File{areaF, volumeF, packF} {
		if err := f.Sync(); err != nil {
			return files, err
		}
	}
	return files, nil
}

func (a *App) persist(ctx context.Context, cfg config.StorageData, results []Result) error {
	store, err := OpenStore(cfg, a.logger)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	defer store.Close()

	batch := make([]storage.NamedTable, len(results))
	for i, res := range results {
		batch[i] = storage.NamedTable{Name: res.Run.Name, Table: res.Table}
	}
	runIDs, err := store.SaveTables(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to store lookup tables: %w", err)
	}
	for i := range results {
		results[i].RunID = runIDs[i]
	}
	return nil
}

// OpenStore opens the configured table store. It returns nil when none is configured.
func OpenStore(cfg config.StorageData, logger *zap.SugaredLogger) (storage.TableStore, error) {
	switch {
	case cfg.SQLite != nil:
		s, err := sqlite.Open(cfg.SQLite.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case cfg.Postgres != nil:
		s, err := postgres.Open(cfg.Postgres.ConnectionString, logger.Named("postgres"))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, nil
}

// BuildSchedule turns the seasonal triggers and the scheduled runs into a schedule.
func BuildSchedule(cfg *config.ConfigData, results []Result) (*schedule.Schedule, error) {
	var sched schedule.Schedule

	for _, s := range cfg.Seasonal {
		sc, err := schedule.NewSeasonalConversion(s.Month, s.Day, s.LandCover)
		if err != nil {
			return nil, err
		}
		sched.Add(sc)
	}

	for _, res := range results {
		if !res.Run.Scheduled() {
			continue
		}
		change, err := schedule.NewLookupTableChange(res.Run.Month, res.Run.LandCover, res.Table)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", res.Run.Name, err)
		}
		sched.Add(change)
	}
	return &sched, nil
}
