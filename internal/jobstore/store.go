// Package jobstore is the Job Store: a thin GORM-backed CRUD layer over
// configured backup jobs, persisted separately from the hand-rolled
// IndexStore catalog. It owns Job rows and nothing else.
package jobstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amber-sync/amber-sub000/internal/amberr"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a Job lookup finds no matching row.
var ErrNotFound = errors.New("jobstore: job not found")

// ErrDestinationConflict is returned when a job's destination path is equal
// to, or nests under or over, an existing job's destination path.
var ErrDestinationConflict = errors.New("jobstore: destination path conflicts with an existing job")

// Store is a GORM-backed CRUD layer over the jobs table.
type Store struct {
	db *gorm.DB
}

// Open opens (migrating if needed) the Job Store database at dsn, a
// filesystem path to a SQLite file.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, amberr.Wrap(amberr.KindDatabase, "failed to open job store database", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(sqlDB, logger); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(gormsqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, amberr.Wrap(amberr.KindDatabase, "failed to initialize gorm over job store", err)
	}
	return &Store{db: gdb}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runMigrations(sqlDB *sql.DB, logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return amberr.Wrap(amberr.KindMigration, "failed to open embedded migrations", err)
	}
	drv, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return amberr.Wrap(amberr.KindMigration, "failed to create sqlite migrate driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return amberr.Wrap(amberr.KindMigration, "failed to create migrator", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return amberr.Wrap(amberr.KindMigration, "failed to apply job store migrations", err)
	}
	logger.Debug("job store migrations applied")
	return nil
}

// Create inserts a new job, generating an ID if job.ID is empty. Rejects a
// destination path that equals or nests with an existing job's.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := s.checkDestinationConflict(ctx, job.ID, job.DestPath); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return amberr.Wrap(amberr.KindDatabase, "failed to create job", err)
	}
	return nil
}

// GetByID retrieves a job by ID. Returns ErrNotFound if no row exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, amberr.Wrap(amberr.KindDatabase, "failed to get job", err)
	}
	return &job, nil
}

// Update persists all fields of an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if err := s.checkDestinationConflict(ctx, job.ID, job.DestPath); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Save(job)
	if result.Error != nil {
		return amberr.Wrap(amberr.KindDatabase, "failed to update job", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRunResult records the outcome of the most recent run without
// touching the rest of the job's configuration.
func (s *Store) UpdateRunResult(ctx context.Context, id string, status string, lastRunAt sql.NullTime) error {
	updates := map[string]interface{}{"last_status": status}
	if lastRunAt.Valid {
		updates["last_run_at"] = lastRunAt.Time
	}
	result := s.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return amberr.Wrap(amberr.KindDatabase, "failed to update job run result", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a job by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Job{}, "id = ?", id)
	if result.Error != nil {
		return amberr.Wrap(amberr.KindDatabase, "failed to delete job", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every configured job, ordered by creation time ascending.
func (s *Store) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, amberr.Wrap(amberr.KindDatabase, "failed to list jobs", err)
	}
	return jobs, nil
}

// checkDestinationConflict rejects a destination path that is identical to,
// or a filesystem ancestor/descendant of, another job's destination path.
// Destinations are exclusively owned by one job at a time.
func (s *Store) checkDestinationConflict(ctx context.Context, excludeID, destPath string) error {
	var others []Job
	if err := s.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Find(&others).Error; err != nil {
		return amberr.Wrap(amberr.KindDatabase, "failed to check destination conflicts", err)
	}
	for _, o := range others {
		if pathsNest(destPath, o.DestPath) {
			return fmt.Errorf("%w: %q conflicts with job %q at %q", ErrDestinationConflict, destPath, o.ID, o.DestPath)
		}
	}
	return nil
}

func pathsNest(a, b string) bool {
	a = strings.TrimRight(a, "/")
	b = strings.TrimRight(b, "/")
	if a == b {
		return true
	}
	return strings.HasPrefix(a+"/", b+"/") || strings.HasPrefix(b+"/", a+"/")
}
