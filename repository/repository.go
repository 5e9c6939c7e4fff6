package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store holds the user's setting overrides as key/value pairs. Values are JSON text.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Repository stores the overrides to the local file system (sqlite).
type Repository struct {
	db *gorm.DB
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger that gorm warnings and errors are written to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func New(path string, opts ...Option) (*Repository, error) {
	o := options{logger: slog.Default().With("component", "repository")}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(o.logger)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	err = db.AutoMigrate(&Override{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var override Override
	result := r.db.WithContext(ctx).Where("key = ?", key).Take(&override)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if result.Error != nil {
		return "", false, fmt.Errorf("get override '%s': %w", key, result.Error)
	}
	return override.Value, true, nil
}

// Set inserts the override or replaces the value of an existing one.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(newOverride(key, value))
	if result.Error != nil {
		return fmt.Errorf("set override '%s': %w", key, result.Error)
	}
	return nil
}

// Delete removes the override, deleting a key that isn't set is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("key = ?", key).Delete(&Override{})
	if result.Error != nil {
		return fmt.Errorf("delete override '%s': %w", key, result.Error)
	}
	return nil
}

// List returns all overrides ordered by key.
func (r *Repository) List(ctx context.Context) ([]Override, error) {
	var overrides []Override
	result := r.db.WithContext(ctx).Order("key asc").Find(&overrides)
	if result.Error != nil {
		return nil, result.Error
	}
	return overrides, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// slogWriter adapts slog to the printf style writer gorm's logger expects.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}

// newGormLogger keeps gorm off stdout. A missing override is an expected outcome of Get, so it isn't reported.
func newGormLogger(l *slog.Logger) logger.Interface {
	return logger.New(slogWriter{logger: l}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
