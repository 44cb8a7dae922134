// Package mysql is the relational persistence backend selected with STORE_DRIVER=mysql.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shoestore/api/internal/platform/config"
	"github.com/shoestore/api/internal/repositories"
)

const slowQueryThreshold = 500 * time.Millisecond

// Store owns the gorm handle and exposes the repository registry.
type Store struct {
	db     *gorm.DB
	health repositories.HealthRepository
}

var _ repositories.Registry = (*Store)(nil)

// Open connects, applies pool settings and migrates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, extraChecks ...repositories.DependencyCheck) (*Store, error) {
	if cfg.MySQLDSN == "" {
		return nil, errors.New("mysql store: dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql store: connect: %w", err)
	}
	return newStore(ctx, db, cfg, extraChecks...)
}

// NewWithDB wraps an existing gorm handle, e.g. one opened against another dialector in tests.
func NewWithDB(ctx context.Context, db *gorm.DB, extraChecks ...repositories.DependencyCheck) (*Store, error) {
	return newStore(ctx, db, config.DatabaseConfig{}, extraChecks...)
}

func newStore(ctx context.Context, db *gorm.DB, cfg config.DatabaseConfig, extraChecks ...repositories.DependencyCheck) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql store: underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.WithContext(ctx).AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("mysql store: migrate: %w", err)
	}

	checks := append([]repositories.DependencyCheck{{Name: "mysql", Check: sqlDB.PingContext}}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, health: health}, nil
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Carts() repositories.CartRepository       { return cartRepo{db: s.db} }
func (s *Store) Products() repositories.ProductRepository { return productRepo{db: s.db} }
func (s *Store) Orders() repositories.OrderRepository     { return orderRepo{db: s.db} }
func (s *Store) Users() repositories.UserRepository       { return userRepo{db: s.db} }
func (s *Store) Health() repositories.HealthRepository    { return s.health }
