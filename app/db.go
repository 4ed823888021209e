package app

import (
	"context"
	"fmt"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(models.SQLiteDSN(cfg.Database.DSN))
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("Database started", zap.String("driver", cfg.Database.Driver))

	log.Info("Starting migrations")
	if err := db.AutoMigrate(models.Entities()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}
