// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fiffu/pricewatch/lib/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an in-memory sqlite database private to t, with the schema migrated.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// The database lives as long as one connection holds it open.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.Entities()...))
	return db
}

// OpenFile returns a file-backed sqlite database opened the way the server opens it, with
// no cap on connections.
func OpenFile(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := models.SQLiteDSN(filepath.Join(t.TempDir(), "pricewatch.sqlite"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.Entities()...))
	return db
}

// Product inserts an active product owned by a fresh user.
func Product(t *testing.T, db *gorm.DB, url string) *models.Product {
	t.Helper()

	user := &models.User{Username: fmt.Sprintf("user-%s", url), IsActive: true}
	require.NoError(t, db.Create(user).Error)

	product := models.NewProduct(user.ID, url, "Product")
	require.NoError(t, db.Create(product).Error)
	return product
}

// Alert inserts an active alert on product.
func Alert(t *testing.T, db *gorm.DB, product *models.Product, target float64) *models.PriceAlert {
	t.Helper()

	alert := models.NewPriceAlert(product.UserID, product.ID, target)
	require.NoError(t, db.Create(alert).Error)
	return alert
}

// SetPrice stores a current price on product without touching history.
func SetPrice(t *testing.T, db *gorm.DB, product *models.Product, price float64) {
	t.Helper()

	product.CurrentPrice = sql.NullFloat64{Float64: price, Valid: true}
	require.NoError(t, db.Model(product).Update("current_price", product.CurrentPrice).Error)
}
