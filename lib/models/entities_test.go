package models_test

import (
	"testing"

	"github.com/fiffu/pricewatch/lib/dbtest"
	"github.com/fiffu/pricewatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_InactiveSurvivesCreate(t *testing.T) {
	db := dbtest.Open(t)
	user := &models.User{Username: "alice", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	inactive := &models.Product{UserID: user.ID, URL: "https://shop.example/1", Name: "Off", IsActive: false}
	require.NoError(t, db.Create(inactive).Error)
	active := models.NewProduct(user.ID, "https://shop.example/2", "On")
	require.NoError(t, db.Create(active).Error)

	var stored models.Product
	require.NoError(t, db.First(&stored, inactive.ID).Error)
	assert.False(t, stored.IsActive)
	require.NoError(t, db.First(&stored, active.ID).Error)
	assert.True(t, stored.IsActive)
}

func TestPriceAlert_NewIsActive(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.Product(t, db, "https://shop.example/1")

	alert := models.NewPriceAlert(product.UserID, product.ID, 10)
	require.NoError(t, db.Create(alert).Error)

	var stored models.PriceAlert
	require.NoError(t, db.First(&stored, alert.ID).Error)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.TriggeredAt.Valid)
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"pricewatch.sqlite":            "pricewatch.sqlite?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL",
		"file:db.sqlite?cache=private": "file:db.sqlite?cache=private&_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL",
		"db.sqlite?_busy_timeout=100":   "db.sqlite?_busy_timeout=100&_txlock=immediate&_journal_mode=WAL",
	}
	for dsn, want := range tests {
		assert.Equal(t, want, models.SQLiteDSN(dsn), dsn)
	}
}
