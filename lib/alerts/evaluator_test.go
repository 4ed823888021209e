package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/fiffu/pricewatch/lib/dbtest"
	"github.com/fiffu/pricewatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	alerts []uint
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, _ *models.Product, alert *models.PriceAlert) error {
	n.alerts = append(n.alerts, alert.ID)
	return n.err
}

func TestEvaluate_FiresOnlyReachedTargets(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.Product(t, db, "https://shop.example/1")
	above := dbtest.Alert(t, db, product, 150)
	below := dbtest.Alert(t, db, product, 50)
	exact := dbtest.Alert(t, db, product, 100)
	dbtest.SetPrice(t, db, product, 100)

	e := NewEvaluator(zap.NewNop(), nil)

	var fired []models.PriceAlert
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		fired, err = e.Evaluate(context.Background(), tx, product)
		return err
	})
	require.NoError(t, err)

	require.Len(t, fired, 2)
	assert.Equal(t, above.ID, fired[0].ID)
	assert.Equal(t, exact.ID, fired[1].ID)
	assert.False(t, fired[0].IsActive)
	assert.True(t, fired[0].TriggeredAt.Valid)

	var stored models.PriceAlert
	require.NoError(t, db.First(&stored, above.ID).Error)
	assert.False(t, stored.IsActive)
	assert.True(t, stored.TriggeredAt.Valid)

	require.NoError(t, db.First(&stored, below.ID).Error)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.TriggeredAt.Valid)
}

func TestEvaluate_FiresExactlyOnce(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.Product(t, db, "https://shop.example/1")
	dbtest.Alert(t, db, product, 150)
	dbtest.SetPrice(t, db, product, 100)

	e := NewEvaluator(zap.NewNop(), nil)

	first, err := e.Evaluate(context.Background(), db, product)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := e.Evaluate(context.Background(), db, product)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestEvaluate_NoPriceIsNoop(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.Product(t, db, "https://shop.example/1")
	dbtest.Alert(t, db, product, 150)

	fired, err := NewEvaluator(zap.NewNop(), nil).Evaluate(context.Background(), db, product)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluate_IgnoresOtherProducts(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.Product(t, db, "https://shop.example/1")
	other := dbtest.Product(t, db, "https://shop.example/2")
	dbtest.Alert(t, db, other, 150)
	dbtest.SetPrice(t, db, product, 100)

	fired, err := NewEvaluator(zap.NewNop(), nil).Evaluate(context.Background(), db, product)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestNotify_ReportsEveryAlertDespiteErrors(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	e := NewEvaluator(zap.NewNop(), notifier)

	product := &models.Product{Name: "Product"}
	fired := []models.PriceAlert{{TargetPrice: 1}, {TargetPrice: 2}}
	fired[0].ID, fired[1].ID = 7, 8

	e.Notify(context.Background(), product, fired)
	assert.Equal(t, []uint{7, 8}, notifier.alerts)
}

func TestPriceAlert_RejectsNonPositiveTarget(t *testing.T) {
	db := dbtest.Open(t)
	product := dbtest.Product(t, db, "https://shop.example/1")

	for _, target := range []float64{0, -5} {
		alert := &models.PriceAlert{UserID: product.UserID, ProductID: product.ID, TargetPrice: target}
		assert.ErrorIs(t, db.Create(alert).Error, models.ErrInvalidTargetPrice)
	}
}
