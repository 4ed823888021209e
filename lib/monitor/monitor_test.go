package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiffu/pricewatch/lib/alerts"
	"github.com/fiffu/pricewatch/lib/dbtest"
	"github.com/fiffu/pricewatch/lib/extract"
	"github.com/fiffu/pricewatch/lib/models"
	"github.com/fiffu/pricewatch/lib/pricecache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeExtractor struct {
	mu      sync.Mutex
	prices  map[string]float64
	release chan struct{}
	calls   atomic.Int32
}

func newFakeExtractor(prices map[string]float64) *fakeExtractor {
	return &fakeExtractor{prices: prices}
}

func (e *fakeExtractor) Extract(_ context.Context, url string) (*extract.Result, error) {
	e.calls.Add(1)
	if e.release != nil {
		<-e.release
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[url]
	if !ok {
		return nil, &extract.ExtractionError{Strategy: "Fake", Attempts: 3, Err: extract.ErrNoMatch}
	}
	return &extract.Result{Price: price, Title: "Item", Source: "Fake", Timestamp: time.Now().UTC()}, nil
}

func (e *fakeExtractor) setPrice(url string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[url] = price
}

type countingEvaluator struct {
	*alerts.Evaluator

	mu        sync.Mutex
	evaluated int
	notified  []models.PriceAlert
}

func (c *countingEvaluator) Evaluate(ctx context.Context, tx *gorm.DB, product *models.Product) ([]models.PriceAlert, error) {
	c.mu.Lock()
	c.evaluated++
	c.mu.Unlock()
	return c.Evaluator.Evaluate(ctx, tx, product)
}

func (c *countingEvaluator) Notify(ctx context.Context, product *models.Product, fired []models.PriceAlert) {
	c.mu.Lock()
	c.notified = append(c.notified, fired...)
	c.mu.Unlock()
	c.Evaluator.Notify(ctx, product, fired)
}

type fixture struct {
	db        *gorm.DB
	cache     *pricecache.PriceCache
	extractor *fakeExtractor
	evaluator *countingEvaluator
	monitor   *Monitor
}

func setup(t *testing.T, prices map[string]float64) *fixture {
	t.Helper()
	return setupWithDB(t, dbtest.Open(t), prices)
}

func setupWithDB(t *testing.T, db *gorm.DB, prices map[string]float64) *fixture {
	t.Helper()

	log := zap.NewNop()
	backend, err := pricecache.NewMemoryBackend(100, time.Minute)
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		cache:     pricecache.New(log, backend, time.Minute, 0),
		extractor: newFakeExtractor(prices),
		evaluator: &countingEvaluator{Evaluator: alerts.NewEvaluator(log, nil)},
	}
	f.monitor = New(log, db, f.cache, f.extractor, f.evaluator)
	return f
}

func (f *fixture) historyCount(t *testing.T, productID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.PriceHistory{}).Where("product_id = ?", productID).Count(&n).Error)
	return n
}

func (f *fixture) reload(t *testing.T, productID uint) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, productID).Error)
	return p
}

const (
	urlA = "https://shop.example/a"
	urlB = "https://shop.example/b"
	urlC = "https://shop.example/c"
)

func TestCheckProduct_StoresPriceHistoryAndAlerts(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})
	product := dbtest.Product(t, f.db, urlA)
	high := dbtest.Alert(t, f.db, product, 150)
	low := dbtest.Alert(t, f.db, product, 50)

	res, err := f.monitor.CheckProduct(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 100.0, res.Price)

	stored := f.reload(t, product.ID)
	assert.True(t, stored.CurrentPrice.Valid)
	assert.Equal(t, 100.0, stored.CurrentPrice.Float64)
	assert.True(t, stored.LastChecked.Valid)
	assert.EqualValues(t, 1, f.historyCount(t, product.ID))

	require.Len(t, f.evaluator.notified, 1)
	assert.Equal(t, high.ID, f.evaluator.notified[0].ID)

	var alert models.PriceAlert
	require.NoError(t, f.db.First(&alert, low.ID).Error)
	assert.True(t, alert.IsActive)

	cached, ok := f.cache.Get(ctx, product.ID)
	require.True(t, ok)
	assert.Equal(t, 100.0, cached.Price)
}

func TestCheckProduct_CacheHitShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})
	product := dbtest.Product(t, f.db, urlA)
	dbtest.Alert(t, f.db, product, 500)

	cached := &extract.Result{Price: 80, Title: "Cached", Source: "Amazon", Timestamp: time.Now().UTC()}
	f.cache.Put(ctx, product.ID, cached, 0)

	res, err := f.monitor.CheckProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, res.Price)
	assert.Equal(t, "Cached", res.Title)

	assert.EqualValues(t, 0, f.extractor.calls.Load())
	assert.EqualValues(t, 0, f.historyCount(t, product.ID))
	assert.Equal(t, 0, f.evaluator.evaluated)
}

func TestCheckProduct_AbsentCases(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})

	owner := dbtest.Product(t, f.db, urlC)
	inactive := &models.Product{UserID: owner.UserID, URL: urlA, Name: "Discontinued", IsActive: false}
	require.NoError(t, f.db.Create(inactive).Error)
	unscrapable := dbtest.Product(t, f.db, urlB)

	for name, id := range map[string]uint{"missing": 9999, "inactive": inactive.ID, "extraction failed": unscrapable.ID} {
		t.Run(name, func(t *testing.T) {
			res, err := f.monitor.CheckProduct(ctx, id)
			assert.NoError(t, err)
			assert.Nil(t, res)
			assert.EqualValues(t, 0, f.historyCount(t, id))
		})
	}
	assert.EqualValues(t, 1, f.extractor.calls.Load())
}

func TestCheckProduct_CommitFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})
	product := dbtest.Product(t, f.db, urlA)
	alert := dbtest.Alert(t, f.db, product, 150)

	errDisk := errors.New("disk full")
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_history", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "price_histories" {
			tx.AddError(errDisk)
		}
	})
	require.NoError(t, err)

	res, err := f.monitor.CheckProduct(ctx, product.ID)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrCommit)
	assert.ErrorIs(t, err, errDisk)

	stored := f.reload(t, product.ID)
	assert.False(t, stored.CurrentPrice.Valid)
	assert.False(t, stored.LastChecked.Valid)
	assert.EqualValues(t, 0, f.historyCount(t, product.ID))

	var storedAlert models.PriceAlert
	require.NoError(t, f.db.First(&storedAlert, alert.ID).Error)
	assert.True(t, storedAlert.IsActive)
	assert.Empty(t, f.evaluator.notified)

	assert.False(t, f.cache.Exists(ctx, product.ID))
}

func TestCheckProduct_ConcurrentCallsShareOneScrape(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})
	product := dbtest.Product(t, f.db, urlA)
	f.extractor.release = make(chan struct{})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*extract.Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.monitor.CheckProduct(ctx, product.ID)
		}()
	}

	require.Eventually(t, func() bool { return f.extractor.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(f.extractor.release)
	wg.Wait()

	assert.EqualValues(t, 1, f.extractor.calls.Load())
	assert.EqualValues(t, 1, f.historyCount(t, product.ID))
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, 100.0, res.Price)
	}
}

func TestCheckAllProducts_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 10, urlC: 30})
	a := dbtest.Product(t, f.db, urlA)
	dbtest.Product(t, f.db, urlB)
	c := dbtest.Product(t, f.db, urlC)
	require.NoError(t, f.db.Model(a).Update("name", "Widget A").Error)
	require.NoError(t, f.db.Model(c).Update("name", "Widget C").Error)

	results, err := f.monitor.CheckAllProducts(ctx, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, a.ID, results[0].ProductID)
	assert.Equal(t, "Widget A", results[0].ProductName)
	assert.Equal(t, 10.0, results[0].Result.Price)
	assert.Equal(t, c.ID, results[1].ProductID)
	assert.Equal(t, "Widget C", results[1].ProductName)
	assert.Equal(t, 30.0, results[1].Result.Price)
}

func TestCheckAllProducts_FiltersByUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 10, urlB: 20})
	dbtest.Product(t, f.db, urlA)
	b := dbtest.Product(t, f.db, urlB)

	results, err := f.monitor.CheckAllProducts(ctx, &b.UserID)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, b.ID, results[0].ProductID)
	assert.EqualValues(t, 1, f.extractor.calls.Load())
}

func TestRefresh_BypassesCache(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})
	product := dbtest.Product(t, f.db, urlA)

	_, err := f.monitor.CheckProduct(ctx, product.ID)
	require.NoError(t, err)

	f.extractor.setPrice(urlA, 90)

	res, err := f.monitor.CheckProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Price)

	res, err = f.monitor.Refresh(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.Price)
	assert.EqualValues(t, 2, f.historyCount(t, product.ID))
	assert.Equal(t, 90.0, f.reload(t, product.ID).CurrentPrice.Float64)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	f := setup(t, map[string]float64{urlA: 100})
	product := dbtest.Product(t, f.db, urlA)

	dbtest.SetPrice(t, f.db, product, 120)

	stats, err := f.monitor.GetStats(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, stats, "a current price without history is still no stats")

	stats, err = f.monitor.GetStats(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, stats, "missing product")

	for _, price := range []float64{200, 150} {
		require.NoError(t, f.db.Create(&models.PriceHistory{ProductID: product.ID, Price: price, Timestamp: time.Now().UTC()}).Error)
	}
	_, err = f.monitor.CheckProduct(ctx, product.ID)
	require.NoError(t, err)

	stats, err = f.monitor.GetStats(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 100.0, stats.MinPrice)
	assert.Equal(t, 200.0, stats.MaxPrice)
	assert.InDelta(t, 150.0, stats.AvgPrice, 1e-9)
	assert.EqualValues(t, 3, stats.PriceChanges)
	require.NotNil(t, stats.CurrentPrice)
	assert.Equal(t, 100.0, *stats.CurrentPrice)
	assert.NotNil(t, stats.LastChecked)
}

func TestPurgeHistory(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	product := dbtest.Product(t, f.db, urlA)

	now := time.Now().UTC()
	for _, age := range []time.Duration{100 * 24 * time.Hour, 91 * 24 * time.Hour, time.Hour} {
		require.NoError(t, f.db.Create(&models.PriceHistory{ProductID: product.ID, Price: 1, Timestamp: now.Add(-age)}).Error)
	}

	deleted, err := f.monitor.PurgeHistory(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.EqualValues(t, 1, f.historyCount(t, product.ID))
}

func TestCheckProduct_ConcurrentProductsOnFileDatabase(t *testing.T) {
	ctx := context.Background()

	const n = 20
	prices := make(map[string]float64, n)
	for i := range n {
		prices[fmt.Sprintf("https://shop.example/item/%d", i)] = float64(10 + i)
	}
	f := setupWithDB(t, dbtest.OpenFile(t), prices)

	products := make([]*models.Product, 0, n)
	for url := range prices {
		products = append(products, dbtest.Product(t, f.db, url))
	}

	errs := make([]error, len(products))
	var wg sync.WaitGroup
	for i, product := range products {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.monitor.CheckProduct(ctx, product.ID)
			if err == nil && res == nil {
				err = errors.New("no result")
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "product %d", products[i].ID)
	}
	var rows int64
	require.NoError(t, f.db.Model(&models.PriceHistory{}).Count(&rows).Error)
	assert.EqualValues(t, n, rows)
}
