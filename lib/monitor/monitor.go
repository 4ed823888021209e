package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fiffu/pricewatch/lib/extract"
	"github.com/fiffu/pricewatch/lib/models"
	"github.com/fiffu/pricewatch/lib/pricecache"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCommit marks a check whose price was fetched but could not be stored. Nothing from
// that check was persisted or cached.
var ErrCommit = errors.New("commit price update")

// errGone aborts the commit when the product vanished or was deactivated mid-fetch.
var errGone = errors.New("product no longer active")

type Extractor interface {
	Extract(ctx context.Context, url string) (*extract.Result, error)
}

type AlertEvaluator interface {
	Evaluate(ctx context.Context, tx *gorm.DB, product *models.Product) ([]models.PriceAlert, error)
	Notify(ctx context.Context, product *models.Product, fired []models.PriceAlert)
}

type CheckResult struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Result      *extract.Result `json:"result"`
}

type Monitor struct {
	log       *zap.Logger
	db        *gorm.DB
	cache     *pricecache.PriceCache
	extractor Extractor
	alerts    AlertEvaluator

	inflight singleflight.Group
}

func New(log *zap.Logger, db *gorm.DB, cache *pricecache.PriceCache, extractor Extractor, alerts AlertEvaluator) *Monitor {
	return &Monitor{
		log:       log,
		db:        db,
		cache:     cache,
		extractor: extractor,
		alerts:    alerts,
	}
}

// CheckProduct returns the current price of a product, scraping it if the cache has
// nothing fresh. A nil result with a nil error means there is no price to report: the
// product is missing or inactive, or the extraction failed. Concurrent checks of one
// product share a single scrape.
func (m *Monitor) CheckProduct(ctx context.Context, productID uint) (*extract.Result, error) {
	v, err, _ := m.inflight.Do(strconv.FormatUint(uint64(productID), 10), func() (any, error) {
		return m.checkProduct(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*extract.Result), nil
}

func (m *Monitor) checkProduct(ctx context.Context, productID uint) (*extract.Result, error) {
	var product models.Product
	err := m.db.WithContext(ctx).First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		m.log.Sugar().Warnw("Failed to load product", "product_id", productID, "err", err)
		return nil, nil
	}
	if !product.IsActive {
		return nil, nil
	}

	if cached, ok := m.cache.Get(ctx, productID); ok {
		return cached, nil
	}

	result, err := m.extractor.Extract(ctx, product.URL)
	if err != nil {
		m.log.Sugar().Infow("No price extracted", "product_id", productID, "url", product.URL, "err", err)
		return nil, nil
	}

	updated, fired, err := m.commit(ctx, productID, result)
	if errors.Is(err, errGone) {
		m.log.Sugar().Infow("Product went away during check", "product_id", productID)
		return nil, nil
	}
	if err != nil {
		m.log.Sugar().Errorw("Failed to store price", "product_id", productID, "price", result.Price, "err", err)
		return nil, fmt.Errorf("%w: product %d: %w", ErrCommit, productID, err)
	}

	m.alerts.Notify(ctx, updated, fired)
	m.cache.Put(ctx, productID, result, m.cache.TTL())

	m.log.Sugar().Infow("Price checked",
		"product_id", productID, "price", result.Price, "source", result.Source, "alerts_fired", len(fired))
	return result, nil
}

// commit stores the new price, its history row and any fired alerts in one transaction.
func (m *Monitor) commit(ctx context.Context, productID uint, result *extract.Result) (*models.Product, []models.PriceAlert, error) {
	var (
		product models.Product
		fired   []models.PriceAlert
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := query.Where("is_active = ?", true).First(&product, productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errGone
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		product.CurrentPrice = sql.NullFloat64{Float64: result.Price, Valid: true}
		product.LastChecked = sql.NullTime{Time: now, Valid: true}

		err = tx.Model(&product).Updates(map[string]any{
			"current_price": product.CurrentPrice,
			"last_checked":  product.LastChecked,
		}).Error
		if err != nil {
			return err
		}

		entry := &models.PriceHistory{ProductID: product.ID, Price: result.Price, Timestamp: now}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		fired, err = m.alerts.Evaluate(ctx, tx, &product)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &product, fired, nil
}

// CheckAllProducts checks every active product, or only those of userID when it is set,
// in id order. Products that yield no price are skipped; only a failure to list the
// products aborts the run.
func (m *Monitor) CheckAllProducts(ctx context.Context, userID *uint) ([]CheckResult, error) {
	runID := uuid.NewString()
	log := m.log.Sugar().With("run_id", runID)

	query := m.db.WithContext(ctx).Where("is_active = ?", true)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var products models.Products
	if err := query.Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	log.Infow("Starting batch check", "products", len(products))

	results := make([]CheckResult, 0, len(products))
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			log.Warnw("Batch check interrupted", "checked", len(results), "err", err)
			break
		}

		result, err := m.CheckProduct(ctx, product.ID)
		if err != nil {
			log.Errorw("Product check failed", "product_id", product.ID, "err", err)
			continue
		}
		if result == nil {
			continue
		}
		results = append(results, CheckResult{ProductID: product.ID, ProductName: product.Name, Result: result})
	}

	log.Infow("Finished batch check", "products", len(products), "succeeded", len(results))
	return results, nil
}

// Refresh drops any cached price and checks the product again.
func (m *Monitor) Refresh(ctx context.Context, productID uint) (*extract.Result, error) {
	m.cache.Invalidate(ctx, productID)
	return m.CheckProduct(ctx, productID)
}

// PurgeHistory deletes history rows recorded before cutoff.
func (m *Monitor) PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	res := m.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.PriceHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge history before %s: %w", cutoff.Format(time.RFC3339), res.Error)
	}
	m.log.Sugar().Infow("Purged price history", "cutoff", cutoff, "deleted", res.RowsAffected)
	return res.RowsAffected, nil
}
