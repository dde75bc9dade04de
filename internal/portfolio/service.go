// Package portfolio values a user's holdings from the latest known price of
// each asset and serves per-asset price history.
package portfolio

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/telemetry"
)

const (
	calculateValueOp = "portfolio.calculate_value"
	assetHistoryOp   = "portfolio.get_asset_history"

	defaultConcurrency = 8
)

type Store interface {
	ListAssetsByUser(ctx context.Context, userID string) ([]db.Asset, error)
	LatestPrice(ctx context.Context, assetID string) (db.PriceRecord, bool, error)
	ListPrices(ctx context.Context, assetID string) ([]db.PriceRecord, error)
}

// HistoryCache is an optional read-through cache for GetAssetHistory.
type HistoryCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Valuation struct {
	TotalValue decimal.Decimal
}

type Service struct {
	store       Store
	metrics     telemetry.Sink
	cache       HistoryCache
	cacheTTL    time.Duration
	concurrency int
	logger      *slog.Logger
}

type Option func(*Service)

func WithMetrics(sink telemetry.Sink) Option {
	return func(s *Service) { s.metrics = sink }
}

func WithHistoryCache(cache HistoryCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithConcurrency bounds the number of in-flight price lookups. 1 looks
// prices up one asset at a time.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		metrics:     telemetry.Nop(),
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = telemetry.Safe(s.metrics)
	return s
}

// CalculateValue sums price × quantity over the user's assets using each
// asset's latest price. Assets without price history contribute nothing; any
// storage error fails the whole valuation.
func (s *Service) CalculateValue(ctx context.Context, userID string) (Valuation, error) {
	s.metrics.Increment(calculateValueOp + ".count")

	total, err := s.calculate(ctx, userID)
	if err != nil {
		s.metrics.Increment(calculateValueOp + ".failure")
		return Valuation{}, apperr.AggregationFailure(calculateValueOp, "failed to calculate portfolio value", err)
	}

	s.metrics.Increment(calculateValueOp + ".success")
	return Valuation{TotalValue: total}, nil
}

func (s *Service) calculate(ctx context.Context, userID string) (decimal.Decimal, error) {
	assets, err := s.store.ListAssetsByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(assets) == 0 {
		return decimal.Zero, nil
	}

	values := make([]decimal.Decimal, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, asset := range assets {
		g.Go(func() error {
			value, err := s.assetValue(gctx, asset)
			if err != nil {
				return err
			}
			values[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, value := range values {
		total = total.Add(value)
	}
	return total, nil
}

func (s *Service) assetValue(ctx context.Context, asset db.Asset) (decimal.Decimal, error) {
	latest, ok, err := s.store.LatestPrice(ctx, asset.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, nil
	}
	return latest.Price.Mul(quantityOf(asset)), nil
}

// quantityOf treats a missing quantity as one unit.
func quantityOf(asset db.Asset) decimal.Decimal {
	if !asset.Quantity.Valid {
		return decimal.NewFromInt(1)
	}
	return asset.Quantity.Decimal
}

// GetAssetHistory returns every price record of assetID, oldest first.
func (s *Service) GetAssetHistory(ctx context.Context, assetID string) ([]db.PriceRecord, error) {
	s.metrics.Increment(assetHistoryOp + ".count")

	if history, ok := s.cachedHistory(ctx, assetID); ok {
		s.metrics.Increment(assetHistoryOp + ".success")
		return history, nil
	}

	history, err := s.store.ListPrices(ctx, assetID)
	if err != nil {
		s.metrics.Increment(assetHistoryOp + ".failure")
		return nil, apperr.HistoryFetchFailure(assetHistoryOp, "failed to fetch asset history", err)
	}
	if history == nil {
		history = []db.PriceRecord{}
	}

	s.storeHistory(ctx, assetID, history)
	s.metrics.Increment(assetHistoryOp + ".success")
	return history, nil
}

func historyKey(assetID string) string {
	return "asset_history:" + assetID
}

func (s *Service) cachedHistory(ctx context.Context, assetID string) ([]db.PriceRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	var history []db.PriceRecord
	found, err := s.cache.Get(ctx, historyKey(assetID), &history)
	if err != nil {
		s.logger.Warn("asset history cache read failed", "asset_id", assetID, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if history == nil {
		history = []db.PriceRecord{}
	}
	return history, true
}

func (s *Service) storeHistory(ctx context.Context, assetID string, history []db.PriceRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, historyKey(assetID), history, s.cacheTTL); err != nil {
		s.logger.Warn("asset history cache write failed", "asset_id", assetID, "error", err)
	}
}
