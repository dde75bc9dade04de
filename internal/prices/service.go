// Package prices ingests one daily price per tracked asset from a token price
// provider.
package prices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/providers"
	"github.com/ncfakude30/personal-asset-manager/internal/telemetry"
)

const refreshOp = "prices.refresh"

type Store interface {
	FetchTrackedAssets(ctx context.Context) ([]db.TrackedAsset, error)
	UpsertDailyPrices(ctx context.Context, records []db.PriceRecord) error
}

type Service struct {
	store    Store
	provider providers.TokenPriceProvider
	now      func() time.Time
	metrics  telemetry.Sink
	limiter  *rate.Limiter
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(sink telemetry.Sink) Option {
	return func(s *Service) { s.metrics = sink }
}

// WithRateLimit spaces provider requests to at most perSecond, one at a time.
// A non-positive value disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(s *Service) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func NewService(store Store, provider providers.TokenPriceProvider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		now:      time.Now,
		metrics:  telemetry.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = telemetry.Safe(s.metrics)
	return s
}

// chainBatch is the set of contracts on one chain and the assets holding each.
type chainBatch struct {
	chain     string
	contracts map[string][]string
}

// Refresh writes today's price for every tracked asset the provider can
// quote. A failing chain does not stop the others; their errors are joined.
func (s *Service) Refresh(ctx context.Context) error {
	s.metrics.Increment(refreshOp + ".count")

	written, err := s.refresh(ctx)
	if err != nil {
		s.metrics.Increment(refreshOp + ".failure")
	} else {
		s.metrics.Increment(refreshOp + ".success")
	}
	slog.Info("price refresh finished", "records", written, "failed", err != nil)
	return err
}

func (s *Service) refresh(ctx context.Context) (int, error) {
	tracked, err := s.store.FetchTrackedAssets(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch tracked assets: %w", err)
	}
	if len(tracked) == 0 {
		return 0, nil
	}

	today := startOfDayUTC(s.now())

	var errs []error
	records := make([]db.PriceRecord, 0, len(tracked))
	for _, batch := range groupByChain(tracked) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				errs = append(errs, err)
				break
			}
		}
		quotes, err := s.provider.FetchTokenPrices(ctx, batch.chain, keys(batch.contracts))
		if err != nil {
			errs = append(errs, fmt.Errorf("chain %s: %w", batch.chain, err))
			continue
		}
		records = append(records, toRecords(quotes, batch.contracts, today)...)
	}

	if len(records) == 0 {
		return 0, errors.Join(errs...)
	}

	if err := s.store.UpsertDailyPrices(ctx, records); err != nil {
		errs = append(errs, fmt.Errorf("upsert daily prices: %w", err))
		return 0, errors.Join(errs...)
	}

	return len(records), errors.Join(errs...)
}

func groupByChain(tracked []db.TrackedAsset) []chainBatch {
	byChain := map[string]*chainBatch{}
	for _, asset := range tracked {
		chain := strings.TrimSpace(asset.Chain)
		address := strings.ToLower(strings.TrimSpace(asset.SmartContractAddress))
		if chain == "" || address == "" {
			continue
		}
		key := strings.ToLower(chain)
		batch, ok := byChain[key]
		if !ok {
			batch = &chainBatch{chain: chain, contracts: map[string][]string{}}
			byChain[key] = batch
		}
		batch.contracts[address] = append(batch.contracts[address], asset.ID)
	}

	batches := make([]chainBatch, 0, len(byChain))
	for _, batch := range byChain {
		batches = append(batches, *batch)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].chain < batches[j].chain })
	return batches
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toRecords(quotes []providers.TokenQuote, contracts map[string][]string, date time.Time) []db.PriceRecord {
	records := make([]db.PriceRecord, 0, len(quotes))
	for _, quote := range quotes {
		assetIDs, ok := contracts[strings.ToLower(quote.ContractAddress)]
		if !ok || quote.Price.IsNegative() {
			continue
		}
		for _, assetID := range assetIDs {
			records = append(records, db.PriceRecord{
				AssetID: assetID,
				Date:    date,
				Price:   quote.Price,
			})
		}
	}
	return records
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
