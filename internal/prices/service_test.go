package prices

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/providers"
)

type mockStore struct {
	tracked    []db.TrackedAsset
	trackedErr error

	upsertErr     error
	upsertCalls   int
	upsertRecords []db.PriceRecord
}

func (m *mockStore) FetchTrackedAssets(ctx context.Context) ([]db.TrackedAsset, error) {
	if m.trackedErr != nil {
		return nil, m.trackedErr
	}

	out := make([]db.TrackedAsset, len(m.tracked))
	copy(out, m.tracked)
	return out, nil
}

func (m *mockStore) UpsertDailyPrices(ctx context.Context, records []db.PriceRecord) error {
	m.upsertCalls++
	m.upsertRecords = append([]db.PriceRecord(nil), records...)
	return m.upsertErr
}

type providerCall struct {
	chain     string
	addresses []string
}

type mockProvider struct {
	quotes map[string][]providers.TokenQuote
	errs   map[string]error
	calls  []providerCall
}

func (m *mockProvider) FetchTokenPrices(ctx context.Context, chain string, contractAddresses []string) ([]providers.TokenQuote, error) {
	copied := make([]string, len(contractAddresses))
	copy(copied, contractAddresses)
	m.calls = append(m.calls, providerCall{chain: chain, addresses: copied})

	if err := m.errs[chain]; err != nil {
		return nil, err
	}
	return m.quotes[chain], nil
}

var refreshNow = time.Date(2024, 6, 1, 22, 30, 0, 0, time.FixedZone("UTC+3", 3*60*60))

func fixedClock() time.Time { return refreshNow }

func TestRefreshWritesTodaysPricePerAsset(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		tracked: []db.TrackedAsset{
			{ID: "asset-1", Chain: "Ethereum", SmartContractAddress: "0xaaa"},
			{ID: "asset-2", Chain: "Ethereum", SmartContractAddress: "0xAAA"},
			{ID: "asset-3", Chain: "Polygon", SmartContractAddress: "0xbbb"},
			{ID: "asset-4", Chain: "Ethereum", SmartContractAddress: "0xccc"},
		},
	}
	provider := &mockProvider{quotes: map[string][]providers.TokenQuote{
		"Ethereum": {{ContractAddress: "0xAAA", Price: decimal.RequireFromString("1.5")}},
		"Polygon":  {{ContractAddress: "0xbbb", Price: decimal.RequireFromString("0.25")}},
	}}

	svc := NewService(store, provider, WithClock(fixedClock))
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(provider.calls) != 2 {
		t.Fatalf("expected one provider call per chain, got %d", len(provider.calls))
	}
	if provider.calls[0].chain != "Ethereum" || strings.Join(provider.calls[0].addresses, ",") != "0xaaa,0xccc" {
		t.Fatalf("unexpected ethereum call: %+v", provider.calls[0])
	}

	if store.upsertCalls != 1 {
		t.Fatalf("expected one upsert, got %d", store.upsertCalls)
	}
	if len(store.upsertRecords) != 3 {
		t.Fatalf("expected 3 records, got %d", len(store.upsertRecords))
	}

	wantDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	prices := map[string]string{}
	for _, record := range store.upsertRecords {
		if !record.Date.Equal(wantDate) {
			t.Fatalf("expected UTC date %s, got %s", wantDate, record.Date)
		}
		prices[record.AssetID] = record.Price.String()
	}
	if prices["asset-1"] != "1.5" || prices["asset-2"] != "1.5" || prices["asset-3"] != "0.25" {
		t.Fatalf("unexpected prices: %v", prices)
	}
	if _, ok := prices["asset-4"]; ok {
		t.Fatal("unquoted asset must not be written")
	}
}

func TestRefreshChainFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	store := &mockStore{
		tracked: []db.TrackedAsset{
			{ID: "asset-1", Chain: "Ethereum", SmartContractAddress: "0xaaa"},
			{ID: "asset-2", Chain: "Polygon", SmartContractAddress: "0xbbb"},
		},
	}
	provider := &mockProvider{
		quotes: map[string][]providers.TokenQuote{
			"Polygon": {{ContractAddress: "0xbbb", Price: decimal.NewFromInt(2)}},
		},
		errs: map[string]error{"Ethereum": errors.New("rate limited")},
	}

	err := NewService(store, provider, WithClock(fixedClock)).Refresh(context.Background())
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected joined provider error, got %v", err)
	}
	if store.upsertCalls != 1 || len(store.upsertRecords) != 1 || store.upsertRecords[0].AssetID != "asset-2" {
		t.Fatalf("expected polygon price to be written, got %+v", store.upsertRecords)
	}
}

func TestRefreshNoTrackedAssets(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	provider := &mockProvider{}

	if err := NewService(store, provider).Refresh(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(provider.calls) != 0 || store.upsertCalls != 0 {
		t.Fatalf("expected no work, got calls=%d upserts=%d", len(provider.calls), store.upsertCalls)
	}
}

func TestRefreshStoreErrors(t *testing.T) {
	t.Parallel()

	store := &mockStore{trackedErr: errors.New("db down")}
	if err := NewService(store, &mockProvider{}).Refresh(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}

	store = &mockStore{
		tracked:   []db.TrackedAsset{{ID: "asset-1", Chain: "Ethereum", SmartContractAddress: "0xaaa"}},
		upsertErr: errors.New("write failed"),
	}
	provider := &mockProvider{quotes: map[string][]providers.TokenQuote{
		"Ethereum": {{ContractAddress: "0xaaa", Price: decimal.NewFromInt(1)}},
	}}
	err := NewService(store, provider).Refresh(context.Background())
	if err == nil || !strings.Contains(err.Error(), "write failed") {
		t.Fatalf("expected upsert error, got %v", err)
	}
}

func TestRefreshSkipsIncompleteAssets(t *testing.T) {
	t.Parallel()

	store := &mockStore{tracked: []db.TrackedAsset{
		{ID: "asset-1", Chain: "", SmartContractAddress: "0xaaa"},
		{ID: "asset-2", Chain: "Ethereum", SmartContractAddress: " "},
	}}
	provider := &mockProvider{}

	if err := NewService(store, provider).Refresh(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(provider.calls) != 0 {
		t.Fatalf("expected no provider calls, got %d", len(provider.calls))
	}
}

func TestRefreshRateLimitStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := &mockStore{tracked: []db.TrackedAsset{
		{ID: "asset-1", Chain: "Ethereum", SmartContractAddress: "0xaaa"},
		{ID: "asset-2", Chain: "Polygon", SmartContractAddress: "0xbbb"},
	}}
	provider := &mockProvider{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewService(store, provider, WithRateLimit(1)).Refresh(ctx)
	if err == nil {
		t.Fatal("expected error from canceled limiter wait")
	}
	if len(provider.calls) != 0 {
		t.Fatalf("expected no provider calls, got %d", len(provider.calls))
	}
}

func TestSchedulerContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	scheduler := NewScheduler(5*time.Millisecond, func(context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
		}
		return errors.New("provider down")
	})

	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
}
