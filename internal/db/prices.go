package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LatestPrice returns the price record with the greatest date for assetID.
// ok is false when the asset has no price history.
func (d *DB) LatestPrice(ctx context.Context, assetID string) (PriceRecord, bool, error) {
	row := d.pool.QueryRow(ctx, `
		select asset_id::text, date, price::text
		from public.asset_daily_prices
		where asset_id = $1::uuid
		order by date desc
		limit 1
	`, assetID)

	record, err := scanPriceRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PriceRecord{}, false, nil
	}
	if err != nil {
		return PriceRecord{}, false, err
	}
	return record, true, nil
}

// ListPrices returns every price record for assetID, oldest first.
func (d *DB) ListPrices(ctx context.Context, assetID string) ([]PriceRecord, error) {
	rows, err := d.pool.Query(ctx, `
		select asset_id::text, date, price::text
		from public.asset_daily_prices
		where asset_id = $1::uuid
		order by date
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []PriceRecord{}
	for rows.Next() {
		record, err := scanPriceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (d *DB) UpsertDailyPrices(ctx context.Context, records []PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			insert into public.asset_daily_prices (asset_id, date, price)
			values ($1::uuid, $2, $3::numeric)
			on conflict (asset_id, date)
			do update set price = excluded.price
		`, record.AssetID, record.Date, record.Price.String())
	}
	br := d.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func scanPriceRecord(row pgx.Row) (PriceRecord, error) {
	var (
		record PriceRecord
		price  string
		date   time.Time
	)
	if err := row.Scan(&record.AssetID, &date, &price); err != nil {
		return PriceRecord{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("failed to parse price of asset %s: %w", record.AssetID, err)
	}
	record.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	record.Price = parsed
	return record, nil
}
