package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

func (d *DB) ListAssetsByUser(ctx context.Context, userID string) ([]Asset, error) {
	rows, err := d.pool.Query(ctx, `
		select id::text, user_id::text, coalesce(name, ''), type, chain, smart_contract_address,
			coalesce(token_id, ''), quantity::text
		from public.assets
		where user_id = $1::uuid
		order by id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []Asset{}
	for rows.Next() {
		var (
			asset    Asset
			quantity *string
		)
		if err := rows.Scan(&asset.ID, &asset.UserID, &asset.Name, &asset.Type, &asset.Chain, &asset.SmartContractAddress, &asset.TokenID, &quantity); err != nil {
			return nil, err
		}
		if quantity != nil {
			parsed, err := decimal.NewFromString(*quantity)
			if err != nil {
				return nil, fmt.Errorf("failed to parse quantity of asset %s: %w", asset.ID, err)
			}
			asset.Quantity = decimal.NullDecimal{Decimal: parsed, Valid: true}
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// FetchTrackedAssets lists fungible assets that can be priced by contract address.
func (d *DB) FetchTrackedAssets(ctx context.Context) ([]TrackedAsset, error) {
	rows, err := d.pool.Query(ctx, `
		select id::text, lower(chain), lower(smart_contract_address)
		from public.assets
		where type = $1 and smart_contract_address <> ''
		order by id
	`, string(AssetTypeFungible))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []TrackedAsset
	for rows.Next() {
		var asset TrackedAsset
		if err := rows.Scan(&asset.ID, &asset.Chain, &asset.SmartContractAddress); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}
