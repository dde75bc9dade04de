package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetType string

const (
	AssetTypeFungible    AssetType = "ERC-20"
	AssetTypeNonFungible AssetType = "ERC-721"
)

// Asset is an on-chain holding owned by UserID. Quantity is unset when the
// row stores no quantity, which is valued as a single unit.
type Asset struct {
	ID                   string
	UserID               string
	Name                 string
	Type                 AssetType
	Chain                string
	SmartContractAddress string
	TokenID              string
	Quantity             decimal.NullDecimal
}

// PriceRecord is the price of one asset on one calendar day.
type PriceRecord struct {
	AssetID string
	Date    time.Time
	Price   decimal.Decimal
}

type TrackedAsset struct {
	ID                   string
	Chain                string
	SmartContractAddress string
}
