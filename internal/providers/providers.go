package providers

import (
	"context"

	"github.com/shopspring/decimal"
)

// TokenQuote is the price of one token contract on one chain.
type TokenQuote struct {
	Chain           string
	ContractAddress string
	Price           decimal.Decimal
	Provider        string
}

// TokenPriceProvider looks up prices for token contracts deployed on chain.
// Addresses the provider does not know are omitted from the result.
type TokenPriceProvider interface {
	FetchTokenPrices(ctx context.Context, chain string, contractAddresses []string) ([]TokenQuote, error)
}
