package providers

import (
	"context"
	"fmt"
)

type MissingProvider struct {
	Name string
}

func NewMissingProvider(name string) MissingProvider {
	return MissingProvider{Name: name}
}

func (p MissingProvider) FetchTokenPrices(ctx context.Context, chain string, contractAddresses []string) ([]TokenQuote, error) {
	if len(contractAddresses) == 0 {
		return nil, nil
	}
	return nil, fmt.Errorf("%s provider not configured", p.Name)
}
