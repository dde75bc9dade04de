package providers

import (
	"strings"

	"github.com/ncfakude30/personal-asset-manager/internal/config"
)

func NewFromConfig(cfg config.Config) TokenPriceProvider {
	name := strings.TrimSpace(strings.ToLower(cfg.PriceProviderName))
	baseURL := cfg.PriceProviderBaseURL

	switch name {
	case "coingecko":
		if baseURL == "" {
			baseURL = CoinGeckoDefaultBaseURL("public")
		}
		return NewCoinGeckoProvider(baseURL, cfg.PriceProviderAPIKey, cfg.PriceProviderCurrency)
	case "coingecko-pro":
		if baseURL == "" {
			baseURL = CoinGeckoDefaultBaseURL("pro")
		}
		return NewCoinGeckoProvider(baseURL, cfg.PriceProviderAPIKey, cfg.PriceProviderCurrency)
	case "mobula":
		if baseURL == "" {
			baseURL = mobulaDefaultBaseURL
		}
		return NewMobulaProvider(baseURL, cfg.PriceProviderAPIKey)
	default:
		if name == "" {
			name = "price"
		}
		return NewMissingProvider(name)
	}
}
