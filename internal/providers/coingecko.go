package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	coinGeckoPublicBaseURL = "https://api.coingecko.com/api/v3"
	coinGeckoProBaseURL    = "https://pro-api.coingecko.com/api/v3"
)

// coinGeckoPlatforms maps stored chain names to CoinGecko asset platform ids.
var coinGeckoPlatforms = map[string]string{
	"ethereum":            "ethereum",
	"polygon":             "polygon-pos",
	"bsc":                 "binance-smart-chain",
	"binance smart chain": "binance-smart-chain",
	"arbitrum":            "arbitrum-one",
	"optimism":            "optimistic-ethereum",
	"base":                "base",
	"avalanche":           "avalanche",
}

type CoinGeckoProvider struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	client       *http.Client
	vsCurrency   string
}

func NewCoinGeckoProvider(baseURL, apiKey, vsCurrency string) *CoinGeckoProvider {
	resolvedBaseURL := strings.TrimRight(baseURL, "/")
	if resolvedBaseURL == "" {
		resolvedBaseURL = coinGeckoPublicBaseURL
	}

	header := "x-cg-demo-api-key"
	if strings.Contains(resolvedBaseURL, "pro-api.coingecko.com") {
		header = "x-cg-pro-api-key"
	}

	currency := strings.ToLower(strings.TrimSpace(vsCurrency))
	if currency == "" {
		currency = "usd"
	}

	return &CoinGeckoProvider{
		baseURL:      resolvedBaseURL,
		apiKey:       apiKey,
		apiKeyHeader: header,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		vsCurrency: currency,
	}
}

func (p *CoinGeckoProvider) FetchTokenPrices(ctx context.Context, chain string, contractAddresses []string) ([]TokenQuote, error) {
	addresses := normalizeAddresses(contractAddresses)
	if len(addresses) == 0 {
		return nil, nil
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("coingecko api key is not set")
	}
	platform, ok := CoinGeckoPlatform(chain)
	if !ok {
		return nil, fmt.Errorf("coingecko: unsupported chain %q", chain)
	}

	endpoint, err := url.Parse(p.baseURL + "/simple/token_price/" + url.PathEscape(platform))
	if err != nil {
		return nil, err
	}

	query := endpoint.Query()
	query.Set("contract_addresses", strings.Join(addresses, ","))
	query.Set("vs_currencies", p.vsCurrency)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(p.apiKeyHeader, p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("coingecko error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("coingecko: decode response: %w", err)
	}

	quotes := make([]TokenQuote, 0, len(payload))
	for address, values := range payload {
		price, ok := values[p.vsCurrency]
		if !ok || price.IsNegative() {
			continue
		}
		quotes = append(quotes, TokenQuote{
			Chain:           chain,
			ContractAddress: strings.ToLower(address),
			Price:           price,
			Provider:        "coingecko",
		})
	}

	return quotes, nil
}

// CoinGeckoPlatform resolves a stored chain name such as "Ethereum" to its
// CoinGecko platform id. Platform ids are accepted as-is.
func CoinGeckoPlatform(chain string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(chain))
	if platform, ok := coinGeckoPlatforms[key]; ok {
		return platform, true
	}
	for _, platform := range coinGeckoPlatforms {
		if key == platform {
			return platform, true
		}
	}
	return "", false
}

func normalizeAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		address = strings.TrimSpace(strings.ToLower(address))
		if address == "" {
			continue
		}
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	return out
}

func CoinGeckoDefaultBaseURL(plan string) string {
	if strings.EqualFold(plan, "pro") {
		return coinGeckoProBaseURL
	}
	return coinGeckoPublicBaseURL
}
