package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const mobulaDefaultBaseURL = "https://api.mobula.io"

type MobulaProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type mobulaRow struct {
	address string
	price   string
}

func NewMobulaProvider(baseURL, apiKey string) *MobulaProvider {
	resolvedBaseURL := strings.TrimRight(baseURL, "/")
	if resolvedBaseURL == "" {
		resolvedBaseURL = mobulaDefaultBaseURL
	}

	return &MobulaProvider{
		baseURL: resolvedBaseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *MobulaProvider) FetchTokenPrices(ctx context.Context, chain string, contractAddresses []string) ([]TokenQuote, error) {
	addresses := normalizeAddresses(contractAddresses)
	if len(addresses) == 0 {
		return nil, nil
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("mobula api key is not set")
	}
	chain = strings.TrimSpace(chain)
	if chain == "" {
		return nil, fmt.Errorf("mobula: chain is required")
	}

	endpoint, err := url.Parse(p.baseURL + "/api/1/market/multi-data")
	if err != nil {
		return nil, err
	}

	blockchains := make([]string, len(addresses))
	for i := range blockchains {
		blockchains[i] = chain
	}

	query := endpoint.Query()
	query.Set("assets", strings.Join(addresses, ","))
	query.Set("blockchains", strings.Join(blockchains, ","))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("mobula error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mobula: read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("mobula: invalid json response")
	}

	requested := make(map[string]struct{}, len(addresses))
	for _, address := range addresses {
		requested[address] = struct{}{}
	}

	quotes := make([]TokenQuote, 0, len(addresses))
	for _, row := range mobulaRows(body) {
		if _, ok := requested[row.address]; !ok {
			continue
		}
		price, err := decimal.NewFromString(row.price)
		if err != nil || price.IsNegative() {
			continue
		}
		quotes = append(quotes, TokenQuote{
			Chain:           chain,
			ContractAddress: row.address,
			Price:           price,
			Provider:        "mobula",
		})
	}

	return quotes, nil
}

// mobulaRows reads "data" either as an object keyed by the requested asset
// or as an array of rows, falling back to "dataArray".
func mobulaRows(body []byte) []mobulaRow {
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() && !data.IsArray() {
		data = gjson.GetBytes(body, "dataArray")
	}

	var rows []mobulaRow
	data.ForEach(func(key, value gjson.Result) bool {
		address := key.String()
		if data.IsArray() {
			address = value.Get("key").String()
			if address == "" {
				address = value.Get("contract").String()
			}
		}
		price := value.Get("price")
		if price.Exists() && price.Type != gjson.Null {
			rows = append(rows, mobulaRow{
				address: strings.ToLower(strings.TrimSpace(address)),
				price:   price.String(),
			})
		}
		return true
	})
	return rows
}
