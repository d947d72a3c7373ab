package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/logger"
	"github.com/wonny/miyagi/pkg/redis"
)

// TradierClient handles communication with the Tradier brokerage API.
// Implements contracts.QuoteProvider, contracts.OptionsProvider and
// contracts.Broker.
// ⭐ SSOT: Tradier API 호출은 이 클라이언트에서만
type TradierClient struct {
	logger      *logger.Logger
	cfg         config.TradierConfig
	httpClient  *http.Client
	rateLimiter *redis.RateLimiter
}

// NewTradierClient creates a new Tradier API client
func NewTradierClient(cfg config.TradierConfig, limiter *redis.RateLimiter, log *logger.Logger) *TradierClient {
	return &TradierClient{
		logger:      log,
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateLimiter: limiter,
	}
}

// request makes an authenticated request to the Tradier API
func (c *TradierClient) request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, redis.TradierRateLimit); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	fullURL := fmt.Sprintf("%s%s", c.cfg.BaseURL, path)

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.AccessToken))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return c.httpClient.Do(req)
}

func (c *TradierClient) getJSON(ctx context.Context, path string, result interface{}) error {
	resp, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tradier API status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode tradier response: %w", err)
	}
	return nil
}

type tradierQuote struct {
	Symbol string   `json:"symbol"`
	Bid    *float64 `json:"bid"`
	Ask    *float64 `json:"ask"`
	Last   *float64 `json:"last"`
}

// GetQuote retrieves a point-in-time quote for a symbol
func (c *TradierClient) GetQuote(ctx context.Context, symbol string) (*contracts.Quote, error) {
	path := fmt.Sprintf("/v1/markets/quotes?symbols=%s", url.QueryEscape(symbol))

	// Tradier returns quotes.quote as an object for one symbol and an
	// array for many; decode leniently.
	var result struct {
		Quotes struct {
			Quote json.RawMessage `json:"quote"`
		} `json:"quotes"`
	}
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	if len(result.Quotes.Quote) == 0 {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	var tq tradierQuote
	if err := json.Unmarshal(result.Quotes.Quote, &tq); err != nil {
		var many []tradierQuote
		if err2 := json.Unmarshal(result.Quotes.Quote, &many); err2 != nil || len(many) == 0 {
			return nil, fmt.Errorf("parse quote for %s: %w", symbol, err)
		}
		tq = many[0]
	}

	return &contracts.Quote{
		Symbol: tq.Symbol,
		Bid:    tq.Bid,
		Ask:    tq.Ask,
		Last:   tq.Last,
		Raw:    result.Quotes.Quote,
	}, nil
}

// GetExpirations retrieves option expiration dates for a symbol
func (c *TradierClient) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	path := fmt.Sprintf("/v1/markets/options/expirations?symbol=%s&includeAllRoots=true", url.QueryEscape(symbol))

	var result struct {
		Expirations struct {
			Date []string `json:"date"`
		} `json:"expirations"`
	}
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Expirations.Date, nil
}

type tradierOption struct {
	Symbol         string   `json:"symbol"`
	Strike         float64  `json:"strike"`
	ExpirationDate string   `json:"expiration_date"`
	OptionType     string   `json:"option_type"`
	Bid            float64  `json:"bid"`
	Ask            float64  `json:"ask"`
	Volume         *int     `json:"volume"`
	OpenInterest   *int     `json:"open_interest"`
	Greeks         *struct {
		Delta *float64 `json:"delta"`
		MidIV *float64 `json:"mid_iv"`
	} `json:"greeks"`
}

// GetChain retrieves the option chain with greeks for one expiration
func (c *TradierClient) GetChain(ctx context.Context, symbol, expiration string) ([]contracts.OptionContract, error) {
	path := fmt.Sprintf("/v1/markets/options/chains?symbol=%s&expiration=%s&greeks=true",
		url.QueryEscape(symbol), url.QueryEscape(expiration))

	var result struct {
		Options struct {
			Option []tradierOption `json:"option"`
		} `json:"options"`
	}
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	chain := make([]contracts.OptionContract, 0, len(result.Options.Option))
	for _, o := range result.Options.Option {
		oc := contracts.OptionContract{
			Symbol:     o.Symbol,
			Strike:     o.Strike,
			Expiration: o.ExpirationDate,
			Type:       o.OptionType,
			Bid:        o.Bid,
			Ask:        o.Ask,
			Volume:     o.Volume,
			OpenInt:    o.OpenInterest,
		}
		if o.Greeks != nil {
			oc.Delta = o.Greeks.Delta
			oc.IV = o.Greeks.MidIV
		}
		chain = append(chain, oc)
	}
	return chain, nil
}

// PlaceOrder submits an option order to the brokerage.
// Returns the raw broker response for the audit trail.
func (c *TradierClient) PlaceOrder(ctx context.Context, req contracts.OrderRequest) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("class", "option")
	form.Set("symbol", req.Symbol)
	form.Set("option_symbol", req.OptionSymbol)
	form.Set("side", req.Side)
	form.Set("quantity", strconv.Itoa(req.Quantity))
	form.Set("type", req.Type)
	duration := req.Duration
	if duration == "" {
		duration = "day"
	}
	form.Set("duration", duration)
	if req.Price != nil {
		form.Set("price", strconv.FormatFloat(*req.Price, 'f', 2, 64))
	}
	if req.Tag != "" {
		form.Set("tag", req.Tag)
	}

	path := fmt.Sprintf("/v1/accounts/%s/orders", c.cfg.AccountID)
	resp, err := c.request(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read order response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tradier order status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":        req.Symbol,
		"option_symbol": req.OptionSymbol,
		"qty":           req.Quantity,
	}).Info("Order submitted to Tradier")

	return respBody, nil
}
