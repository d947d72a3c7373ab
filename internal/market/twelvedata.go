package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/config"
	"github.com/wonny/miyagi/pkg/httputil"
	"github.com/wonny/miyagi/pkg/logger"
)

// TwelveDataClient handles communication with the Twelve Data API.
// Implements contracts.BarProvider.
// ⭐ SSOT: Twelve Data API 호출은 이 클라이언트에서만
type TwelveDataClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.TwelveDataConfig
}

// NewTwelveDataClient creates a new Twelve Data client
func NewTwelveDataClient(cfg config.TwelveDataConfig, httpClient *httputil.Client, log *logger.Logger) *TwelveDataClient {
	return &TwelveDataClient{
		httpClient: httpClient,
		logger:     log,
		cfg:        cfg,
	}
}

type timeSeriesResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// GetBars retrieves an OHLCV series for a symbol and interval
// (e.g. "5min", "1h"). Bars come back newest-first, matching the
// provider's order; callers that need chronological order reverse them.
func (c *TwelveDataClient) GetBars(ctx context.Context, symbol, interval string) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("outputsize", "120")
	params.Set("apikey", c.cfg.APIKey)

	fullURL := fmt.Sprintf("%s/time_series?%s", c.cfg.BaseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("twelvedata time_series: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twelvedata status %d: %s", resp.StatusCode, string(body))
	}

	var result timeSeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode twelvedata response: %w", err)
	}
	if result.Status == "error" {
		return nil, fmt.Errorf("twelvedata error: %s", result.Message)
	}

	bars := make([]contracts.Bar, 0, len(result.Values))
	for _, v := range result.Values {
		bar, err := parseBar(v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"symbol":   symbol,
				"datetime": v.Datetime,
				"error":    err.Error(),
			}).Warn("Skipping malformed bar")
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(datetime, open, high, low, close, volume string) (contracts.Bar, error) {
	t, err := time.Parse("2006-01-02 15:04:05", datetime)
	if err != nil {
		// Daily series omit the time component
		t, err = time.Parse("2006-01-02", datetime)
		if err != nil {
			return contracts.Bar{}, fmt.Errorf("parse datetime %q: %w", datetime, err)
		}
	}

	o, err := strconv.ParseFloat(open, 64)
	if err != nil {
		return contracts.Bar{}, fmt.Errorf("parse open: %w", err)
	}
	h, err := strconv.ParseFloat(high, 64)
	if err != nil {
		return contracts.Bar{}, fmt.Errorf("parse high: %w", err)
	}
	l, err := strconv.ParseFloat(low, 64)
	if err != nil {
		return contracts.Bar{}, fmt.Errorf("parse low: %w", err)
	}
	cl, err := strconv.ParseFloat(close, 64)
	if err != nil {
		return contracts.Bar{}, fmt.Errorf("parse close: %w", err)
	}
	v := 0.0
	if volume != "" {
		if v, err = strconv.ParseFloat(volume, 64); err != nil {
			return contracts.Bar{}, fmt.Errorf("parse volume: %w", err)
		}
	}

	return contracts.Bar{
		Time:   t.UnixMilli(),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  cl,
		Volume: v,
	}, nil
}
