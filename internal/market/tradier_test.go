package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/miyagi/internal/contracts"
	"github.com/wonny/miyagi/pkg/config"
)

func newTestTradier(t *testing.T, handler http.HandlerFunc) *TradierClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTradierClient(config.TradierConfig{
		BaseURL:     srv.URL,
		AccessToken: "test-token",
		AccountID:   "ACC123",
	}, nil, testLogger())
}

func TestTradierGetQuote_SingleObject(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/quotes", r.URL.Path)
		assert.Equal(t, "SPY", r.URL.Query().Get("symbols"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{"quotes":{"quote":{"symbol":"SPY","bid":639.9,"ask":640.1,"last":640.0}}}`))
	})

	quote, err := client.GetQuote(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "SPY", quote.Symbol)
	require.NotNil(t, quote.Bid)
	assert.Equal(t, 639.9, *quote.Bid)
	require.NotNil(t, quote.Last)
	assert.Equal(t, 640.0, *quote.Last)
}

func TestTradierGetQuote_ArrayShape(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quotes":{"quote":[{"symbol":"SPY","bid":639.9,"ask":640.1}]}}`))
	})

	quote, err := client.GetQuote(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, "SPY", quote.Symbol)
	assert.Nil(t, quote.Last)
}

func TestTradierGetQuote_APIError(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`Invalid Access Token`))
	})

	_, err := client.GetQuote(context.Background(), "SPY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestTradierGetExpirations(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/options/expirations", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("includeAllRoots"))

		w.Write([]byte(`{"expirations":{"date":["2026-01-05","2026-01-07"]}}`))
	})

	dates, err := client.GetExpirations(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-05", "2026-01-07"}, dates)
}

func TestTradierGetChain_GreeksMapped(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/options/chains", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("greeks"))

		w.Write([]byte(`{"options":{"option":[
			{"symbol":"SPY260105C00640000","strike":640,"expiration_date":"2026-01-05",
			 "option_type":"call","bid":1.0,"ask":1.1,"volume":150,"open_interest":600,
			 "greeks":{"delta":0.41,"mid_iv":0.19}},
			{"symbol":"SPY260105C00650000","strike":650,"expiration_date":"2026-01-05",
			 "option_type":"call","bid":0.2,"ask":0.3,"volume":10,"open_interest":50}
		]}}`))
	})

	chain, err := client.GetChain(context.Background(), "SPY", "2026-01-05")
	require.NoError(t, err)
	require.Len(t, chain, 2)

	assert.Equal(t, "call", chain[0].Type)
	require.NotNil(t, chain[0].Delta)
	assert.Equal(t, 0.41, *chain[0].Delta)
	assert.Nil(t, chain[1].Delta, "missing greeks stay nil")
}

func TestTradierPlaceOrder(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts/ACC123/orders", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "option", r.Form.Get("class"))
		assert.Equal(t, "SPY", r.Form.Get("symbol"))
		assert.Equal(t, "SPY260105C00640000", r.Form.Get("option_symbol"))
		assert.Equal(t, "buy_to_open", r.Form.Get("side"))
		assert.Equal(t, "2", r.Form.Get("quantity"))
		assert.Equal(t, "day", r.Form.Get("duration"), "duration defaults to day")
		assert.Equal(t, "miyagi:sig-1", r.Form.Get("tag"))

		w.Write([]byte(`{"order":{"id":81117,"status":"ok"}}`))
	})

	raw, err := client.PlaceOrder(context.Background(), contracts.OrderRequest{
		AccountID:    "ACC123",
		Symbol:       "SPY",
		OptionSymbol: "SPY260105C00640000",
		Side:         "buy_to_open",
		Quantity:     2,
		Type:         "market",
		Tag:          "miyagi:sig-1",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"order":{"id":81117,"status":"ok"}}`, string(raw))
}

func TestTradierPlaceOrder_BrokerRejection(t *testing.T) {
	client := newTestTradier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":{"error":"insufficient buying power"}}`))
	})

	_, err := client.PlaceOrder(context.Background(), contracts.OrderRequest{
		Symbol:       "SPY",
		OptionSymbol: "SPY260105C00640000",
		Side:         "buy_to_open",
		Quantity:     1,
		Type:         "market",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient buying power")
}
