package okx

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/circuitbreaker"
	"github.com/okx-folio/internal/config"
	"github.com/okx-folio/internal/models"
)

func newTestClient(t *testing.T, baseURL string, breaker *circuitbreaker.Breaker) (*Client, *[]time.Duration) {
	t.Helper()

	cfg := &config.OKXConfig{
		BaseURL:    baseURL,
		APIKey:     "k",
		APISecret:  "s",
		Passphrase: "p",
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		RateLimit:  1000, // effectively unthrottled in tests
	}
	backoff := config.BackoffConfig{
		BaseDelay:      10 * time.Millisecond,
		Multiplier:     2.0,
		MaxDelay:       time.Second,
		JitterFraction: 0.1,
	}

	c := NewClient(cfg, backoff, breaker)

	slept := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	c.rng = rand.New(rand.NewSource(1))
	c.now = func() time.Time { return time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC) }
	return c, slept
}

func newBreaker() *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{FailThreshold: 5, ResetTimeout: 30 * time.Second})
}

func TestGetQuoteSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/api/v5/dex/aggregator/quote", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("chainId"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-TIMESTAMP"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{"fromTokenAmount":"1000000","toTokenAmount":"999500"}]}`))
	}))
	defer srv.Close()

	breaker := newBreaker()
	c, slept := newTestClient(t, srv.URL, breaker)

	q, err := c.GetQuote(context.Background(), "0xfrom", "0xto", "1000000", 1)
	require.NoError(t, err)
	assert.Equal(t, "1000000", q.FromAmount)
	assert.Equal(t, "999500", q.ToAmount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, *slept)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State(EndpointQuote))
}

func TestServerErrorsRetriedThenFail(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := newBreaker()
	c, slept := newTestClient(t, srv.URL, breaker)

	_, err := c.GetQuote(context.Background(), "0xfrom", "0xto", "1", 1)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindNetwork, apierrors.KindOf(err))
	assert.True(t, apierrors.IsRetryable(err))

	// max_retries attempts, one fewer sleeps in between
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Len(t, *slept, 2)

	stats := breaker.Snapshot(EndpointQuote)
	assert.Equal(t, 3, stats.Failures)
	assert.Equal(t, circuitbreaker.StateClosed, stats.State)
}

func TestUpstreamErrorCodeNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"code":"51000","msg":"parameter error","data":[]}`))
	}))
	defer srv.Close()

	breaker := newBreaker()
	c, slept := newTestClient(t, srv.URL, breaker)

	_, err := c.GetQuote(context.Background(), "0xfrom", "0xto", "1", 1)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindUpstream, apierrors.KindOf(err))
	assert.False(t, apierrors.IsRetryable(err))

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "51000", apiErr.Code)
	assert.Contains(t, apiErr.Message, "parameter error")

	// One attempt only, no backoff, still a breaker failure
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, *slept)
	assert.Equal(t, 1, breaker.Snapshot(EndpointQuote).Failures)
}

func TestMalformedEnvelopeNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, newBreaker())

	_, err := c.GetQuote(context.Background(), "0xfrom", "0xto", "1", 1)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindNormalization, apierrors.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestOpenCircuitShortCircuits(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{FailThreshold: 3, ResetTimeout: 30 * time.Second})
	c, _ := newTestClient(t, srv.URL, breaker)

	// Trip the quote breaker: 3 attempts, 3 recorded failures
	_, err := c.GetQuote(context.Background(), "0xfrom", "0xto", "1", 1)
	require.Error(t, err)
	require.Equal(t, circuitbreaker.StateOpen, breaker.State(EndpointQuote))
	before := atomic.LoadInt32(&hits)

	_, err = c.GetQuote(context.Background(), "0xfrom", "0xto", "1", 1)
	require.Error(t, err)
	assert.True(t, apierrors.IsCircuitOpen(err))

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, apiErr.RetryAfter)

	// No HTTP traffic while open
	assert.Equal(t, before, atomic.LoadInt32(&hits))

	// Other endpoints are unaffected
	assert.True(t, breaker.Allow(EndpointBalances))
}

func TestGetBalancesNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/dex/balance/all-token-balances-by-address", r.URL.Path)
		assert.Equal(t, "0xabc", r.URL.Query().Get("address"))
		assert.Equal(t, "1,56", r.URL.Query().Get("chains"))
		w.Write([]byte(`{"code":"0","msg":"","data":[
			{"chainIndex":"1","tokenAssets":[
				{"tokenContractAddress":"0xeee","symbol":"ETH","balance":"1.5","tokenPrice":"2000","decimals":"18"},
				{"tokenContractAddress":"0xusdc","symbol":"USDC","balance":"250","tokenPrice":"1","decimals":"6"}
			]},
			{"chainIndex":"56","tokenAssets":[]}
		]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, newBreaker())

	out, err := c.GetBalances(context.Background(), "0xabc", []int{1, 56})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 1, out[0].ChainID)
	require.Len(t, out[0].Assets, 2)
	assert.Equal(t, "ETH", out[0].Assets[0].Symbol)
	assert.Equal(t, "1.5", out[0].Assets[0].Balance)
	assert.Equal(t, int32(18), out[0].Assets[0].Decimals)
	assert.Equal(t, "2000", out[0].Assets[0].PriceUSD)

	assert.Equal(t, 56, out[1].ChainID)
	assert.Empty(t, out[1].Assets)
}

func TestGetHistoricalPriceCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/history-candles", r.URL.Path)
		assert.Equal(t, "ETH-USDT", r.URL.Query().Get("instId"))
		assert.Equal(t, "1D", r.URL.Query().Get("bar"))
		// Candles arrive newest first; the client sorts ascending
		w.Write([]byte(`{"code":"0","msg":"","data":[
			["1709769600000","3010.5","3100","2990","3050","0","0"],
			["1709683200000","2950.25","3020","2900","3010","0","0"]
		]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, newBreaker())

	token := &models.Token{Symbol: "ETH", ChainID: 1, Instrument: "ETH-USDT"}
	points, err := c.GetHistoricalPrice(context.Background(), token, "1D", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
	assert.Equal(t, "2950.25", points[0].Price.String())
	assert.Equal(t, "3010.5", points[1].Price.String())
	assert.Equal(t, time.UnixMilli(1709683200000).UTC(), points[0].Timestamp)
}

func TestGetHistoricalPricePriceHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/dex/index/historical-price", r.URL.Path)
		assert.Equal(t, "0xpepe", r.URL.Query().Get("tokenContractAddress"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{"prices":[
			{"time":"1709769600000","price":"0.0000071"},
			{"time":"1709683200000","price":"0.0000068"}
		]}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, newBreaker())

	token := &models.Token{Symbol: "PEPE", ChainID: 1, Address: "0xpepe"}
	points, err := c.GetHistoricalPrice(context.Background(), token, "1D", 30)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
	assert.Equal(t, "0.0000068", points[0].Price.String())
	assert.Equal(t, "0.0000071", points[1].Price.String())
}

func TestGetHistoricalPriceTruncatedCandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[["1709769600000"]]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, newBreaker())

	token := &models.Token{Symbol: "ETH", ChainID: 1, Instrument: "ETH-USDT"}
	_, err := c.GetHistoricalPrice(context.Background(), token, "1D", 30)
	require.Error(t, err)
	assert.Equal(t, apierrors.KindNormalization, apierrors.KindOf(err))
}

func TestGetBalancesInvalidChainIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[{"chainIndex":"not-a-number","tokenAssets":[]}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, newBreaker())

	_, err := c.GetBalances(context.Background(), "0xabc", []int{1})
	require.Error(t, err)
	assert.Equal(t, apierrors.KindNormalization, apierrors.KindOf(err))
}
