package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okx-folio/internal/apierrors"
	"github.com/okx-folio/internal/circuitbreaker"
	"github.com/okx-folio/internal/config"
	"github.com/okx-folio/internal/logging"
	"github.com/okx-folio/internal/models"
	"github.com/okx-folio/internal/retry"
	"github.com/shopspring/decimal"
)

// Endpoint keys used for circuit breaker and backoff bookkeeping. One key
// per logical upstream operation, independent of wallet or user.
const (
	EndpointBalances = "balances"
	EndpointQuote    = "quote"
	EndpointKline    = "kline"
)

// Client is the resilient market data client. Every operation follows the
// same algorithm: breaker gate, signed request, bounded retries on transport
// failures with a jittered backoff schedule, typed errors for everything
// else.
type Client struct {
	baseURL    string
	creds      Credentials
	maxRetries int

	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	backoff    config.BackoffConfig
	limiter    *rate.Limiter

	now   func() time.Time
	sleep func(time.Duration)
	rng   *rand.Rand
}

// NewClient creates a market data client. The breaker is injected so
// concurrent call paths (interactive requests, the sync loop) share one
// instance per process.
func NewClient(cfg *config.OKXConfig, backoff config.BackoffConfig, breaker *circuitbreaker.Breaker) *Client {
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		creds:      Credentials{APIKey: cfg.APIKey, APISecret: cfg.APISecret, Passphrase: cfg.Passphrase, ProjectID: cfg.ProjectID},
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		backoff:    backoff,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// envelope is the uniform upstream response shape. Code "0" means success;
// anything else is an application-level error carried in Msg.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// get performs one breaker-gated, retried GET against requestPath (path
// plus query string) and returns the envelope's data payload.
func (c *Client) get(ctx context.Context, endpoint, requestPath string) (json.RawMessage, error) {
	if !c.breaker.Allow(endpoint) {
		return nil, apierrors.NewCircuitOpenError(endpoint, c.breaker.ResetTimeout())
	}

	delays := retry.ComputeDelays(retry.Config{
		MaxAttempts:    c.maxRetries,
		BaseDelay:      c.backoff.BaseDelay,
		Multiplier:     c.backoff.Multiplier,
		MaxDelay:       c.backoff.MaxDelay,
		JitterFraction: c.backoff.JitterFraction,
	}, c.rng)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			retry.Sleep(attempt-1, delays, c.sleep)
		}

		data, err := c.attempt(ctx, endpoint, requestPath)
		if err == nil {
			c.breaker.RecordSuccess(endpoint)
			return data, nil
		}

		// Normalization failures are parse problems on our side; the
		// upstream answered, so they do not count against its circuit.
		switch apierrors.KindOf(err) {
		case apierrors.KindNetwork, apierrors.KindUpstream:
			c.breaker.RecordFailure(endpoint)
		}

		lastErr = err
		if !apierrors.IsRetryable(err) {
			return nil, err
		}

		if attempt < c.maxRetries-1 {
			logging.WithFields(map[string]interface{}{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			}).Warn("upstream call failed, retrying")
		}
	}

	return nil, lastErr
}

// attempt performs exactly one signed HTTP call
func (c *Client) attempt(ctx context.Context, endpoint, requestPath string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apierrors.NewNetworkError(endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+requestPath, nil)
	if err != nil {
		return nil, apierrors.NewNetworkError(endpoint, err)
	}
	req.Header = BuildHeaders(c.creds, http.MethodGet, requestPath, "", c.now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.NewNetworkError(endpoint, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, apierrors.NewNetworkError(endpoint, fmt.Errorf("upstream HTTP %d", resp.StatusCode))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apierrors.NewNormalizationError(endpoint, "malformed response envelope", err)
	}
	if env.Code != "0" {
		return nil, apierrors.NewUpstreamError(endpoint, env.Code, env.Msg)
	}

	return env.Data, nil
}

// GetQuote fetches a swap quote for amount (smallest units) of fromToken
// into toToken on chainID.
func (c *Client) GetQuote(ctx context.Context, fromToken, toToken, amount string, chainID int) (*models.Quote, error) {
	requestPath := fmt.Sprintf(
		"/api/v5/dex/aggregator/quote?chainId=%d&fromTokenAddress=%s&toTokenAddress=%s&amount=%s",
		chainID, fromToken, toToken, amount,
	)

	data, err := c.get(ctx, EndpointQuote, requestPath)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		FromTokenAmount string `json:"fromTokenAmount"`
		ToTokenAmount   string `json:"toTokenAmount"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, apierrors.NewNormalizationError(EndpointQuote, "unexpected quote payload", err)
	}
	if len(entries) == 0 {
		return nil, apierrors.NewNormalizationError(EndpointQuote, "empty quote payload", nil)
	}

	return &models.Quote{
		ChainID:    chainID,
		FromToken:  fromToken,
		ToToken:    toToken,
		FromAmount: entries[0].FromTokenAmount,
		ToAmount:   entries[0].ToTokenAmount,
	}, nil
}

// balancePayload matches the upstream all-token-balances response
type balancePayload struct {
	ChainIndex  string `json:"chainIndex"`
	TokenAssets []struct {
		TokenContractAddress string `json:"tokenContractAddress"`
		Symbol               string `json:"symbol"`
		Balance              string `json:"balance"`
		TokenPrice           string `json:"tokenPrice"`
		Decimals             string `json:"decimals"`
	} `json:"tokenAssets"`
}

// GetBalances fetches every token balance held by address across chains in
// one upstream call. Callers should batch chains here rather than looping
// per chain.
func (c *Client) GetBalances(ctx context.Context, address string, chains []int) ([]models.ChainBalances, error) {
	chainParams := make([]string, len(chains))
	for i, id := range chains {
		chainParams[i] = strconv.Itoa(id)
	}
	requestPath := fmt.Sprintf(
		"/api/v5/dex/balance/all-token-balances-by-address?address=%s&chains=%s",
		address, strings.Join(chainParams, ","),
	)

	data, err := c.get(ctx, EndpointBalances, requestPath)
	if err != nil {
		return nil, err
	}

	var payloads []balancePayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, apierrors.NewNormalizationError(EndpointBalances, "unexpected balances payload", err)
	}

	out := make([]models.ChainBalances, 0, len(payloads))
	for _, p := range payloads {
		chainID, err := strconv.Atoi(p.ChainIndex)
		if err != nil {
			return nil, apierrors.NewNormalizationError(EndpointBalances,
				fmt.Sprintf("invalid chain index %q", p.ChainIndex), err)
		}

		cb := models.ChainBalances{ChainID: chainID, Assets: make([]models.TokenBalance, 0, len(p.TokenAssets))}
		for _, a := range p.TokenAssets {
			var dec int32
			if a.Decimals != "" {
				d, err := strconv.Atoi(a.Decimals)
				if err != nil {
					return nil, apierrors.NewNormalizationError(EndpointBalances,
						fmt.Sprintf("invalid decimals %q for %s", a.Decimals, a.Symbol), err)
				}
				dec = int32(d)
			}
			cb.Assets = append(cb.Assets, models.TokenBalance{
				TokenAddress: a.TokenContractAddress,
				Symbol:       a.Symbol,
				Balance:      a.Balance,
				Decimals:     dec,
				PriceUSD:     a.TokenPrice,
			})
		}
		out = append(out, cb)
	}

	return out, nil
}

// GetHistoricalPrice fetches a daily (or other period) price series for a
// token. The upstream serves two distinct shapes: instrument-ticker candles
// for tokens with an exchange instrument, and token-address price history
// otherwise. Both are normalized here into ascending PricePoints so
// downstream code sees one shape.
func (c *Client) GetHistoricalPrice(ctx context.Context, token *models.Token, period string, limit int) ([]models.PricePoint, error) {
	var data json.RawMessage
	var err error
	candles := token.Instrument != ""

	if candles {
		requestPath := fmt.Sprintf("/api/v5/market/history-candles?instId=%s&bar=%s&limit=%d",
			token.Instrument, period, limit)
		data, err = c.get(ctx, EndpointKline, requestPath)
	} else {
		requestPath := fmt.Sprintf("/api/v5/dex/index/historical-price?chainIndex=%d&tokenContractAddress=%s&period=%s&limit=%d",
			token.ChainID, token.Address, period, limit)
		data, err = c.get(ctx, EndpointKline, requestPath)
	}
	if err != nil {
		return nil, err
	}

	var points []models.PricePoint
	if candles {
		points, err = parseCandles(data)
	} else {
		points, err = parsePriceHistory(data)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

// parseCandles normalizes the instrument-ticker candle shape:
// [["<ts ms>","<open>","<high>","<low>","<close>",...], ...]
func parseCandles(data json.RawMessage) ([]models.PricePoint, error) {
	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, apierrors.NewNormalizationError(EndpointKline, "unexpected candle payload", err)
	}

	points := make([]models.PricePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, apierrors.NewNormalizationError(EndpointKline, "truncated candle row", nil)
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, apierrors.NewNormalizationError(EndpointKline, fmt.Sprintf("invalid candle timestamp %q", row[0]), err)
		}
		open, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, apierrors.NewNormalizationError(EndpointKline, fmt.Sprintf("invalid candle open %q", row[1]), err)
		}
		points = append(points, models.PricePoint{Timestamp: time.UnixMilli(ms).UTC(), Price: open})
	}
	return points, nil
}

// parsePriceHistory normalizes the token-address history shape:
// [{"prices":[{"time":"<ts ms>","price":"<price>"}, ...]}]
func parsePriceHistory(data json.RawMessage) ([]models.PricePoint, error) {
	var payloads []struct {
		Prices []struct {
			Time  string `json:"time"`
			Price string `json:"price"`
		} `json:"prices"`
	}
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, apierrors.NewNormalizationError(EndpointKline, "unexpected price history payload", err)
	}

	var points []models.PricePoint
	for _, p := range payloads {
		for _, pt := range p.Prices {
			ms, err := strconv.ParseInt(pt.Time, 10, 64)
			if err != nil {
				return nil, apierrors.NewNormalizationError(EndpointKline, fmt.Sprintf("invalid price timestamp %q", pt.Time), err)
			}
			price, err := decimal.NewFromString(pt.Price)
			if err != nil {
				return nil, apierrors.NewNormalizationError(EndpointKline, fmt.Sprintf("invalid price %q", pt.Price), err)
			}
			points = append(points, models.PricePoint{Timestamp: time.UnixMilli(ms).UTC(), Price: price})
		}
	}
	return points, nil
}
