package marketdata

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

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"btc-predictor/internal/model"
)

const (
	tickerPricePath = "/ticker/price"
	klinesPath      = "/klines"
)

// Source supplies price history and realized prices.
type Source interface {
	History(ctx context.Context, interval string, limit int) ([]model.Candle, error)
	LatestPrice(ctx context.Context) (decimal.Decimal, error)
	PriceAt(ctx context.Context, ts time.Time, interval string) (decimal.Decimal, error)
}

// Options parameterise the Binance REST client.
type Options struct {
	BaseURL        string
	Symbol         string
	Timeout        time.Duration
	RequestsPerSec int
	MaxElapsed     time.Duration
}

// Binance fetches BTC market data from the Binance spot REST API.
type Binance struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
	baseURL string
}

// NewBinance constructs a rate-limited Binance client.
func NewBinance(opts Options, logger zerolog.Logger) *Binance {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 30 * time.Second
	}
	if opts.Symbol == "" {
		opts.Symbol = "BTCUSDT"
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.binance.com/api/v3"
	}

	return &Binance{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
		logger:  logger.With().Str("component", "binance").Logger(),
		baseURL: baseURL,
	}
}

// LatestPrice returns the current symbol price.
func (b *Binance) LatestPrice(ctx context.Context) (decimal.Decimal, error) {
	query := url.Values{"symbol": {b.opts.Symbol}}

	var reply struct {
		Price string `json:"price"`
	}
	if err := b.getJSON(ctx, tickerPricePath, query, &reply); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", model.ErrPriceUnavailable, err)
	}

	price, err := decimal.NewFromString(reply.Price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse ticker price: %w", err)
	}
	return price, nil
}

// History returns up to limit recent candles at the given interval, oldest
// first.
func (b *Binance) History(ctx context.Context, interval string, limit int) ([]model.Candle, error) {
	query := url.Values{
		"symbol":   {b.opts.Symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}

	var rows [][]any
	if err := b.getJSON(ctx, klinesPath, query, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPriceUnavailable, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// PriceAt returns the close of the candle covering ts. Missing data yields
// ErrPriceUnavailable so the caller can retry; outcomes are never fabricated.
func (b *Binance) PriceAt(ctx context.Context, ts time.Time, interval string) (decimal.Decimal, error) {
	query := url.Values{
		"symbol":    {b.opts.Symbol},
		"interval":  {interval},
		"startTime": {strconv.FormatInt(ts.UnixMilli(), 10)},
		"limit":     {"1"},
	}

	var rows [][]any
	if err := b.getJSON(ctx, klinesPath, query, &rows); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", model.ErrPriceUnavailable, err)
	}
	if len(rows) == 0 {
		return decimal.Decimal{}, fmt.Errorf("no candle at %s: %w", ts.UTC().Format(time.RFC3339), model.ErrPriceUnavailable)
	}

	candle, err := parseKline(rows[0])
	if err != nil {
		return decimal.Decimal{}, err
	}
	return candle.Close, nil
}

func (b *Binance) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := b.baseURL + path + "?" + query.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("binance api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}

		if err := json.Unmarshal(payload, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode binance response: %w", err))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = b.opts.MaxElapsed

	return backoff.Retry(operation, backoff.WithContext(strategy, ctx))
}

// Binance klines are heterogeneous arrays: [openTime, open, high, low,
// close, volume, ...] with prices as strings.
func parseKline(row []any) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("kline row has %d fields, want at least 6", len(row))
	}

	openTimeMs, ok := row[0].(float64)
	if !ok {
		return model.Candle{}, fmt.Errorf("kline open time has type %T", row[0])
	}

	fields := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		s, ok := row[i].(string)
		if !ok {
			return model.Candle{}, fmt.Errorf("kline field %d has type %T", i, row[i])
		}
		value, err := decimal.NewFromString(s)
		if err != nil {
			return model.Candle{}, fmt.Errorf("parse kline field %d: %w", i, err)
		}
		fields[i-1] = value
	}

	candle := model.Candle{
		OpenTime: time.UnixMilli(int64(openTimeMs)).UTC(),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}
	if !candle.Open.IsZero() {
		candle.ChangePct, _ = candle.Close.Sub(candle.Open).Div(candle.Open).Mul(dec100).Round(3).Float64()
	}
	return candle, nil
}

var dec100 = decimal.NewFromInt(100)

var _ Source = (*Binance)(nil)
