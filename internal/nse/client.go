// Package nse fetches raw option-chain documents from the NSE public API.
package nse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/logging"
	"nifty-advisor/internal/models"
	"nifty-advisor/internal/resilience"
	"nifty-advisor/pkg/utils"
)

const (
	// DefaultBaseURL is the public NSE site.
	DefaultBaseURL = "https://www.nseindia.com"
	// DefaultSymbol is the index analysed when no symbol is given.
	DefaultSymbol = "NIFTY"

	optionChainPath = "/api/option-chain-indices"
	optionChainPage = "/option-chain"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// maxBodyBytes bounds a single response; a full NIFTY chain is a few MB.
	maxBodyBytes = 32 << 20
)

// Fetch stages reported in FetchError.Stage.
const (
	StageHome   = "home"
	StageAPI    = "api"
	StageDecode = "decode"
	StageFile   = "file"
)

// Fetcher retrieves a raw option-chain document.
type Fetcher interface {
	FetchOptionChain(ctx context.Context, symbol string) (models.Document, error)
}

// Config holds client configuration.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	PrimeSession      bool
	// PrimeDelay is the pause after each priming request. NSE rejects
	// API calls that arrive immediately after the cookie is set.
	PrimeDelay time.Duration
}

// DefaultConfig returns the settings used against the live site.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		MaxRetries:        3,
		RequestsPerMinute: 20,
		PrimeSession:      true,
		PrimeDelay:        1500 * time.Millisecond,
	}
}

// Client fetches option chains from NSE.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
	now     func() time.Time

	// backoff is the wait before retry attempt+1.
	backoff func(attempt int, err error) time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// WithBackoff replaces the retry delay schedule.
func WithBackoff(fn func(attempt int, err error) time.Duration) Option {
	return func(c *Client) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

// WithClock sets the clock used for market-hours hints.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a client with its own cookie jar.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, apperrors.NewValidationError("fetcher.base_url", cfg.BaseURL, err.Error())
	}
	if cfg.MaxRetries < 1 {
		return nil, apperrors.NewValidationError("fetcher.max_retries", cfg.MaxRetries, "must be >= 1")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = 4
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(limit, burst),
		breaker: resilience.NewCircuitBreaker("nse", resilience.DefaultCircuitBreakerConfig()),
		logger:  zerolog.Nop(),
		now:     utils.NowIST,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// FetchOptionChain fetches and decodes the option chain for symbol.
func (c *Client) FetchOptionChain(ctx context.Context, symbol string) (models.Document, error) {
	_, doc, err := c.fetch(ctx, symbol)
	return doc, err
}

// FetchRaw fetches the option chain and returns the response body unchanged.
// The body has passed the same emptiness and JSON checks as FetchOptionChain.
func (c *Client) FetchRaw(ctx context.Context, symbol string) ([]byte, error) {
	body, _, err := c.fetch(ctx, symbol)
	return body, err
}

type fetchResult struct {
	body []byte
	doc  models.Document
}

func (c *Client) fetch(ctx context.Context, symbol string) ([]byte, models.Document, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		symbol = DefaultSymbol
	}
	logger := logging.WithSymbol(c.logger, symbol)

	retryCfg := utils.RetryConfig{
		MaxAttempts: c.cfg.MaxRetries,
		ShouldRetry: apperrors.IsRetryable,
		Delay:       c.backoff,
	}

	res, err := resilience.ExecuteWithResult(ctx, c.breaker, func(ctx context.Context) (fetchResult, error) {
		return utils.RetryWithResult(ctx, retryCfg, func() (fetchResult, error) {
			res, err := c.attempt(ctx, symbol)
			if err != nil && apperrors.IsRetryable(err) {
				logger.Warn().Err(err).Msg("Option chain fetch attempt failed")
			}
			return res, err
		})
	})
	if err != nil {
		if apperrors.Is(err, resilience.ErrCircuitOpen) {
			return nil, nil, apperrors.NewFetchError(StageAPI, 0,
				"too many recent failures, NSE requests paused", false, err)
		}
		if apperrors.Is(err, apperrors.ErrFetchFailed) || ctx.Err() != nil {
			return nil, nil, err
		}
		return nil, nil, apperrors.NewFetchError(StageAPI, 0,
			fmt.Sprintf("failed after %d attempt(s)", c.cfg.MaxRetries), false, err)
	}
	return res.body, res.doc, nil
}

// attempt runs one priming plus API round trip.
func (c *Client) attempt(ctx context.Context, symbol string) (fetchResult, error) {
	if c.cfg.PrimeSession {
		if err := c.prime(ctx); err != nil {
			return fetchResult{}, err
		}
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	endpoint := c.cfg.BaseURL + optionChainPath + "?" + q.Encode()

	status, body, err := c.get(ctx, endpoint, apiHeaders(c.cfg.BaseURL))
	if err != nil {
		return fetchResult{}, apperrors.NewFetchError(StageAPI, 0, "request failed", true, err)
	}

	switch {
	case status == http.StatusForbidden:
		msg := "NSE is blocking the request (too many requests or anti-scraping checks)"
		if hint := utils.MarketHoursHint(c.now()); hint != "" {
			msg += "; " + hint
		}
		return fetchResult{}, apperrors.NewFetchError(StageAPI, status, msg, false, nil)
	case status < 200 || status >= 300:
		return fetchResult{}, apperrors.NewFetchError(StageAPI, status, http.StatusText(status), true, nil)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fetchResult{}, apperrors.NewFetchError(StageDecode, status,
			"empty response body; session cookies may not be set or the market is closed", false, nil)
	}

	var doc models.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return fetchResult{}, apperrors.NewFetchError(StageDecode, status,
			"malformed JSON: "+preview(trimmed), false, err)
	}
	if len(doc) == 0 {
		return fetchResult{}, apperrors.NewFetchError(StageDecode, status,
			"empty JSON object; session cookies may not be set", false, nil)
	}
	return fetchResult{body: trimmed, doc: doc}, nil
}

// prime visits the home page, which must succeed, and then the option-chain
// page on a best-effort basis so the cookie jar holds a valid session.
func (c *Client) prime(ctx context.Context) error {
	status, _, err := c.get(ctx, c.cfg.BaseURL, browserHeaders(c.cfg.BaseURL))
	if err != nil {
		return apperrors.NewFetchError(StageHome, 0, "request failed", true, err)
	}
	if status < 200 || status >= 300 {
		return apperrors.NewFetchError(StageHome, status, http.StatusText(status), true, nil)
	}
	if err := sleep(ctx, c.cfg.PrimeDelay); err != nil {
		return err
	}

	if _, _, err := c.get(ctx, c.cfg.BaseURL+optionChainPage, browserHeaders(c.cfg.BaseURL)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug().Err(err).Msg("Option chain page visit failed")
	}
	return sleep(ctx, c.cfg.PrimeDelay)
}

func (c *Client) get(ctx context.Context, endpoint string, headers map[string]string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logging.LogAPICall(c.logger, http.MethodGet, endpoint, 0, time.Since(start), err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	logging.LogAPICall(c.logger, http.MethodGet, endpoint, resp.StatusCode, time.Since(start), err)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// browserHeaders mimic a page navigation. Accept-Encoding is left to the
// transport so gzip responses are decoded transparently.
func browserHeaders(base string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/json,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Referer":                   base,
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Cache-Control":             "max-age=0",
	}
}

func apiHeaders(base string) map[string]string {
	return map[string]string{
		"User-Agent":       userAgent,
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "en-US,en;q=0.9",
		"Referer":          base + optionChainPage,
		"Origin":           base,
		"Sec-Fetch-Dest":   "empty",
		"Sec-Fetch-Mode":   "cors",
		"Sec-Fetch-Site":   "same-origin",
		"X-Requested-With": "XMLHttpRequest",
	}
}

// defaultBackoff waits attempt seconds, or three times that when NSE
// answered 403 during priming.
func defaultBackoff(attempt int, err error) time.Duration {
	var fe *apperrors.FetchError
	if apperrors.As(err, &fe) && fe.StatusCode == http.StatusForbidden {
		return time.Duration(attempt) * 3 * time.Second
	}
	return time.Duration(attempt) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func preview(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
