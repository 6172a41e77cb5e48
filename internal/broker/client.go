// Package broker is a client for the remote trading API. The session lives
// in a cookie jar, outbound calls are paced by a token bucket and quotes
// are cached briefly.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"tradejoy/internal/cache"
	"tradejoy/internal/log"
)

const (
	defaultTimeout  = 20 * time.Second
	maxResponseSize = 1 << 20
	quoteCacheSize  = 256
)

// Options configures a Client. BaseURL is required; zero values elsewhere
// select a 20s timeout, no rate limit and no quote cache.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	QuoteTTL   time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	quotes  *cache.LRUCache[Stock]
	group   singleflight.Group
	logger  *log.Logger

	mu      sync.RWMutex
	session *Session
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("missing trading API base URL")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid trading API base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Jar: jar, Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	c := &Client{
		baseURL: base,
		http:    httpClient,
		limiter: limiter,
		logger:  logger.WithComponent(log.ComponentBroker),
	}
	if opts.QuoteTTL > 0 {
		c.quotes = cache.NewLRUCache[Stock](quoteCacheSize, opts.QuoteTTL)
	}
	return c, nil
}

// QuoteCache exposes the quote cache for periodic sweeping. It is nil when
// caching is disabled.
func (c *Client) QuoteCache() cache.Cleaner {
	if c.quotes == nil {
		return nil
	}
	return c.quotes
}

// Session returns the current session, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

func (c *Client) LoggedIn() bool {
	_, ok := c.Session()
	return ok
}

func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	return c.authenticate(ctx, "/login", credentials{Username: username, Password: password})
}

func (c *Client) Register(ctx context.Context, username, email, password string) (Session, error) {
	return c.authenticate(ctx, "/register", credentials{Username: username, Email: email, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, creds credentials) (Session, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return Session{}, fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}
	var s Session
	if err := c.do(ctx, http.MethodPost, path, creds, &s); err != nil {
		return Session{}, err
	}
	s.Username = creds.Username

	c.mu.Lock()
	c.session = &s
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Trading session started", "user_id", string(s.UserID), log.FieldPath, path)
	return s, nil
}

// Logout ends the session. Local state is cleared even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/logout", nil, nil)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return err
}

func (c *Client) Portfolio(ctx context.Context) (Portfolio, error) {
	var p Portfolio
	if err := c.do(ctx, http.MethodGet, "/portfolio", nil, &p); err != nil {
		return Portfolio{}, err
	}
	return p, nil
}

// Trade places an order and returns the server's confirmation message.
func (c *Client) Trade(ctx context.Context, req TradeRequest) (string, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := req.Validate(); err != nil {
		return "", err
	}
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/trade", req, &resp); err != nil {
		return "", err
	}
	c.logger.InfoContext(ctx, "Trade executed",
		log.FieldOperation, log.OpTrade, log.FieldSymbol, req.Symbol, "action", req.Action, "quantity", req.Quantity)
	return resp.Message, nil
}

func (c *Client) Watchlist(ctx context.Context) ([]WatchItem, error) {
	var resp watchlistResponse
	if err := c.do(ctx, http.MethodGet, "/watchlist", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Watchlist, nil
}

func (c *Client) AddToWatchlist(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("%w: missing symbol", ErrInvalidRequest)
	}
	var resp messageResponse
	body := map[string]string{"symbol": symbol}
	if err := c.do(ctx, http.MethodPost, "/watchlist", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) RemoveFromWatchlist(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("%w: missing symbol", ErrInvalidRequest)
	}
	var resp messageResponse
	if err := c.do(ctx, http.MethodDelete, "/watchlist/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) History(ctx context.Context) ([]TradeRecord, error) {
	var resp historyResponse
	if err := c.do(ctx, http.MethodGet, "/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Health reports whether the API answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// do sends one JSON request and decodes a 2xx body into out. Non-2xx
// answers become *APIError, transport failures *NetworkError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path
	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Trading API unreachable",
			log.FieldMethod, method, log.FieldPath, path, log.FieldError, err,
			"error_type", log.ErrorTypeNetwork)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	c.logger.DebugContext(ctx, "Trading API call",
		log.FieldMethod, method, log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode, log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func apiError(status int, raw []byte) *APIError {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && strings.TrimSpace(er.Error) != "" {
		return &APIError{Status: status, Message: er.Error}
	}
	return &APIError{Status: status, Message: http.StatusText(status)}
}
