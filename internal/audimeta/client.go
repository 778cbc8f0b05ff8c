// Package audimeta is a client for the AudiMeta audiobook metadata service.
//
// Every call is a single attempt. Outbound requests are paced by a token
// bucket, which only delays requests and never retries them. Failures are
// reported with the split-run error taxonomy:
//
//   - 404, and 400 for a malformed ASIN: NOT_FOUND
//   - network failures, 429, 5xx and other statuses: SERVICE_UNAVAILABLE
//   - caller deadline exceeded: TIMEOUT
//   - payloads that do not match the schema: INVALID_METADATA
package audimeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
	"github.com/maauso/audimeta-splitter/internal/plan"
)

const (
	// DefaultBaseURL is the public AudiMeta endpoint.
	DefaultBaseURL = "https://audimeta.de"
	// DefaultRegion is the Audible marketplace queried when none is set.
	DefaultRegion = "us"
	// DefaultBurst is the number of requests allowed back to back.
	DefaultBurst = 2

	defaultTimeout = 30 * time.Second
	defaultRPS     = 1.0

	// bodyExcerpt bounds the response body kept in error details.
	bodyExcerpt = 512
	// maxBodySize bounds how much of a response is read.
	maxBodySize = 8 << 20

	userAgent = "audimeta-splitter/1.0"
)

// Static errors for AudiMeta client operations.
var (
	// ErrASINRequired is returned when an empty ASIN is passed.
	ErrASINRequired = errors.New("audimeta: ASIN is required")
	// ErrInvalidASIN is returned when an ASIN is not 10 alphanumeric characters.
	ErrInvalidASIN = errors.New("audimeta: invalid ASIN format")
	// ErrQueryRequired is returned when a search has neither title nor author.
	ErrQueryRequired = errors.New("audimeta: search needs a title or an author")
	// ErrNotFound is returned when the service has no record.
	ErrNotFound = errors.New("audimeta: not found")
	// ErrRateLimited is returned when the service answers 429.
	ErrRateLimited = errors.New("audimeta: rate limited by server")
	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("audimeta: server error")
	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("audimeta: unexpected status")
	// ErrSchema is returned when a payload does not match the expected shape.
	ErrSchema = errors.New("audimeta: payload does not match schema")
)

// Client is a rate-limited AudiMeta HTTP client.
type Client struct {
	baseURL    string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
	validate   *validator.Validate
	logger     *slog.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the AudiMeta API.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRegion sets the Audible marketplace region.
func WithRegion(region string) ClientOption {
	return func(c *Client) {
		if region != "" {
			c.region = strings.ToLower(region)
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the outbound request rate. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new AudiMeta client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		region:     DefaultRegion,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), DefaultBurst),
		validate:   validator.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Region returns the marketplace region the client queries.
func (c *Client) Region() string {
	return c.region
}

// Fetch returns the raw chapters of a book in response order.
func (c *Client) Fetch(ctx context.Context, asin string) ([]plan.RawChapter, error) {
	list, err := c.GetChapters(ctx, asin)
	if err != nil {
		return nil, err
	}

	raw := make([]plan.RawChapter, len(list.Chapters))
	for i, ch := range list.Chapters {
		raw[i] = plan.RawChapter{Title: ch.Title, StartSeconds: ch.StartSeconds}
	}
	return raw, nil
}

// doRequest executes a GET request with rate limiting and maps the outcome
// onto the error taxonomy.
func (c *Client) doRequest(ctx context.Context, op, asin, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.contextError(ctx, op, asin, fmt.Errorf("rate limit wait: %w", err))
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("region", c.region)

	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("audimeta: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("audimeta request",
		slog.String("op", op),
		slog.String("path", path),
		slog.String("region", c.region),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.contextError(ctx, op, asin, fmt.Errorf("audimeta: request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.contextError(ctx, op, asin, fmt.Errorf("audimeta: read response: %w", err))
	}

	c.logger.Debug("audimeta response",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFound(ErrNotFound, "%s %s", op, asin).WithBook(asin).WithDetail(excerpt(body))
	case resp.StatusCode == http.StatusBadRequest:
		return nil, apperrors.NotFound(fmt.Errorf("%w: status 400", ErrNotFound), "%s %s: rejected by service", op, asin).WithBook(asin).WithDetail(excerpt(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.ServiceUnavailable(ErrRateLimited, "%s", op).WithBook(asin).WithDetail(excerpt(body))
	case resp.StatusCode >= 500:
		return nil, apperrors.ServiceUnavailable(fmt.Errorf("%w %d", ErrServer, resp.StatusCode), "%s", op).WithBook(asin).WithDetail(excerpt(body))
	default:
		return nil, apperrors.ServiceUnavailable(fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode), "%s", op).WithBook(asin).WithDetail(excerpt(body))
	}
}

// contextError classifies a transport failure: an expired caller deadline
// is a TIMEOUT, a cancelled context is returned as is, anything else means
// the service could not be reached.
func (c *Client) contextError(ctx context.Context, op, asin string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout(err, "%s", op).WithBook(asin)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case isTimeout(err):
		return apperrors.Timeout(err, "%s", op).WithBook(asin)
	default:
		return apperrors.ServiceUnavailable(err, "%s", op).WithBook(asin)
	}
}

// isTimeout reports whether err is a client-side timeout, such as
// http.Client.Timeout firing.
func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// decode unmarshals body into v and validates it.
func (c *Client) decode(op, asin string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.InvalidMetadata(fmt.Errorf("%w: %w", ErrSchema, err), "%s: decode response", op).WithBook(asin).WithDetail(excerpt(body))
	}
	if err := c.validate.Struct(v); err != nil {
		return apperrors.InvalidMetadata(fmt.Errorf("%w: %w", ErrSchema, err), "%s: validate response", op).WithBook(asin).WithDetail(excerpt(body))
	}
	return nil
}

// normalizeASIN upper-cases and checks an ASIN.
func normalizeASIN(asin string) (string, error) {
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if asin == "" {
		return "", ErrASINRequired
	}
	if !ValidateASIN(asin) {
		return "", fmt.Errorf("%w: %q", ErrInvalidASIN, asin)
	}
	return asin, nil
}

// ValidateASIN reports whether s looks like an Audible ASIN.
func ValidateASIN(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyExcerpt {
		return s[:bodyExcerpt] + "..."
	}
	return s
}
