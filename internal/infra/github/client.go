// Package github implements the code search provider client.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/leekyio/api/internal/app/engine"
	"github.com/leekyio/api/internal/metrics"
	"github.com/leekyio/api/pkg/logger"
)

const (
	defaultBaseURL = "https://api.github.com"
	userAgent      = "leeky-api/2.0"

	// acceptTextMatch asks the search API for text-match fragments
	// alongside each result.
	acceptTextMatch = "application/vnd.github.v3.text-match+json"
	acceptJSON      = "application/vnd.github.v3+json"

	maxResponseBody = 1 << 20 // 1MB
)

// Config holds search client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MinInterval is the minimum spacing between any two provider calls
	// made through this client.
	MinInterval time.Duration
	// PerPage is the search page size.
	PerPage int
	// MaxHits caps hits collected for a single query across pages.
	MaxHits int
	// MaxRetries bounds retries of a quota-limited page request.
	MaxRetries int
	// DefaultBackoff is the starting retry interval when the provider
	// sends no Retry-After hint.
	DefaultBackoff time.Duration
	// FetchContent enables a follow-up request per hit for file content.
	FetchContent bool
}

// Client is a rate-limited GitHub code search client.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	perPage        int
	maxHits        int
	maxRetries     int
	defaultBackoff time.Duration
	fetchContent   bool
	log            *logger.Logger
}

var _ engine.Searcher = (*Client)(nil)

// NewClient creates a search client. Zero config fields fall back to
// conservative defaults matching the provider's secondary rate limits.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 2 * time.Second
	}
	if cfg.PerPage <= 0 || cfg.PerPage > 100 {
		cfg.PerPage = 15
	}
	if cfg.MaxHits <= 0 {
		cfg.MaxHits = 100
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DefaultBackoff <= 0 {
		cfg.DefaultBackoff = 30 * time.Second
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		perPage:        cfg.PerPage,
		maxHits:        cfg.MaxHits,
		maxRetries:     cfg.MaxRetries,
		defaultBackoff: cfg.DefaultBackoff,
		fetchContent:   cfg.FetchContent,
		log:            log.With("component", "github_client"),
	}
}

// quotaError signals a rate-limited response plus the provider's wait
// hint, when one was given.
type quotaError struct {
	retryAfter time.Duration
}

func (e *quotaError) Error() string {
	return fmt.Sprintf("provider rate limited (retry after %s)", e.retryAfter)
}

type searchResponse struct {
	TotalCount int          `json:"total_count"`
	Items      []searchItem `json:"items"`
}

type searchItem struct {
	Path       string `json:"path"`
	HTMLURL    string `json:"html_url"`
	URL        string `json:"url"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	TextMatches []struct {
		Fragment string `json:"fragment"`
	} `json:"text_matches"`
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Search runs one code search query, following pagination up to the hit
// cap. Hitting the cap truncates the result set, it is not an error.
func (c *Client) Search(ctx context.Context, token, query string) ([]engine.Hit, error) {
	if token == "" {
		return nil, engine.ErrNoCredential
	}

	var hits []engine.Hit
	for page := 1; ; page++ {
		result, err := c.searchPage(ctx, token, query, page)
		if err != nil {
			return nil, err
		}

		for _, item := range result.Items {
			hit := engine.Hit{
				Repository: item.Repository.FullName,
				Path:       item.Path,
				HTMLURL:    item.HTMLURL,
			}
			for _, match := range item.TextMatches {
				hit.Fragments = append(hit.Fragments, match.Fragment)
			}
			if c.fetchContent && item.URL != "" {
				content, err := c.fileContent(ctx, token, item.URL)
				if err != nil {
					// Content is enrichment only; the text-match
					// fragments still carry the hit.
					c.log.Warn("content fetch failed", "path", item.Path, "error", err)
				} else {
					hit.Content = content
				}
			}
			hits = append(hits, hit)
			if len(hits) >= c.maxHits {
				return hits, nil
			}
		}

		if len(result.Items) < c.perPage || page*c.perPage >= result.TotalCount {
			return hits, nil
		}
	}
}

// searchPage fetches a single result page, retrying quota-limited
// responses with the provider's Retry-After hint or exponential backoff.
func (c *Client) searchPage(ctx context.Context, token, query string, page int) (*searchResponse, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.defaultBackoff
	bo.MaxInterval = 5 * time.Minute
	bo.Reset()

	for attempt := 0; ; attempt++ {
		result, err := c.doSearch(ctx, token, query, page)
		if err == nil {
			return result, nil
		}

		var quota *quotaError
		if !errors.As(err, &quota) {
			return nil, err
		}
		if attempt >= c.maxRetries {
			return nil, engine.ErrQuotaExceeded
		}

		wait := quota.retryAfter
		if wait <= 0 {
			wait = bo.NextBackOff()
		}
		c.log.Warn("rate limited, retrying", "query_page", page, "wait", wait, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) doSearch(ctx context.Context, token, query string, page int) (*searchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "indexed")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/code?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", acceptTextMatch)
	req.Header.Set("User-Agent", userAgent)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ProviderRequestDuration.Observe(time.Since(started).Seconds())

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	switch resp.StatusCode {
	case http.StatusOK:
		var result searchResponse
		if err := json.Unmarshal(body, &result); err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		metrics.ProviderRequestsTotal.WithLabelValues("ok").Inc()
		return &result, nil

	case http.StatusUnauthorized:
		metrics.ProviderRequestsTotal.WithLabelValues("invalid_credential").Inc()
		return nil, engine.ErrInvalidCredential

	case http.StatusForbidden, http.StatusTooManyRequests:
		metrics.ProviderRequestsTotal.WithLabelValues("quota").Inc()
		return nil, &quotaError{retryAfter: retryAfterHint(resp.Header)}

	case http.StatusUnprocessableEntity:
		metrics.ProviderRequestsTotal.WithLabelValues("invalid_query").Inc()
		return nil, engine.ErrInvalidQuery

	default:
		metrics.ProviderRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}
}

// fileContent fetches and decodes a hit's file content.
func (c *Client) fileContent(ctx context.Context, token, contentURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", acceptJSON)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("content request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("content returned status %d", resp.StatusCode)
	}

	var content contentResponse
	if err := json.Unmarshal(body, &content); err != nil {
		return "", fmt.Errorf("decode content response: %w", err)
	}
	if content.Encoding != "base64" {
		return "", fmt.Errorf("unexpected content encoding %q", content.Encoding)
	}
	// The API wraps base64 payloads with newlines.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		// Binary or malformed content is not worth failing the hit over.
		return "", fmt.Errorf("decode content: %w", err)
	}
	return string(decoded), nil
}

// retryAfterHint reads the provider's wait hint from either the
// Retry-After header or the rate limit reset timestamp.
func retryAfterHint(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return 0
}
