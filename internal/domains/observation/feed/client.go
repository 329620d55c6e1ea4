package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// Client talks to the upstream observation feed. Implementations never
// retry; retry belongs to the calling task.
type Client interface {
	Authenticate(ctx context.Context) (*oauth2.Token, error)
	FetchPage(ctx context.Context, token *oauth2.Token, modifiedSince time.Time, offset int) (*PageResult, error)
	FetchClusterMembers(ctx context.Context, token *oauth2.Token, clusterID int64) ([]int64, error)
}

// HTTPClient is the waarnemingen.be implementation of Client.
type HTTPClient struct {
	cfg     config.FeedConfig
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying transport client. Its Timeout is
// overridden by the configured feed timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

func NewHTTPClient(cfg config.FeedConfig, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		cfg:  cfg,
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Timeout = cfg.Timeout

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	c.limiter = rate.NewLimiter(limit, 1)

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "waarnemingen-feed",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Auth rejections say nothing about upstream health.
			var authErr *AuthError
			return err == nil || errors.As(err, &authErr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Feed circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return c
}

// Authenticate performs the password grant. The upstream expects the
// account email in an "email" field, which oauth2.Config cannot send, so the
// form is posted directly and the result wrapped in an oauth2.Token.
func (c *HTTPClient) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"email":         {c.cfg.Username},
		"password":      {c.cfg.Password},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"type":          {"confidential"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues("token", "error").Inc()
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()
	metrics.FeedRequestsTotal.WithLabelValues("token", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("Feed token request rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return nil, &AuthError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if payload.AccessToken == "" {
		return nil, &AuthError{Err: errors.New("token response has no access_token")}
	}

	token := &oauth2.Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
	}
	if payload.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}

// FetchPage requests one page of observations modified after modifiedSince.
func (c *HTTPClient) FetchPage(ctx context.Context, token *oauth2.Token, modifiedSince time.Time, offset int) (*PageResult, error) {
	q := url.Values{
		"modified_after":    {modifiedSince.UTC().Format(time.RFC3339)},
		"limit":             {strconv.Itoa(c.cfg.PageSize)},
		"offset":            {strconv.Itoa(offset)},
		"validation_status": {"P", "J"},
	}

	var page PageResult
	if err := c.getJSON(ctx, token, "observations", c.endpoint("observations/")+"?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchClusterMembers returns the external ids of every observation the
// upstream groups under clusterID.
func (c *HTTPClient) FetchClusterMembers(ctx context.Context, token *oauth2.Token, clusterID int64) ([]int64, error) {
	var nest nestDetail
	if err := c.getJSON(ctx, token, "nests", c.endpoint("nests/"+strconv.FormatInt(clusterID, 10)), &nest); err != nil {
		return nil, err
	}
	return nest.ObservationIDs, nil
}

func (c *HTTPClient) endpoint(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + path
}

func (c *HTTPClient) getJSON(ctx context.Context, token *oauth2.Token, endpoint, rawURL string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}

	authed := &http.Client{
		Timeout: c.http.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   c.http.Transport,
		},
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := authed.Do(req)
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, &AuthError{StatusCode: resp.StatusCode}
		case resp.StatusCode >= 500:
			resp.Body.Close()
			return nil, &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		var authErr *AuthError
		var fetchErr *FetchError
		switch {
		case errors.As(err, &authErr):
			return authErr
		case errors.As(err, &fetchErr):
			return fetchErr
		default:
			return &FetchError{Endpoint: endpoint, Err: err}
		}
	}
	defer resp.Body.Close()
	metrics.FeedRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		logger.Warn("Unparsable feed response", map[string]interface{}{
			"endpoint": endpoint,
			"bytes":    len(body),
			"error":    err.Error(),
		})
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
