package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"igleads/pkg/config"
	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/ratelimit"
	"igleads/pkg/retry"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 8 << 20

// Client is a minimal Instagram HTTP client. Every request waits on the
// limiter, and JSON and HTML fetches are retried for retryable upstream errors.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a client from the instagram and rate limit settings
func NewClient(cfg config.InstagramConfig, rl config.RateLimitConfig, log logger.Logger) *Client {
	log = logger.OrDefault(log).WithField("component", "instagram_client")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultConfig().Instagram.UserAgent
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "*/*",
			"Accept-Language": "es-419,es;q=0.9,pt;q=0.8,en;q=0.7",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
			"Sec-Fetch-Site":  "same-origin",
		},
		baseURL: BaseURL,
		limiter: ratelimit.NewTokenBucket(rl.RequestsPerMinute, rl.BurstSize),
		retry: &retry.Config{
			MaxAttempts: rl.MaxRetries + 1,
			BackoffFor:  retry.NewErrorTypeBackoff(rl.RetryDelay, rl.BackoffMultiplier).For,
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		logger: log,
	}
	if cfg.AppID != "" {
		c.headers["X-IG-App-ID"] = cfg.AppID
	}
	c.SetSession(cfg.SessionID, cfg.CSRFToken)
	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetSession attaches the session cookies used by the private endpoints
func (c *Client) SetSession(sessionID, csrfToken string) {
	if sessionID == "" {
		return
	}
	cookie := "sessionid=" + sessionID
	if csrfToken != "" {
		cookie += "; csrftoken=" + csrfToken
		c.headers["X-CSRFToken"] = csrfToken
	}
	c.headers["Cookie"] = cookie
}

// SetBaseURL points the client at another host, mainly for tests
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// BaseURL returns the host the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetLimiter replaces the request limiter
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	if l == nil {
		l = ratelimit.Unlimited{}
	}
	c.limiter = l
}

// SetRetry replaces the retry policy
func (c *Client) SetRetry(cfg *retry.Config) {
	if cfg == nil {
		cfg = &retry.Config{MaxAttempts: 1}
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	c.retry = cfg
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("Sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get waits on the limiter and performs a single GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	return c.doRequest(req)
}

// GetJSON fetches url and decodes the JSON body into target, retrying
// retryable failures
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		body, err := c.getBody(ctx, url)
		if err != nil {
			return err
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.WarnWithFields("Failed to parse JSON response", map[string]interface{}{
				"url":          url,
				"error":        err.Error(),
				"body_preview": preview,
			})
			return &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse JSON: %v", err),
				Code:    http.StatusOK,
			}
		}
		return nil
	})
}

// GetHTML fetches url and parses the body as an HTML document
func (c *Client) GetHTML(ctx context.Context, url string) (*goquery.Document, error) {
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (*goquery.Document, error) {
		resp, err := c.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse HTML: %v", err),
				Code:    resp.StatusCode,
			}
		}
		return doc, nil
	})
}

func (c *Client) getBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}
	return body, nil
}

// checkResponseStatus maps HTTP status codes to typed upstream errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("Authentication error", fields)
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "authentication required", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		c.logger.DebugWithFields("Resource not found", fields)
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("Rate limit exceeded", fields)
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		c.logger.WarnWithFields("Server error", fields)
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	default:
		c.logger.WarnWithFields("Unexpected API error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}
