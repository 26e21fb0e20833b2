// Package okta fetches users and groups from the Okta API and links group
// membership, producing the upstream directory the snapshot builder renders
// into LDAP entries. It also performs the credential check backing directory
// user binds.
package okta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config carries the connection parameters for the Okta org.
type Config struct {
	// URL is the org base URL, e.g. https://example.okta.com.
	URL string
	// Token is the SSWS API token sent with every request.
	Token string
	// Timeout bounds each HTTP request (default 30s).
	Timeout time.Duration
}

// Client is a bearer-token HTTP client for the Okta API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "okta")),
	}
}

// FetchError reports an unreachable upstream or a non-success response.
// Any FetchError aborts the rebuild that issued the request; the previous
// snapshot stays in force.
type FetchError struct {
	URL        string
	StatusCode int
	Summary    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("okta request %s failed: %v", e.URL, e.Err)
	}
	if e.Summary != "" {
		return fmt.Sprintf("okta request %s failed: status %d: %s", e.URL, e.StatusCode, e.Summary)
	}
	return fmt.Sprintf("okta request %s failed: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// apiError is the error shape Okta returns on non-2xx responses.
type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorSummary string `json:"errorSummary"`
}

// nextLinkRe extracts the cursor URL from a Link response header.
var nextLinkRe = regexp.MustCompile(`<(http[^>]+)>;\s*rel="next"`)

func nextLink(resp *http.Response) string {
	for _, link := range resp.Header.Values("Link") {
		if m := nextLinkRe.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return ""
}

// getJSON issues one GET, decodes the body into out and returns the next
// page URL, if any.
func (c *Client) getJSON(ctx context.Context, url string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, Summary: apiErr.ErrorSummary}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nextLink(resp), nil
}

// fetchAll follows rel="next" cursors until the last page, accumulating
// every element.
func fetchAll[T any](ctx context.Context, c *Client, url string) ([]T, error) {
	var acc []T
	for url != "" {
		var page []T
		next, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		acc = append(acc, page...)
		url = next
	}
	return acc, nil
}

// CheckCredentials verifies a username/password pair against the Okta
// authentication endpoint. HTTP 200 is success; any other outcome is an
// authentication failure carrying the provider's error summary when one is
// available.
func (c *Client) CheckCredentials(ctx context.Context, username, password string) error {
	url := c.baseURL + "/api/v1/authn"

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode authn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build authn request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		c.logger.Info("login failure", slog.String("username", username), slog.String("summary", apiErr.ErrorSummary))
		if apiErr.ErrorSummary != "" {
			return fmt.Errorf("authentication failed for %s: %s", username, apiErr.ErrorSummary)
		}
		return fmt.Errorf("authentication failed for %s: status %d", username, resp.StatusCode)
	}

	c.logger.Info("login success", slog.String("username", username))
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "SSWS "+c.token)
}
