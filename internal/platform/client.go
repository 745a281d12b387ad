// Package platform talks to the GitHub REST API. It owns client
// construction, timeouts and authentication, maps go-github types to the
// small value types the rest of the program uses, and classifies every
// failure as an API error or a network error.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"deploy/internal/failure"
	"deploy/internal/security"
)

const rateLimitWarnThreshold = 100

// Options configures a Client.
type Options struct {
	// Token is the bearer token. Empty means unauthenticated requests.
	Token string
	// BaseURL and UploadURL point at a GitHub Enterprise or test server.
	// Empty uses api.github.com.
	BaseURL   string
	UploadURL string
	// APITimeout bounds each API request, including reading the body.
	APITimeout time.Duration
	// DownloadTimeout bounds release asset downloads, whether the asset is
	// served by the API itself or from the storage host it redirects to.
	DownloadTimeout time.Duration
	UserAgent       string
	Logger          *slog.Logger
	// Transport replaces http.DefaultTransport; used by tests.
	Transport http.RoundTripper
}

// Client is a GitHub API client bound to one token.
type Client struct {
	gh *github.Client
	// assets is gh with the download timeout, for asset bodies the API
	// serves itself.
	assets    *github.Client
	downloads *http.Client
	token     string
	logger    *slog.Logger
}

// NewClient builds a Client. API and download traffic use separate
// http.Clients so each carries its own timeout.
func NewClient(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gh, err := newGitHub(opts, opts.APITimeout)
	if err != nil {
		return nil, err
	}
	assets, err := newGitHub(opts, opts.DownloadTimeout)
	if err != nil {
		return nil, err
	}

	// Asset redirects point at pre-signed storage URLs that reject a second
	// credential, so downloads go out without the token.
	downloads := &http.Client{Transport: opts.Transport, Timeout: opts.DownloadTimeout}

	return &Client{
		gh:        gh,
		assets:    assets,
		downloads: downloads,
		token:     opts.Token,
		logger:    logger,
	}, nil
}

func newGitHub(opts Options, timeout time.Duration) (*github.Client, error) {
	base := &http.Client{Transport: opts.Transport}
	hc := base
	if opts.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		hc = oauth2.NewClient(ctx, ts)
	}
	hc.Timeout = timeout

	gh := github.NewClient(hc)
	if opts.UserAgent != "" {
		gh.UserAgent = opts.UserAgent
	}
	if opts.BaseURL != "" {
		u, err := endpointURL(opts.BaseURL)
		if err != nil {
			return nil, failure.Configuration("invalid API URL %q: %v", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}
	if opts.UploadURL != "" {
		u, err := endpointURL(opts.UploadURL)
		if err != nil {
			return nil, failure.Configuration("invalid upload URL %q: %v", opts.UploadURL, err)
		}
		gh.UploadURL = u
	}
	return gh, nil
}

// endpointURL parses raw and guarantees the trailing slash go-github
// requires on its base URLs.
func endpointURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("must be absolute")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// splitRepo validates repoFullName and splits it into owner and name.
func splitRepo(repoFullName string) (string, string, error) {
	owner, name, err := security.SplitRepository(repoFullName)
	if err != nil {
		return "", "", &failure.ConfigurationError{Msg: "invalid repository", Err: err}
	}
	return owner, name, nil
}

// classify turns a go-github error into an APIError when the server
// answered and a NetworkError when it did not.
func (c *Client) classify(op string, resp *github.Response, err error) error {
	if err == nil {
		return nil
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return &failure.APIError{
			Status: errResp.Response.StatusCode,
			Body:   c.redact(errorBody(errResp)),
		}
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		status := http.StatusForbidden
		if rateErr.Response != nil {
			status = rateErr.Response.StatusCode
		}
		return &failure.APIError{
			Status: status,
			Body:   fmt.Sprintf("%s (resets %s)", rateErr.Message, rateErr.Rate.Reset.Format(time.RFC3339)),
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		status := http.StatusForbidden
		if abuseErr.Response != nil {
			status = abuseErr.Response.StatusCode
		}
		return &failure.APIError{Status: status, Body: abuseErr.Message}
	}

	if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
		return &failure.APIError{Status: resp.StatusCode, Body: c.redact(err.Error())}
	}

	return &failure.NetworkError{Op: op, Err: errors.New(c.redact(err.Error()))}
}

func errorBody(errResp *github.ErrorResponse) string {
	body := errResp.Message
	if len(errResp.Errors) > 0 {
		details := make([]string, 0, len(errResp.Errors))
		for _, e := range errResp.Errors {
			if e.Message != "" {
				details = append(details, e.Message)
			} else {
				details = append(details, fmt.Sprintf("%s %s %s", e.Resource, e.Field, e.Code))
			}
		}
		body = strings.TrimSpace(body + " " + strings.Join(details, "; "))
	}
	return body
}

// acceptedMessage pulls the message out of a 202 body.
func acceptedMessage(accepted *github.AcceptedError) string {
	var body struct {
		Message string `json:"message"`
	}
	if len(accepted.Raw) > 0 && json.Unmarshal(accepted.Raw, &body) == nil {
		return body.Message
	}
	return ""
}

func (c *Client) redact(s string) string {
	return security.Redact(s, c.token)
}

// logRateLimit logs rate-limit headroom after each call.
func (c *Client) logRateLimit(resp *github.Response, endpoint string) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.logger.Debug("github api call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < rateLimitWarnThreshold {
		c.logger.Warn("github rate limit running low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
