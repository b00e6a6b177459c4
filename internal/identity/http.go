package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/valyala/fasthttp"
)

// HTTPResolver asks an identity service who a bearer token belongs to.
type HTTPResolver struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*HTTPResolver)

func WithTimeout(d time.Duration) Option {
	return func(r *HTTPResolver) { r.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(r *HTTPResolver) { r.retryMax = max }
}

// WithClient replaces the underlying fasthttp client, e.g. to dial an
// in-memory listener.
func WithClient(c *fasthttp.Client) Option {
	return func(r *HTTPResolver) { r.http = c }
}

func NewHTTPResolver(baseURL string, opts ...Option) *HTTPResolver {
	r := &HTTPResolver{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type identityResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Resolve calls GET /v1/identity with the token. Rejected tokens map to
// NotAuthenticated; network failures and 5xx replies are retried and then
// reported as Transient.
func (r *HTTPResolver) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(r.baseURL + "/v1/identity")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	attempts := r.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, backoffDuration(attempt-1)); err != nil {
				break
			}
		}
		if err := r.http.DoDeadline(req, resp, r.deadline(ctx)); err != nil {
			lastErr = err
			continue
		}
		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden || status == fasthttp.StatusNotFound:
			return domain.Identity{}, domain.Errorf(domain.CodeNotAuthenticated, "identity rejected (status %d)", status)
		case shouldRetryStatus(status):
			lastErr = fmt.Errorf("identity service status=%d body=%s", status, truncate(string(resp.Body()), 256))
			continue
		case status < 200 || status >= 300:
			return domain.Identity{}, domain.Transient("identity", fmt.Errorf("unexpected status %d", status))
		}
		var out identityResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return domain.Identity{}, domain.Transient("identity", fmt.Errorf("decode response: %w", err))
		}
		if strings.TrimSpace(out.ID) == "" {
			return domain.Identity{}, domain.Errorf(domain.CodeNotAuthenticated, "identity service returned no id")
		}
		name := out.DisplayName
		if name == "" {
			name = out.Name
		}
		return domain.Identity{ID: out.ID, Name: name}, nil
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return domain.Identity{}, domain.Transient("identity", lastErr)
}

func (r *HTTPResolver) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(r.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 50ms per attempt, capped at 1.6s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 50 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
