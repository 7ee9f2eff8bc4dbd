// Package registry provides a resilient npm registry client.
//
// The migrator asks the registry for the latest release of each
// dependency it introduces. Responses are cached; transient failures
// are retried with exponential backoff; a circuit breaker stops a run
// from pounding an unavailable registry.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/addonlift/addonlift/pkg/cache"
	"github.com/addonlift/addonlift/pkg/errors"
)

// DefaultURL is the public npm registry.
const DefaultURL = "https://registry.npmjs.org"

// DefaultTTL is how long cached registry responses stay fresh.
const DefaultTTL = 24 * time.Hour

// PackageInfo is the subset of registry metadata the migrator needs.
type PackageInfo struct {
	Name         string            `json:"name"`
	Latest       string            `json:"latest"`
	Dependencies map[string]string `json:"dependencies"`
	Deprecated   string            `json:"deprecated,omitempty"`
}

// Client fetches package metadata from an npm-compatible registry.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	breaker *circuit.Breaker
	baseURL string
	ttl     time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different registry.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTTL sets the cache TTL for registry responses.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// NewClient creates a registry client backed by the given cache.
// A nil cache disables caching.
func NewClient(store cache.Cache, opts ...Option) *Client {
	if store == nil {
		store = cache.NewNullCache()
	}

	// Trip after 5 consecutive failures; recover on an exponential
	// schedule starting at 30 seconds.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()

	c := &Client{
		http:  newTransport(30 * time.Second),
		cache: store,
		breaker: circuit.NewBreakerWithOptions(&circuit.Options{
			BackOff:    expBackoff,
			ShouldTrip: circuit.ThresholdTripFunc(5),
		}),
		baseURL: DefaultURL,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestVersion returns the version the registry's "latest" dist-tag
// points at for the named package.
func (c *Client) LatestVersion(ctx context.Context, name string) (string, error) {
	info, err := c.FetchPackage(ctx, name)
	if err != nil {
		return "", err
	}
	return info.Latest, nil
}

// FetchPackage returns metadata for the named package, serving from
// cache when possible.
func (c *Client) FetchPackage(ctx context.Context, name string) (*PackageInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return nil, err
	}

	key := "npm:" + name
	if data, ok, _ := c.cache.Get(ctx, key); ok {
		var info PackageInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return &info, nil
		}
		// Corrupt entry: drop it and refetch.
		_ = c.cache.Delete(ctx, key)
	}

	info, err := c.fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return info, nil
}

// fetch performs the registry request through the circuit breaker with
// exponential-backoff retries on transient failures.
func (c *Client) fetch(ctx context.Context, name string) (*PackageInfo, error) {
	if !c.breaker.Ready() {
		return nil, errors.New(errors.ErrCodeNetwork, "registry circuit open: %s is unavailable", c.baseURL)
	}

	var info *PackageInfo
	op := func() error {
		return c.breaker.Call(func() error {
			var err error
			info, err = c.doFetch(ctx, name)
			return err
		}, 0)
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxElapsedTime = 15 * time.Second

	if err := backoff.Retry(op, backoff.WithContext(retry, ctx)); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) doFetch(ctx context.Context, name string) (*PackageInfo, error) {
	// Scoped names keep their slash encoded per the registry API.
	path := strings.ReplaceAll(name, "/", "%2f")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/vnd.npm.install-v1+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "registry request for %s failed", name)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// parsed below
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(errors.New(errors.ErrCodePackageNotFound, "npm package %s not found", name))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New(errors.ErrCodeRateLimited, "rate limited fetching %s", name)
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrCodeNetwork, "registry returned %d for %s", resp.StatusCode, name)
	default:
		return nil, backoff.Permanent(errors.New(errors.ErrCodeNetwork, "registry returned %d for %s", resp.StatusCode, name))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "reading registry response for %s", name)
	}

	var data registryResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, backoff.Permanent(errors.Wrap(errors.ErrCodeNetwork, err, "invalid registry response for %s", name))
	}

	latest := data.DistTags.Latest
	if latest == "" {
		return nil, backoff.Permanent(errors.New(errors.ErrCodePackageNotFound, "npm package %s has no latest dist-tag", name))
	}

	info := &PackageInfo{
		Name:   data.Name,
		Latest: latest,
	}
	if v, ok := data.Versions[latest]; ok {
		info.Dependencies = v.Dependencies
		info.Deprecated = v.Deprecated
	}
	return info, nil
}

// RangeFor formats a registry version as the caret range written into
// rewritten manifests.
func RangeFor(version string) string {
	return fmt.Sprintf("^%s", version)
}

type registryResponse struct {
	Name     string                    `json:"name"`
	DistTags distTags                  `json:"dist-tags"`
	Versions map[string]versionDetails `json:"versions"`
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	Dependencies map[string]string `json:"dependencies"`
	Deprecated   string            `json:"deprecated"`
}
