// Package registry resolves tag-based releases on GitHub.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/transport"
)

// Compile-time interface implementation check.
var _ core.ReleaseRegistry = (*GitHub)(nil)

// DefaultMaxAttempts bounds the find-or-create loop.
const DefaultMaxAttempts = 5

// Option configures a GitHub registry.
type Option func(*GitHub)

// GitHub finds or creates releases in one repository.
// Resolved records are cached per tag for the lifetime of the registry.
type GitHub struct {
	client      *github.Client
	owner       string
	repo        string
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration

	mu    sync.Mutex
	cache map[string]core.ReleaseRecord
}

// New creates a registry for owner/repo using client.
func New(client *github.Client, owner, repo string, opts ...Option) *GitHub {
	g := &GitHub{
		client:      client,
		owner:       owner,
		repo:        repo,
		logger:      slog.New(slog.DiscardHandler),
		maxAttempts: DefaultMaxAttempts,
		cache:       make(map[string]core.ReleaseRecord),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *GitHub) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMaxAttempts sets how many find-or-create rounds Resolve makes before
// giving up with core.ErrRegistryExhausted.
func WithMaxAttempts(n int) Option {
	return func(g *GitHub) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between find-or-create rounds.
func WithRetryDelay(d time.Duration) Option {
	return func(g *GitHub) {
		g.retryDelay = d
	}
}

// NewClient creates a GitHub API client authenticated with token.
// baseURL overrides the API endpoint when non-empty (GitHub Enterprise or a
// test server). Asset uploads go to the upload_url of the resolved release,
// so the upload endpoint keeps its default.
func NewClient(token, baseURL string, httpClient *http.Client) (*github.Client, error) {
	if httpClient == nil {
		httpClient = transport.NewClient(0)
	}
	c := github.NewClient(httpClient)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github url: %w", err)
		}
		c.BaseURL = u
	}
	return c, nil
}

// SplitRepository splits an "owner/repo" slug.
func SplitRepository(slug string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q (want owner/repo)", slug)
	}
	return owner, repo, nil
}

// Resolve finds the release for tag, creating it as a non-draft prerelease
// when it does not exist yet.
//
// A failed create usually means a concurrent run created the release first,
// so the failure is logged and the lookup is repeated. Lookup errors other
// than not-found are returned immediately. After the configured number of
// rounds Resolve returns an error wrapping core.ErrRegistryExhausted.
func (g *GitHub) Resolve(ctx context.Context, tag string) (core.ReleaseRecord, error) {
	if rec, ok := g.cached(tag); ok {
		return rec, nil
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 && g.retryDelay > 0 {
			select {
			case <-ctx.Done():
				return core.ReleaseRecord{}, ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}

		rec, err := g.get(ctx, tag)
		if err == nil {
			return g.store(rec), nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return core.ReleaseRecord{}, fmt.Errorf("get release %s: %w", tag, err)
		}

		g.logger.Info("creating release", "tag", tag, "repository", g.owner+"/"+g.repo)
		rec, err = g.create(ctx, tag)
		if err == nil {
			return g.store(rec), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.ReleaseRecord{}, ctxErr
		}
		g.logger.Warn("create release failed, retrying", "tag", tag, "attempt", attempt, "error", err)
		lastErr = err
	}

	return core.ReleaseRecord{}, fmt.Errorf("%w: tag %s after %d attempts: %v", core.ErrRegistryExhausted, tag, g.maxAttempts, lastErr)
}

func (g *GitHub) get(ctx context.Context, tag string) (core.ReleaseRecord, error) {
	rel, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		return core.ReleaseRecord{}, mapError(err)
	}
	return toRecord(rel, tag), nil
}

func (g *GitHub) create(ctx context.Context, tag string) (core.ReleaseRecord, error) {
	rel, _, err := g.client.Repositories.CreateRelease(ctx, g.owner, g.repo, &github.RepositoryRelease{
		TagName:    github.String(tag),
		Name:       github.String(tag),
		Prerelease: github.Bool(true),
		Draft:      github.Bool(false),
	})
	if err != nil {
		return core.ReleaseRecord{}, mapError(err)
	}
	return toRecord(rel, tag), nil
}

func (g *GitHub) cached(tag string) (core.ReleaseRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.cache[tag]
	return rec, ok
}

func (g *GitHub) store(rec core.ReleaseRecord) core.ReleaseRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[rec.Tag] = rec
	return rec
}

func toRecord(rel *github.RepositoryRelease, tag string) core.ReleaseRecord {
	return core.ReleaseRecord{
		ID:        rel.GetID(),
		Tag:       tag,
		UploadURL: rel.GetUploadURL(),
	}
}
