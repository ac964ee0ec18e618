package registry

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/testutil/fakegithub"
)

func newRegistry(t *testing.T, srv *fakegithub.Server, opts ...Option) *GitHub {
	t.Helper()

	client, err := NewClient("token", srv.URL, nil)
	require.NoError(t, err)
	return New(client, "dreamnettech", "waifu2x", opts...)
}

func TestResolve_ExistingRelease(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x")
	seeded := srv.Seed("v1.2.3")

	rec, err := newRegistry(t, srv).Resolve(context.Background(), "v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, rec.ID)
	assert.Equal(t, "v1.2.3", rec.Tag)
	assert.Equal(t, seeded.UploadURL, rec.UploadURL)
	assert.Zero(t, srv.CreateAttempts())
}

func TestResolve_CreatesMissingRelease(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x")

	rec, err := newRegistry(t, srv).Resolve(context.Background(), "v2.0.0")
	require.NoError(t, err)

	stored, ok := srv.Release("v2.0.0")
	require.True(t, ok)
	assert.Equal(t, stored.ID, rec.ID)
	assert.True(t, stored.Prerelease)
	assert.False(t, stored.Draft)
	assert.Equal(t, "v2.0.0", stored.Name)
	assert.Equal(t, 1, srv.CreateAttempts())
}

func TestResolve_CachesRecords(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x")
	srv.Seed("v1")
	reg := newRegistry(t, srv)

	first, err := reg.Resolve(context.Background(), "v1")
	require.NoError(t, err)
	second, err := reg.Resolve(context.Background(), "v1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.Lookups())
}

func TestResolve_ConcurrentCreatorsConverge(t *testing.T) {
	t.Parallel()

	// Both lookups miss before either create lands, so exactly one create
	// wins and the loser must converge through the retry path.
	srv := fakegithub.New(t, "dreamnettech", "waifu2x", fakegithub.WithHeldLookups(2))

	// Separate registries model two independent CI jobs.
	regs := []*GitHub{newRegistry(t, srv), newRegistry(t, srv)}

	var wg sync.WaitGroup
	records := make([]core.ReleaseRecord, 2)
	errs := make([]error, 2)
	for i, reg := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records[i], errs[i] = reg.Resolve(context.Background(), "v3.0.0")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, records[0].UploadURL, records[1].UploadURL)
	assert.Equal(t, records[0].ID, records[1].ID)
	assert.Equal(t, 1, srv.ReleaseCount())
	assert.Equal(t, 2, srv.CreateAttempts())
}

func TestResolve_LookupErrorIsFatal(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x", fakegithub.WithLookupStatus(http.StatusInternalServerError))

	_, err := newRegistry(t, srv, WithMaxAttempts(3)).Resolve(context.Background(), "v1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrRegistryExhausted)
	assert.Zero(t, srv.CreateAttempts())
	assert.Equal(t, 1, srv.Lookups())
}

func TestResolve_UnauthorizedLookup(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x", fakegithub.WithLookupStatus(http.StatusUnauthorized))

	_, err := newRegistry(t, srv).Resolve(context.Background(), "v1")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestResolve_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x", fakegithub.WithCreateStatus(http.StatusInternalServerError))

	_, err := newRegistry(t, srv, WithMaxAttempts(3)).Resolve(context.Background(), "v1")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRegistryExhausted)
	assert.Equal(t, 3, srv.CreateAttempts())
	assert.Equal(t, 3, srv.Lookups())
}

func TestResolve_RetryDelayHonoursContext(t *testing.T) {
	t.Parallel()

	srv := fakegithub.New(t, "dreamnettech", "waifu2x", fakegithub.WithCreateStatus(http.StatusInternalServerError))
	reg := newRegistry(t, srv, WithMaxAttempts(10), WithRetryDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := reg.Resolve(ctx, "v1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, srv.CreateAttempts())
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	g := New(nil, "o", "r")
	assert.Equal(t, DefaultMaxAttempts, g.maxAttempts)
	assert.Zero(t, g.retryDelay)

	g = New(nil, "o", "r", WithMaxAttempts(0), WithMaxAttempts(2), WithRetryDelay(time.Second), WithLogger(nil))
	assert.Equal(t, 2, g.maxAttempts)
	assert.Equal(t, time.Second, g.retryDelay)
	assert.NotNil(t, g.logger)
}

func TestSplitRepository(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slug      string
		owner     string
		repo      string
		wantError bool
	}{
		{slug: "dreamnettech/waifu2x-chainer", owner: "dreamnettech", repo: "waifu2x-chainer"},
		{slug: "noslash", wantError: true},
		{slug: "/repo", wantError: true},
		{slug: "owner/", wantError: true},
		{slug: "a/b/c", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			t.Parallel()

			owner, repo, err := SplitRepository(tt.slug)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestNewClient_KeepsUploadEndpoint(t *testing.T) {
	t.Parallel()

	client, err := NewClient("token", "https://api.github.com", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", client.BaseURL.String())
	assert.Equal(t, "https://uploads.github.com/", client.UploadURL.String())
}
