package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/meigma/shipper/core"
)

func TestOCITag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{name: "release platform device", parts: []string{"v1.2.3", "linux", "cuda"}, want: "v1.2.3-linux-cuda"},
		{name: "empty parts skipped", parts: []string{"abc1234", "", "cpu"}, want: "abc1234-cpu"},
		{name: "invalid characters replaced", parts: []string{"release/v2+early", "linux"}, want: "release-v2-early-linux"},
		{name: "leading dot prefixed", parts: []string{".hidden"}, want: "_.hidden"},
		{name: "nothing", parts: nil, want: "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, OCITag(tt.parts...))
		})
	}

	t.Run("truncated to registry limit", func(t *testing.T) {
		t.Parallel()
		assert.Len(t, OCITag(strings.Repeat("a", 300)), maxTagLength)
	})
}

func TestLayerMediaType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, layerMediaTypeGzip, layerMediaType("application/gzip"))
	assert.Equal(t, layerMediaTypeZstd, layerMediaType("application/zstd"))
	assert.Equal(t, layerMediaTypeZstd, layerMediaType(""))
}

func TestMapOCIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "errdef not found",
			err:  fmt.Errorf("resolve: %w", errdef.ErrNotFound),
			want: core.ErrNotFound,
		},
		{
			name: "401 status",
			err:  &errcode.ErrorResponse{StatusCode: http.StatusUnauthorized},
			want: core.ErrUnauthorized,
		},
		{
			name: "403 status",
			err:  &errcode.ErrorResponse{StatusCode: http.StatusForbidden},
			want: core.ErrUnauthorized,
		},
		{
			name: "404 status",
			err:  &errcode.ErrorResponse{StatusCode: http.StatusNotFound},
			want: core.ErrNotFound,
		},
		{
			name: "denied code",
			err: &errcode.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Errors:     errcode.Errors{{Code: errcode.ErrorCodeDenied}},
			},
			want: core.ErrUnauthorized,
		},
		{
			name: "name unknown code",
			err: &errcode.ErrorResponse{
				StatusCode: http.StatusBadRequest,
				Errors:     errcode.Errors{{Code: errcode.ErrorCodeNameUnknown}},
			},
			want: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mapOCIError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		t.Parallel()

		other := errors.New("connection reset")
		assert.Same(t, other, mapOCIError(other))
	})
}

func TestNewOCI(t *testing.T) {
	t.Parallel()

	p, err := NewOCI("OCI", "ghcr.io/dreamnettech/waifu2x", http.DefaultClient,
		WithOCICredentials("user", "pass"), WithPlainHTTP(true))
	require.NoError(t, err)
	assert.Equal(t, "OCI", p.Name())
	assert.True(t, p.repo.PlainHTTP)
	assert.Equal(t, "ghcr.io", p.repo.Reference.Registry)
	assert.Equal(t, "dreamnettech/waifu2x", p.repo.Reference.Repository)

	_, err = NewOCI("OCI", "not a reference", http.DefaultClient)
	assert.Error(t, err)
}
