package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shipper/core"
)

func TestRecorder_CountsUploads(t *testing.T) {
	t.Parallel()

	r := New()
	clock := time.Unix(0, 0)
	r.now = func() time.Time { return clock }

	r.OnEvent(core.Event{Kind: core.UploadBegin, Provider: "GitHub"})
	r.OnEvent(core.Event{Kind: core.UploadProgress, Provider: "GitHub", BytesTransferred: 100, TotalBytes: 300})
	r.OnEvent(core.Event{Kind: core.UploadProgress, Provider: "GitHub", BytesTransferred: 300, TotalBytes: 300})
	clock = clock.Add(3 * time.Second)
	r.OnEvent(core.Event{Kind: core.UploadSuccess, Provider: "GitHub"})

	r.OnEvent(core.Event{Kind: core.UploadBegin, Provider: "IPFS"})
	r.OnEvent(core.Event{Kind: core.PinBegin, Provider: "IPFS"})
	r.OnEvent(core.Event{Kind: core.PinFail, Provider: "IPFS", Err: errors.New("x")})
	r.OnEvent(core.Event{Kind: core.UploadFail, Provider: "IPFS", Err: errors.New("x")})

	assert.InDelta(t, 1, testutil.ToFloat64(r.uploads.WithLabelValues("GitHub", statusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.uploads.WithLabelValues("IPFS", statusFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.pins.WithLabelValues("IPFS", statusFailure)), 0)
	assert.InDelta(t, 300, testutil.ToFloat64(r.bytes.WithLabelValues("GitHub")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(r.duration))
}

func TestRecorder_Push(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod, gotPath = req.Method, req.URL.Path
		body, _ := io.ReadAll(req.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	r := New()
	r.OnEvent(core.Event{Kind: core.UploadBegin, Provider: "file.io"})
	r.OnEvent(core.Event{Kind: core.UploadSuccess, Provider: "file.io"})

	err := r.Push(context.Background(), srv.URL, "shipper", map[string]string{"release": "v1"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/shipper/release/v1", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestRecorder_PushError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	err := New().Push(context.Background(), srv.URL, "shipper", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), srv.URL))
}
