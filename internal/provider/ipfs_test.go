package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shipper/core"
)

type fakeIPFS struct {
	*httptest.Server

	mu       sync.Mutex
	pins     []string
	auth     []string
	pinField string
}

func newFakeIPFS(t *testing.T, addBody string, pinStatus int) *fakeIPFS {
	t.Helper()

	f := &fakeIPFS{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.pinField = r.FormValue("pin")
		f.mu.Unlock()
		_, _ = io.WriteString(w, addBody)
	})
	mux.HandleFunc("POST /api/v0/pin/add", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.pins = append(f.pins, r.URL.Query().Get("arg"))
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		w.WriteHeader(pinStatus)
		_, _ = io.WriteString(w, `{"Pins":["x"]}`)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

const addResponse = `{"Name":"waifu2x.tar.zst","Hash":"QmLeaf","Size":"10"}
{"Name":"","Hash":"QmRoot","Size":"12"}
`

func TestIPFS_UploadAndPin(t *testing.T) {
	t.Parallel()

	srv := newFakeIPFS(t, addResponse, http.StatusOK)
	fx := newArchiveFixture(t, "bytes")
	var log eventLog

	p := NewIPFS("IPFS", srv.URL+"/", srv.Client(), nil, WithBasicAuth("id", "secret"))
	payload, err := p.Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, &log))
	require.NoError(t, err)
	assert.JSONEq(t, `"QmRoot"`, string(payload))

	assert.Equal(t, []core.EventKind{core.PinBegin, core.PinSuccess}, log.kinds())
	assert.Equal(t, "QmRoot", log.events[1].CID)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"QmRoot"}, srv.pins)
	assert.Equal(t, "true", srv.pinField)
	for _, a := range srv.auth {
		assert.Equal(t, "Basic aWQ6c2VjcmV0", a)
	}
}

func TestIPFS_PinFailureDoesNotFailUpload(t *testing.T) {
	t.Parallel()

	srv := newFakeIPFS(t, addResponse, http.StatusInternalServerError)
	fx := newArchiveFixture(t, "bytes")
	var log eventLog

	payload, err := NewIPFS("IPFS", srv.URL, srv.Client(), nil).
		Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, &log))
	require.NoError(t, err)
	assert.JSONEq(t, `"QmRoot"`, string(payload))

	assert.Equal(t, []core.EventKind{core.PinBegin, core.PinFail}, log.kinds())
	assert.Error(t, log.events[1].Err)
}

func TestIPFS_SkipPinStep(t *testing.T) {
	t.Parallel()

	srv := newFakeIPFS(t, addResponse, http.StatusOK)
	fx := newArchiveFixture(t, "bytes")
	var log eventLog

	_, err := NewIPFS("IPFS", srv.URL, srv.Client(), nil, WithPinStep(false)).
		Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, &log))
	require.NoError(t, err)
	assert.Empty(t, log.kinds())

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Empty(t, srv.pins)
	assert.Equal(t, []string{""}, srv.auth)
}

func TestIPFS_NoHash(t *testing.T) {
	t.Parallel()

	srv := newFakeIPFS(t, `{"Name":"x"}`, http.StatusOK)
	fx := newArchiveFixture(t, "bytes")

	_, err := NewIPFS("IPFS", srv.URL, srv.Client(), nil).
		Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, nil))
	assert.ErrorIs(t, err, errNoCID)
}

func TestParseAddResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "single object", body: `{"Hash":"QmA"}`, want: "QmA"},
		{name: "last hash wins", body: addResponse, want: "QmRoot"},
		{name: "blank lines ignored", body: "\n{\"Hash\":\"QmA\"}\n\n", want: "QmA"},
		{name: "empty", body: "", wantErr: true},
		{name: "not json", body: "oops", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseAddResponse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
