package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/transport"
)

type receivedForm struct {
	fields   map[string]string
	fileName string
	data     []byte
	auth     string
}

func formServer(t *testing.T, status int, response string) (*httptest.Server, <-chan receivedForm) {
	t.Helper()

	got := make(chan receivedForm, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rf := receivedForm{fields: map[string]string{}, auth: r.Header.Get("Authorization")}
		for k, v := range r.MultipartForm.Value {
			rf.fields[k] = v[0]
		}
		if fh := r.MultipartForm.File["file"]; len(fh) == 1 {
			f, err := fh[0].Open()
			if err == nil {
				rf.fileName = fh[0].Filename
				rf.data, _ = io.ReadAll(f)
				f.Close()
			}
		}
		got <- rf
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestForm_Upload(t *testing.T) {
	t.Parallel()

	srv, got := formServer(t, http.StatusOK, `{"success":true,"link":"https://file.io/abc"}`)
	fx := newArchiveFixture(t, "archive bytes")

	p := NewForm("file.io", srv.URL, srv.Client(), WithFields(map[string]string{"expires": "1w"}))
	payload, err := p.Upload(context.Background(), fx.upload(core.Release{ID: "v1.2.3"}, nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"link":"https://file.io/abc"}`, string(payload))

	rf := <-got
	assert.Equal(t, "1w", rf.fields["expires"])
	assert.Equal(t, "waifu2x-v1.2.3-linux-cuda.tar.zst", rf.fileName)
	assert.Equal(t, []byte("archive bytes"), rf.data)
	assert.Empty(t, rf.auth)

	assert.Equal(t, int32(1), fx.opened.Load())
	assert.Equal(t, int32(1), fx.closed.Load())
}

func TestForm_NonJSONBodyBecomesString(t *testing.T) {
	t.Parallel()

	srv, _ := formServer(t, http.StatusOK, "https://transfer.sh/abc/file.tar.zst\n")
	fx := newArchiveFixture(t, "x")

	payload, err := NewForm("transfer.sh", srv.URL, srv.Client()).
		Upload(context.Background(), fx.upload(core.Release{ID: "abc1234"}, nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `"https://transfer.sh/abc/file.tar.zst"`, string(payload))
}

func TestForm_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv, _ := formServer(t, http.StatusBadGateway, "upstream down")
	fx := newArchiveFixture(t, "x")

	_, err := NewForm("file.io", srv.URL, srv.Client()).
		Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, nil))
	require.Error(t, err)

	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, fx.opened.Load(), fx.closed.Load())
}

func TestForm_ServerRejectsBeforeReadingBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	fx := newArchiveFixture(t, "x")

	_, err := NewForm("file.io", srv.URL, srv.Client()).
		Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, nil))
	require.Error(t, err)
	assert.Equal(t, int32(1), fx.closed.Load())
}

func TestForm_OpenError(t *testing.T) {
	t.Parallel()

	openErr := errors.New("gone")
	u := core.NewUpload(core.Artifact{FileName: "a.tar.zst"}, core.Release{ID: "v1"}, nil,
		func() (io.ReadCloser, error) { return nil, openErr }, nil)

	_, err := NewForm("file.io", "http://127.0.0.1:0", http.DefaultClient).Upload(context.Background(), u)
	assert.ErrorIs(t, err, openErr)
}

func TestRelay_SendsBasicToken(t *testing.T) {
	t.Parallel()

	srv, got := formServer(t, http.StatusOK, `{"ok":true}`)
	fx := newArchiveFixture(t, "x")

	p := NewRelay("DreamLink", srv.URL, "s3cret", srv.Client(), WithFields(map[string]string{"project": "waifu2x"}))
	_, err := p.Upload(context.Background(), fx.upload(core.Release{ID: "v1"}, nil, nil))
	require.NoError(t, err)

	rf := <-got
	assert.Equal(t, "Basic s3cret", rf.auth)
	assert.Equal(t, "waifu2x", rf.fields["project"])
	assert.Equal(t, "DreamLink", p.Name())
}
