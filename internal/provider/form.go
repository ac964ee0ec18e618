package provider

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation check.
var _ core.Provider = (*Form)(nil)

// FormOption configures a Form provider.
type FormOption func(*Form)

// WithFields adds multipart form fields sent with the archive, such as a
// host's expiry setting.
func WithFields(fields map[string]string) FormOption {
	return func(f *Form) {
		maps.Copy(f.fields, fields)
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) FormOption {
	return func(f *Form) {
		f.headers[key] = value
	}
}

// Form uploads the archive to a generic file host as multipart form data.
// The host's response body is the result payload.
type Form struct {
	name    string
	url     string
	client  *http.Client
	fields  map[string]string
	headers map[string]string
}

// NewForm creates a generic file host provider.
func NewForm(name, url string, client *http.Client, opts ...FormOption) *Form {
	f := &Form{
		name:    name,
		url:     url,
		client:  client,
		fields:  make(map[string]string),
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewRelay creates a form provider for a private relay that authenticates
// with a basic token.
func NewRelay(name, url, token string, client *http.Client, opts ...FormOption) *Form {
	opts = append(opts, WithHeader("Authorization", "Basic "+token))
	return NewForm(name, url, client, opts...)
}

// Name implements core.Provider.
func (f *Form) Name() string { return f.name }

// Upload implements core.Provider.
func (f *Form) Upload(ctx context.Context, u *core.Upload) (json.RawMessage, error) {
	body, err := postMultipart(ctx, f.client, f.url, u, f.fields, f.headers)
	if err != nil {
		return nil, err
	}
	return bodyPayload(body)
}
