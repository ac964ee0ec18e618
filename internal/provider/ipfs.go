package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/transport"
)

// Compile-time interface implementation check.
var _ core.Provider = (*IPFS)(nil)

// errNoCID is returned when an add response carries no content identifier.
var errNoCID = errors.New("ipfs add response has no hash")

// IPFSOption configures an IPFS provider.
type IPFSOption func(*IPFS)

// WithBasicAuth authenticates API calls, as pinning services such as Infura
// require. Empty credentials are ignored.
func WithBasicAuth(username, password string) IPFSOption {
	return func(p *IPFS) {
		if username == "" && password == "" {
			return
		}
		p.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}
}

// WithPinStep enables or disables the explicit pin after add.
func WithPinStep(enabled bool) IPFSOption {
	return func(p *IPFS) {
		p.pinStep = enabled
	}
}

// IPFS adds the archive to an IPFS HTTP API and pins it.
// The payload is the content identifier.
type IPFS struct {
	name    string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	auth    string
	pinStep bool
}

// NewIPFS creates an IPFS provider for the API at baseURL
// (for example https://ipfs.infura.io:5001).
func NewIPFS(name, baseURL string, client *http.Client, logger *slog.Logger, opts ...IPFSOption) *IPFS {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &IPFS{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
		pinStep: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements core.Provider.
func (p *IPFS) Name() string { return p.name }

// Upload implements core.Provider.
//
// The add request carries the pin flag. When the pin step is enabled the
// CID is then pinned explicitly, bracketed by pin events; a failed pin is
// reported through events and logs but does not fail the upload, because
// the content has already been added.
func (p *IPFS) Upload(ctx context.Context, u *core.Upload) (json.RawMessage, error) {
	body, err := postMultipart(ctx, p.client, p.baseURL+"/api/v0/add?pin=true", u,
		map[string]string{"pin": "true"}, p.headers())
	if err != nil {
		return nil, err
	}

	cid, err := parseAddResponse(body)
	if err != nil {
		return nil, err
	}

	if p.pinStep {
		u.Emit(core.Event{Kind: core.PinBegin, Provider: p.name})
		if err := p.pin(ctx, cid); err != nil {
			p.logger.Warn("pin failed", "provider", p.name, "cid", cid, "error", err)
			u.Emit(core.Event{Kind: core.PinFail, Provider: p.name, Err: err})
		} else {
			u.Emit(core.Event{Kind: core.PinSuccess, Provider: p.name, CID: cid})
		}
	}

	return json.Marshal(cid)
}

func (p *IPFS) pin(ctx context.Context, cid string) error {
	endpoint := p.baseURL + "/api/v0/pin/add?arg=" + url.QueryEscape(cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range p.headers() {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pin %s: %w", cid, err)
	}
	defer resp.Body.Close()
	return transport.CheckResponse(resp)
}

func (p *IPFS) headers() map[string]string {
	if p.auth == "" {
		return nil
	}
	return map[string]string{"Authorization": p.auth}
}

// parseAddResponse extracts the CID from an add response. The API streams
// one JSON object per line; the last object with a hash is the root.
func parseAddResponse(body []byte) (string, error) {
	var cid string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj struct {
			Hash string `json:"Hash"`
		}
		if err := json.Unmarshal(line, &obj); err != nil {
			return "", fmt.Errorf("decode add response: %w", err)
		}
		if obj.Hash != "" {
			cid = obj.Hash
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read add response: %w", err)
	}
	if cid == "" {
		return "", errNoCID
	}
	return cid, nil
}
