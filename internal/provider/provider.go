// Package provider implements the upload destinations shipper publishes to.
package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/transport"
)

// Kind names a provider implementation.
type Kind string

// Provider kinds.
const (
	KindGitHub Kind = "github"
	KindForm   Kind = "form"
	KindRelay  Kind = "relay"
	KindIPFS   Kind = "ipfs"
	KindOCI    Kind = "oci"
	KindS3     Kind = "s3"
)

// Config describes one configured destination.
type Config struct {
	// Name labels the provider in events and results. Defaults per kind.
	Name string
	Kind Kind

	// URL is the upload endpoint (form, relay), API base (ipfs),
	// S3 endpoint host (s3) or repository reference (oci).
	URL string
	// Token is the bearer token (github) or basic token (relay).
	Token string
	// Username and Password authenticate ipfs, oci and s3.
	Username string
	Password string
	// Fields are extra multipart form fields (form, relay).
	Fields map[string]string

	// Bucket, Prefix and Region configure s3.
	Bucket string
	Prefix string
	Region string

	// Insecure allows plain HTTP (oci, s3).
	Insecure bool
	// SkipPin disables the separate pin step (ipfs).
	SkipPin bool
}

// Deps are shared collaborators handed to every provider.
type Deps struct {
	Logger     *slog.Logger
	HTTPClient *http.Client

	// GitHub client and repository used by the github provider.
	GitHub *github.Client
	Owner  string
	Repo   string
}

// New builds the provider described by cfg.
func New(cfg Config, deps Deps) (core.Provider, error) {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = transport.NewClient(0)
	}

	switch cfg.Kind {
	case KindGitHub:
		if deps.GitHub == nil {
			return nil, fmt.Errorf("provider %s: github client not configured", cfg.Kind)
		}
		return NewGitHub(nameOr(cfg.Name, "GitHub"), deps.GitHub, deps.Owner, deps.Repo), nil
	case KindForm:
		if cfg.URL == "" {
			return nil, fmt.Errorf("provider %s: url is required", nameOr(cfg.Name, string(cfg.Kind)))
		}
		return NewForm(nameOr(cfg.Name, hostOf(cfg.URL)), cfg.URL, deps.HTTPClient, WithFields(cfg.Fields)), nil
	case KindRelay:
		if cfg.URL == "" {
			return nil, fmt.Errorf("provider %s: url is required", nameOr(cfg.Name, string(cfg.Kind)))
		}
		return NewRelay(nameOr(cfg.Name, "DreamLink"), cfg.URL, cfg.Token, deps.HTTPClient, WithFields(cfg.Fields)), nil
	case KindIPFS:
		if cfg.URL == "" {
			return nil, fmt.Errorf("provider %s: url is required", nameOr(cfg.Name, string(cfg.Kind)))
		}
		return NewIPFS(nameOr(cfg.Name, "IPFS"), cfg.URL, deps.HTTPClient, deps.Logger,
			WithBasicAuth(cfg.Username, cfg.Password), WithPinStep(!cfg.SkipPin)), nil
	case KindOCI:
		if cfg.URL == "" {
			return nil, fmt.Errorf("provider %s: repository is required", nameOr(cfg.Name, string(cfg.Kind)))
		}
		p, err := NewOCI(nameOr(cfg.Name, "OCI"), cfg.URL, deps.HTTPClient,
			WithOCICredentials(cfg.Username, cfg.Password), WithPlainHTTP(cfg.Insecure))
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("provider %s: bucket is required", nameOr(cfg.Name, string(cfg.Kind)))
		}
		p, err := NewS3(nameOr(cfg.Name, "S3"), S3Config{
			Endpoint:  cfg.URL,
			AccessKey: cfg.Username,
			SecretKey: cfg.Password,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
			Region:    cfg.Region,
			Insecure:  cfg.Insecure,
		}, deps.HTTPClient.Transport)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, cfg.Kind)
	}
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func hostOf(raw string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(s, "/")
	return host
}

// contentType picks the upload content type for an artifact.
func contentType(a core.Artifact) string {
	if ct := mime.TypeByExtension(filepath.Ext(a.FileName)); ct != "" {
		return ct
	}
	if a.MediaType != "" {
		return a.MediaType
	}
	return "application/octet-stream"
}

// bodyPayload turns a response body into a result payload: JSON bodies are
// kept as-is, anything else becomes a JSON string.
func bodyPayload(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body), nil
	}
	return json.Marshal(string(body))
}

// readBody reads a successful response body.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
