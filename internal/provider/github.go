package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation checks.
var (
	_ core.Provider     = (*GitHub)(nil)
	_ core.ReleaseBound = (*GitHub)(nil)
)

// errNoRecord is returned when the github provider runs without a resolved release.
var errNoRecord = errors.New("no release record resolved")

// GitHub uploads the archive as a release asset.
type GitHub struct {
	name   string
	client *github.Client
	owner  string
	repo   string
}

// NewGitHub creates a release asset provider for owner/repo.
func NewGitHub(name string, client *github.Client, owner, repo string) *GitHub {
	return &GitHub{name: name, client: client, owner: owner, repo: repo}
}

// Name implements core.Provider.
func (g *GitHub) Name() string { return g.name }

// NeedsRelease implements core.ReleaseBound.
func (g *GitHub) NeedsRelease() bool { return true }

// Upload implements core.Provider.
func (g *GitHub) Upload(ctx context.Context, u *core.Upload) (json.RawMessage, error) {
	if u.Record == nil {
		return nil, errNoRecord
	}

	file, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	// The request body is closed by net/http; the deferred close above owns the file.
	body := struct{ io.Reader }{file}
	req, err := g.client.NewUploadRequest(g.uploadURL(u), body, u.Artifact.Size, contentType(u.Artifact))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}

	asset := new(github.ReleaseAsset)
	if _, err := g.client.Do(ctx, req, asset); err != nil {
		return nil, fmt.Errorf("upload asset %s: %w", u.Artifact.FileName, err)
	}

	return json.Marshal(struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Size int    `json:"size"`
	}{asset.GetName(), asset.GetBrowserDownloadURL(), asset.GetSize()})
}

// uploadURL expands the release's upload_url template with the asset name.
// Records without one fall back to the client's upload endpoint.
func (g *GitHub) uploadURL(u *core.Upload) string {
	query := url.Values{"name": []string{u.Artifact.FileName}}.Encode()
	if tmpl := u.Record.UploadURL; tmpl != "" {
		base, _, _ := strings.Cut(tmpl, "{")
		return base + "?" + query
	}
	return fmt.Sprintf("repos/%s/%s/releases/%d/assets?%s", g.owner, g.repo, u.Record.ID, query)
}
