package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	orascreds "oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation check.
var _ core.Provider = (*OCI)(nil)

// ArtifactType is the artifact type of manifests pushed by the OCI provider.
const ArtifactType = "application/vnd.shipper.archive.v1"

// Layer media types by archive media type.
const (
	layerMediaTypeZstd = "application/vnd.oci.image.layer.v1.tar+zstd"
	layerMediaTypeGzip = "application/vnd.oci.image.layer.v1.tar+gzip"
)

// maxTagLength is the longest tag an OCI distribution registry accepts.
const maxTagLength = 128

var invalidTagChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// OCIOption configures an OCI provider.
type OCIOption func(*OCI)

// WithOCICredentials authenticates with a static username and password.
// Without them, Docker config credentials are used.
func WithOCICredentials(username, password string) OCIOption {
	return func(o *OCI) {
		o.username = username
		o.password = password
	}
}

// WithPlainHTTP talks to the registry over plain HTTP.
func WithPlainHTTP(plainHTTP bool) OCIOption {
	return func(o *OCI) {
		o.plainHTTP = plainHTTP
	}
}

// OCI pushes the archive to an OCI registry as a single-layer artifact,
// tagged by release, platform and device.
type OCI struct {
	name      string
	repo      *remote.Repository
	username  string
	password  string
	plainHTTP bool
}

// NewOCI creates an OCI provider for a repository reference such as
// ghcr.io/org/app. Any tag in the reference is ignored.
func NewOCI(name, ref string, client *http.Client, opts ...OCIOption) (*OCI, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("parse repository %q: %w", ref, err)
	}

	o := &OCI{name: name, repo: repo}
	for _, opt := range opts {
		opt(o)
	}

	store, err := registryCredentials(repo.Reference.Registry, o.username, o.password)
	if err != nil {
		return nil, err
	}
	repo.PlainHTTP = o.plainHTTP
	repo.Client = &auth.Client{
		Client:     client,
		Cache:      auth.NewCache(),
		Credential: orascreds.Credential(store),
	}
	return o, nil
}

// Name implements core.Provider.
func (o *OCI) Name() string { return o.name }

// Upload implements core.Provider.
func (o *OCI) Upload(ctx context.Context, u *core.Upload) (json.RawMessage, error) {
	dgst, err := digest.Parse(u.Artifact.Digest)
	if err != nil {
		return nil, fmt.Errorf("archive digest: %w", err)
	}

	layer := ocispec.Descriptor{
		MediaType: layerMediaType(u.Artifact.MediaType),
		Digest:    dgst,
		Size:      u.Artifact.Size,
		Annotations: map[string]string{
			ocispec.AnnotationTitle: u.Artifact.FileName,
		},
	}

	exists, err := o.repo.Exists(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("check blob: %w", mapOCIError(err))
	}
	if !exists {
		file, err := u.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		err = o.repo.Push(ctx, layer, file)
		file.Close()
		if err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
			return nil, fmt.Errorf("push blob: %w", mapOCIError(err))
		}
	}

	manifest, err := oras.PackManifest(ctx, o.repo, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layer},
		ManifestAnnotations: map[string]string{
			ocispec.AnnotationVersion: u.Release.ID,
			ocispec.AnnotationTitle:   u.Artifact.FileName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("push manifest: %w", mapOCIError(err))
	}

	tag := OCITag(u.Release.ID, u.Artifact.Platform, u.Artifact.Device)
	if err := o.repo.Tag(ctx, manifest, tag); err != nil {
		return nil, fmt.Errorf("tag %s: %w", tag, mapOCIError(err))
	}

	return json.Marshal(struct {
		Reference string `json:"reference"`
		Digest    string `json:"digest"`
	}{o.repo.Reference.Registry + "/" + o.repo.Reference.Repository + ":" + tag, manifest.Digest.String()})
}

// OCITag builds a valid OCI tag from the non-empty parts joined with "-".
func OCITag(parts ...string) string {
	var tag string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if tag != "" {
			tag += "-"
		}
		tag += p
	}
	tag = invalidTagChars.ReplaceAllString(tag, "-")
	if tag == "" || tag[0] == '.' || tag[0] == '-' {
		tag = "_" + tag
	}
	if len(tag) > maxTagLength {
		tag = tag[:maxTagLength]
	}
	return tag
}

func layerMediaType(archiveMediaType string) string {
	if archiveMediaType == "application/gzip" {
		return layerMediaTypeGzip
	}
	return layerMediaTypeZstd
}

// mapOCIError converts ORAS registry errors to shipper sentinel errors.
func mapOCIError(err error) error {
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}

	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", core.ErrNotFound, err)
		}
		for _, e := range errResp.Errors {
			switch e.Code {
			case errcode.ErrorCodeUnauthorized, errcode.ErrorCodeDenied:
				return fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
			case errcode.ErrorCodeNameUnknown, errcode.ErrorCodeManifestUnknown, errcode.ErrorCodeBlobUnknown:
				return fmt.Errorf("%w: %w", core.ErrNotFound, err)
			}
		}
	}
	return err
}
