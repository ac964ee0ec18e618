// Package core provides the shared types and interfaces for shipper.
//
// This package exists to break import cycles between the root shipper package
// and internal implementation packages. The shipper package re-exports the
// public types from this package, so external users should import shipper
// directly, not shipper/core.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Sentinel errors for common failure conditions.
var (
	// ErrNotFound indicates the requested release or resource was not found.
	ErrNotFound = errors.New("shipper: not found")

	// ErrUnauthorized indicates authentication failed.
	ErrUnauthorized = errors.New("shipper: unauthorized")

	// ErrNoRelease indicates neither a tag ref nor a commit sha was available.
	ErrNoRelease = errors.New("shipper: no tag ref or commit sha in CI context")

	// ErrRegistryExhausted indicates the release find-or-create loop hit its attempt cap.
	ErrRegistryExhausted = errors.New("shipper: release registry attempts exhausted")

	// ErrNoSecret indicates an early release has no encryption secret configured.
	ErrNoSecret = errors.New("shipper: no encryption secret configured")

	// ErrUnknownProvider indicates a provider kind that shipper does not implement.
	ErrUnknownProvider = errors.New("shipper: unknown provider kind")
)

// tagRefPrefix is the git ref prefix of tag pushes.
const tagRefPrefix = "refs/tags/"

// shortSHALength is the number of commit hash characters used for commit runs.
const shortSHALength = 7

// Release identifies what is being published.
type Release struct {
	// ID is the tag name for tag-triggered runs, or a short commit hash.
	ID string
	// Tagged reports whether the run was triggered by a tag push.
	Tagged bool
}

// DetectRelease derives the release identifier from CI context.
// A ref of the form refs/tags/<tag> yields a tagged release; otherwise the
// first seven characters of sha are used.
func DetectRelease(ref, sha string) (Release, error) {
	if tag, ok := strings.CutPrefix(ref, tagRefPrefix); ok && tag != "" {
		return Release{ID: tag, Tagged: true}, nil
	}
	if sha == "" {
		return Release{}, ErrNoRelease
	}
	if len(sha) > shortSHALength {
		sha = sha[:shortSHALength]
	}
	return Release{ID: sha}, nil
}

// Early reports whether the release belongs to the early-access channel,
// whose published results must be encrypted.
func (r Release) Early() bool {
	return strings.Contains(r.ID, "early")
}

// Artifact describes the archive being published.
type Artifact struct {
	// SourceDir is the build output directory to compress.
	SourceDir string
	// ArchivePath is where the archive is written.
	ArchivePath string
	// FileName is the archive's base name, used as the published asset name.
	FileName string

	// Project, Platform and Device identify the build. Providers that tag
	// artifacts by build (OCI) use them.
	Project  string
	Platform string
	Device   string

	// Populated once the archive has been built.
	Size      int64
	Digest    string
	MediaType string
}

// ArchiveResult contains the output of building an archive.
type ArchiveResult struct {
	// Path is the final location of the archive.
	Path string
	// Size is the archive size in bytes.
	Size int64
	// Digest is the sha256 digest of the archive (sha256:...).
	Digest string
	// MediaType is the media type of the archive format.
	MediaType string
	// Entries is the number of filesystem entries written.
	Entries int
}

// ReleaseRecord is a release resolved on the source-control host.
type ReleaseRecord struct {
	ID        int64
	Tag       string
	UploadURL string
}

// ProviderResult is the outcome of one provider attempt.
// A nil Err means success.
type ProviderResult struct {
	Provider string
	Payload  json.RawMessage
	Err      error
}

// OK reports whether the attempt succeeded.
func (r ProviderResult) OK() bool { return r.Err == nil }

// MarshalJSON renders a success as its raw payload and a failure as an
// object naming the provider and the reason.
func (r ProviderResult) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Provider string `json:"provider"`
			Error    string `json:"error"`
		}{r.Provider, r.Err.Error()})
	}
	if len(r.Payload) == 0 {
		return []byte("null"), nil
	}
	return r.Payload, nil
}

// Upload is handed to a provider for a single attempt.
type Upload struct {
	Artifact Artifact
	Release  Release
	// Record is set for providers that need a source-control release.
	Record *ReleaseRecord

	open func() (io.ReadCloser, error)
	emit func(Event)
}

// NewUpload creates an Upload. open must return a fresh, independent read
// handle on every call; emit may be nil.
func NewUpload(artifact Artifact, release Release, record *ReleaseRecord, open func() (io.ReadCloser, error), emit func(Event)) *Upload {
	return &Upload{
		Artifact: artifact,
		Release:  release,
		Record:   record,
		open:     open,
		emit:     emit,
	}
}

// Open returns a new read handle on the archive. The caller must close it.
func (u *Upload) Open() (io.ReadCloser, error) {
	return u.open()
}

// Emit reports a lifecycle event for the attempt.
func (u *Upload) Emit(e Event) {
	if u.emit != nil {
		u.emit(e)
	}
}

// Provider is a destination that accepts the published archive.
// This interface is implemented by internal/provider.
type Provider interface {
	// Name identifies the provider in events, logs and results.
	Name() string

	// Upload publishes the archive and returns the provider's payload.
	Upload(ctx context.Context, u *Upload) (json.RawMessage, error)
}

// ReleaseBound is implemented by providers that attach to a source-control
// release and therefore need a ReleaseRecord before uploading.
type ReleaseBound interface {
	NeedsRelease() bool
}

// ReleaseRegistry resolves tag-based releases.
// This interface is implemented by internal/registry.
type ReleaseRegistry interface {
	// Resolve finds or creates the release for tag.
	Resolve(ctx context.Context, tag string) (ReleaseRecord, error)
}

// Archiver compresses a directory into one archive file.
// This interface is implemented by internal/archive.
type Archiver interface {
	// Build writes an archive of sourceDir to destPath.
	Build(ctx context.Context, sourceDir, destPath string) (*ArchiveResult, error)
}

// SecretTransform encrypts the serialized outcome of early releases.
// This interface is implemented by internal/secret.
type SecretTransform interface {
	Encrypt(plaintext []byte) (string, error)
}
