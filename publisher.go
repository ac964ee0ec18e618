package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/iter"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/archive"
)

// errNoRegistry is returned when a selected provider needs a release record
// and no registry was configured.
var errNoRegistry = errors.New("no release registry configured")

// Publisher runs publish pipelines.
type Publisher struct {
	archiver  Archiver
	registry  ReleaseRegistry
	secret    SecretTransform
	observers []Observer
	logger    *slog.Logger
	format    Format
}

// NewPublisher creates a Publisher.
//
// By default archives are written as tar.zst, no release registry is
// configured and early releases cannot be published until a secret is set.
func NewPublisher(opts ...Option) (*Publisher, error) {
	p := &Publisher{
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.archiver == nil {
		p.archiver = archive.NewBuilder(p.logger, p.format)
	}
	return p, nil
}

// Publish compresses artifact.SourceDir and uploads the archive to the
// providers selected from specs.
//
// A missing source directory is not an error: the outcome is StatusSkipped
// and nothing is built or uploaded. Archive, registry and encryption
// failures are fatal and returned as errors. Provider failures are not;
// they are recorded in the outcome and the run continues.
func (p *Publisher) Publish(ctx context.Context, artifact Artifact, release Release, specs []ProviderSpec) (*Outcome, error) {
	if _, err := os.Stat(artifact.SourceDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("nothing to publish", "source", artifact.SourceDir)
			return &Outcome{Status: StatusSkipped, Release: release}, nil
		}
		return nil, fmt.Errorf("stat source %s: %w", artifact.SourceDir, err)
	}

	if release.Early() && p.secret == nil {
		return nil, fmt.Errorf("release %s: %w", release.ID, ErrNoSecret)
	}

	sel := selectProviders(specs, release)
	p.logger.Debug("providers selected", "release", release.ID, "tagged", release.Tagged,
		"primary", len(sel.primary), "secondary", len(sel.secondary))

	res, err := p.archiver.Build(ctx, artifact.SourceDir, artifact.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	artifact.ArchivePath = res.Path
	artifact.Size = res.Size
	artifact.Digest = res.Digest
	artifact.MediaType = res.MediaType

	var record *ReleaseRecord
	if sel.needsRelease() {
		if p.registry == nil {
			return nil, fmt.Errorf("resolve release %s: %w", release.ID, errNoRegistry)
		}
		rec, err := p.registry.Resolve(ctx, release.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve release %s: %w", release.ID, err)
		}
		record = &rec
	}

	results := make([]ProviderResult, 0, sel.len())
	for _, prov := range sel.primary {
		results = append(results, p.attempt(ctx, prov, artifact, release, record))
	}
	if len(sel.secondary) > 0 {
		mapper := iter.Mapper[Provider, ProviderResult]{MaxGoroutines: len(sel.secondary)}
		results = append(results, mapper.Map(sel.secondary, func(prov *Provider) ProviderResult {
			return p.attempt(ctx, *prov, artifact, release, record)
		})...)
	}

	outcome := &Outcome{
		Status:   StatusSuccess,
		Release:  release,
		Artifact: artifact,
		Results:  results,
	}
	if outcome.Failures() > 0 {
		outcome.Status = StatusPartialFailure
	}

	if release.Early() {
		plain, err := marshalResults(results)
		if err != nil {
			return nil, fmt.Errorf("encode results: %w", err)
		}
		enc, err := p.secret.Encrypt(plain)
		if err != nil {
			return nil, fmt.Errorf("encrypt results: %w", err)
		}
		outcome.Encrypted = enc
	}

	//nolint:gosec // G115: archive size is never negative
	p.logger.Info("publish finished", "release", release.ID, "status", outcome.Status,
		"providers", len(results), "failures", outcome.Failures(),
		"size", humanize.Bytes(uint64(artifact.Size)), "encrypted", outcome.IsEncrypted())
	return outcome, nil
}

// attempt runs one provider and converts every failure, including a panic,
// into a failure result.
func (p *Publisher) attempt(ctx context.Context, prov Provider, artifact Artifact, release Release, record *ReleaseRecord) ProviderResult {
	name := prov.Name()
	p.emit(Event{Kind: EventUploadBegin, Provider: name})

	start := time.Now()
	u := core.NewUpload(artifact, release, record, archiveOpener(artifact, name, p.emit), p.emit)
	payload, err := safeUpload(ctx, prov, u)
	if err != nil {
		p.logger.Error("upload failed", "provider", name, "error", err, "duration", time.Since(start))
		p.emit(Event{Kind: EventUploadFail, Provider: name, Err: err})
		return ProviderResult{Provider: name, Err: err}
	}

	p.logger.Info("upload succeeded", "provider", name, "duration", time.Since(start))
	p.emit(Event{Kind: EventUploadSuccess, Provider: name, Payload: payload})
	return ProviderResult{Provider: name, Payload: payload}
}

func safeUpload(ctx context.Context, prov Provider, u *Upload) (payload json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return prov.Upload(ctx, u)
}

func (p *Publisher) emit(e Event) {
	for _, o := range p.observers {
		o.OnEvent(e)
	}
}
