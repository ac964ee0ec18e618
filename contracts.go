package shipper

import "github.com/meigma/shipper/core"

// Types re-exported from core package.
type (
	// Release identifies what is being published.
	Release = core.Release

	// Artifact describes the archive being published.
	Artifact = core.Artifact

	// ReleaseRecord is a release resolved on the source-control host.
	ReleaseRecord = core.ReleaseRecord

	// ProviderResult is the outcome of one provider attempt.
	ProviderResult = core.ProviderResult

	// Upload is handed to a provider for a single attempt.
	Upload = core.Upload

	// Provider is a destination that accepts the published archive.
	Provider = core.Provider

	// ReleaseRegistry resolves tag-based releases.
	ReleaseRegistry = core.ReleaseRegistry

	// ArchiveResult contains the output of building an archive.
	ArchiveResult = core.ArchiveResult

	// Archiver compresses a directory into one archive file.
	Archiver = core.Archiver

	// SecretTransform encrypts the serialized outcome of early releases.
	SecretTransform = core.SecretTransform

	// Event is a progress or result notification for one provider.
	Event = core.Event

	// EventKind names a point in a provider attempt's lifecycle.
	EventKind = core.EventKind

	// Observer receives events during a publish run.
	Observer = core.Observer

	// ObserverFunc adapts a function to the Observer interface.
	ObserverFunc = core.ObserverFunc
)

// Event kinds.
const (
	EventUploadBegin    = core.UploadBegin
	EventUploadSuccess  = core.UploadSuccess
	EventUploadFail     = core.UploadFail
	EventPinBegin       = core.PinBegin
	EventPinSuccess     = core.PinSuccess
	EventPinFail        = core.PinFail
	EventUploadProgress = core.UploadProgress
)

// DetectRelease derives the release identifier from CI context.
func DetectRelease(ref, sha string) (Release, error) {
	return core.DetectRelease(ref, sha)
}
