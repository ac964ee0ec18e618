package shipper

import (
	"fmt"
	"io"
	"os"

	"github.com/meigma/shipper/internal/progress"
)

// archiveOpener returns an open func for one provider attempt. Every call
// opens a fresh handle on the archive whose reads are reported as
// upload_progress events for provider.
func archiveOpener(artifact Artifact, provider string, emit func(Event)) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		f, err := os.Open(artifact.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", artifact.ArchivePath, err)
		}
		return progress.NewReader(f, artifact.Size, func(transferred, total int64) {
			emit(Event{
				Kind:             EventUploadProgress,
				Provider:         provider,
				BytesTransferred: transferred,
				TotalBytes:       total,
			})
		}), nil
	}
}
