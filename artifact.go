package shipper

import (
	"path/filepath"
	"strings"
)

// ArtifactSpec describes the build output to publish.
type ArtifactSpec struct {
	Project  string
	Platform string
	Device   string

	// SourceDir is the build output directory.
	SourceDir string
	// OutputDir is where the archive is written. Defaults to the parent of
	// SourceDir.
	OutputDir string

	Format Format
}

// NewArtifact names the archive for release as
// <project>-<release>-<platform>-<device>.<ext>. Empty name parts are
// omitted and path separators in the release ID are replaced.
func NewArtifact(spec ArtifactSpec, release Release) Artifact {
	if spec.Format == "" {
		spec.Format = FormatTarZstd
	}

	var parts []string
	for _, p := range []string{spec.Project, release.ID, spec.Platform, spec.Device} {
		if p = strings.ReplaceAll(p, "/", "-"); p != "" {
			parts = append(parts, p)
		}
	}
	fileName := strings.Join(parts, "-") + "." + spec.Format.Extension()

	outDir := spec.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(filepath.Clean(spec.SourceDir))
	}

	return Artifact{
		SourceDir:   spec.SourceDir,
		ArchivePath: filepath.Join(outDir, fileName),
		FileName:    fileName,
		Project:     spec.Project,
		Platform:    spec.Platform,
		Device:      spec.Device,
		MediaType:   spec.Format.MediaType(),
	}
}
