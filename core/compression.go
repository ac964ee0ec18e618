package core

import (
	"fmt"
	"strings"
)

// Format selects the archive container and compression.
type Format string

// Supported archive formats.
const (
	// FormatTarZstd is a tar stream compressed with zstd (default).
	FormatTarZstd Format = "tar.zst"
	// FormatTarGzip is a tar stream compressed with gzip.
	FormatTarGzip Format = "tar.gz"
	// FormatEStargz is a seekable eStargz tar.gz.
	FormatEStargz Format = "estargz"
)

// ParseFormat parses a format name. The empty string selects FormatTarZstd.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "zstd", FormatTarZstd:
		return FormatTarZstd, nil
	case "gzip", "tgz", FormatTarGzip:
		return FormatTarGzip, nil
	case "stargz", FormatEStargz:
		return FormatEStargz, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q (supported: tar.zst, tar.gz, estargz)", s)
	}
}

// Extension returns the file extension for the format, without a leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatTarGzip:
		return "tar.gz"
	case FormatEStargz:
		return "stargz.tar.gz"
	default:
		return "tar.zst"
	}
}

// MediaType returns the media type reported for archives of this format.
func (f Format) MediaType() string {
	switch f {
	case FormatTarGzip, FormatEStargz:
		return "application/gzip"
	default:
		return "application/zstd"
	}
}

// FormatFromName infers the format from an archive file name.
func FormatFromName(name string) (Format, error) {
	switch {
	case strings.HasSuffix(name, "."+FormatEStargz.Extension()):
		return FormatEStargz, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGzip, nil
	case strings.HasSuffix(name, ".tar.zst"):
		return FormatTarZstd, nil
	default:
		return "", fmt.Errorf("cannot infer archive format from %q", name)
	}
}
