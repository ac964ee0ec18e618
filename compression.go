package shipper

import "github.com/meigma/shipper/core"

// Format selects the archive container and compression.
// Re-exported from core package.
type Format = core.Format

// Supported archive formats.
const (
	FormatTarZstd = core.FormatTarZstd
	FormatTarGzip = core.FormatTarGzip
	FormatEStargz = core.FormatEStargz
)

// ParseFormat parses a format name. The empty string selects FormatTarZstd.
func ParseFormat(s string) (Format, error) {
	return core.ParseFormat(s)
}

// FormatFromName infers the format from an archive file name.
func FormatFromName(name string) (Format, error) {
	return core.FormatFromName(name)
}
