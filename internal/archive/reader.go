package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/containerd/stargz-snapshotter/estargz/zstdchunked"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/shipper/core"
)

// Entry is one member of a built archive.
type Entry struct {
	Name     string
	Size     int64
	Mode     fs.FileMode
	LinkName string
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Mode.IsDir() }

// List returns the entries of an archive written by Builder, in archive
// order. eStargz archives are listed from their table of contents; the
// other formats are decompressed and scanned.
func List(path string, format core.Format) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if format == core.FormatEStargz {
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat archive: %w", err)
		}
		return listEStargz(f, info.Size())
	}

	var r io.Reader
	switch format {
	case core.FormatTarGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidArchive, err)
		}
		defer zr.Close()
		r = zr
	case core.FormatTarZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidArchive, err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unsupported archive format %q", format)
	}
	return listTar(tar.NewReader(r))
}

func listTar(tr *tar.Reader) ([]Entry, error) {
	var entries []Entry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidArchive, err)
		}
		entries = append(entries, Entry{
			Name:     trimDirSlash(hdr.Name),
			Size:     hdr.Size,
			Mode:     hdr.FileInfo().Mode(),
			LinkName: hdr.Linkname,
		})
	}
}

// listEStargz walks the TOC of an eStargz blob, omitting the synthetic root
// and the prefetch landmark files the builder adds.
func listEStargz(ra io.ReaderAt, size int64) ([]Entry, error) {
	esr, err := estargz.Open(io.NewSectionReader(ra, 0, size),
		estargz.WithDecompressors(&zstdchunked.Decompressor{}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidArchive, err)
	}

	root, ok := esr.Lookup("")
	if !ok {
		return nil, nil
	}

	var entries []Entry
	var collect func(e *estargz.TOCEntry)
	collect = func(e *estargz.TOCEntry) {
		if e.Name != "" && !isLandmark(e.Name) {
			entries = append(entries, Entry{
				Name:     trimDirSlash(e.Name),
				Size:     e.Size,
				Mode:     e.Stat().Mode(),
				LinkName: e.LinkName,
			})
		}
		if e.Type == "dir" {
			e.ForeachChild(func(_ string, child *estargz.TOCEntry) bool {
				collect(child)
				return true
			})
		}
	}
	collect(root)
	return entries, nil
}

func isLandmark(name string) bool {
	return name == estargz.PrefetchLandmark || name == estargz.NoPrefetchLandmark
}

func trimDirSlash(name string) string {
	if len(name) > 1 && name[len(name)-1] == '/' {
		return name[:len(name)-1]
	}
	return name
}

// errInvalidArchive is returned when an archive cannot be decoded.
var errInvalidArchive = errors.New("invalid archive")
