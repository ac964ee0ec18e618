// Package archive compresses a build output directory into a single archive file.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation check.
var _ core.Archiver = (*Builder)(nil)

// lstatFS is implemented by filesystems that can stat without following symlinks.
type lstatFS interface {
	Lstat(name string) (fs.FileInfo, error)
}

// readLinkFS is implemented by filesystems that can read symlink targets.
type readLinkFS interface {
	ReadLink(name string) (string, error)
}

// Builder writes archives of a directory tree.
type Builder struct {
	logger *slog.Logger
	format core.Format
}

// NewBuilder creates a Builder for the given format.
// A nil logger disables logging.
func NewBuilder(logger *slog.Logger, format core.Format) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if format == "" {
		format = core.FormatTarZstd
	}
	return &Builder{logger: logger, format: format}
}

// Format returns the archive format the builder writes.
func (b *Builder) Format() core.Format {
	return b.format
}

// Build writes an archive of sourceDir to destPath.
//
// Entry names are relative to sourceDir. The archive is written to a
// temporary file next to destPath and renamed into place only once it is
// complete, so a failed build never leaves a partial archive at destPath.
func (b *Builder) Build(ctx context.Context, sourceDir, destPath string) (*core.ArchiveResult, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("stat source %s: %w", sourceDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s: %w", sourceDir, errNotDirectory)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	digester := digest.Canonical.Digester()
	cw := &countingWriter{w: io.MultiWriter(tmp, digester.Hash())}
	src := OSFS(sourceDir)
	skip := outputEntries(sourceDir, destPath)

	b.logger.Debug("building archive", "source", sourceDir, "dest", destPath, "format", b.format)

	var entries int
	switch b.format {
	case core.FormatEStargz:
		entries, err = b.writeEStargz(ctx, src, skip, cw)
	case core.FormatTarGzip, core.FormatTarZstd:
		entries, err = b.writeCompressedTar(ctx, src, skip, cw)
	default:
		err = fmt.Errorf("unsupported archive format %q", b.format)
	}
	if err != nil {
		return nil, err
	}

	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return nil, fmt.Errorf("move archive into place: %w", err)
	}
	committed = true

	result := &core.ArchiveResult{
		Path:      destPath,
		Size:      cw.n,
		Digest:    digester.Digest().String(),
		MediaType: b.format.MediaType(),
		Entries:   entries,
	}
	//nolint:gosec // G115: archive size is never negative
	b.logger.Info("archive built", "path", destPath, "entries", entries, "size", humanize.Bytes(uint64(result.Size)), "digest", result.Digest)
	return result, nil
}

// writeCompressedTar streams a tar of src through the format's compressor.
func (b *Builder) writeCompressedTar(ctx context.Context, src fs.FS, skip func(string) bool, w io.Writer) (int, error) {
	zw, err := b.compressor(w)
	if err != nil {
		return 0, fmt.Errorf("create compressor: %w", err)
	}

	tw := tar.NewWriter(zw)
	entries, err := writeTar(ctx, tw, src, skip, b.logger)
	if err != nil {
		zw.Close()
		return 0, err
	}
	if err := tw.Close(); err != nil {
		zw.Close()
		return 0, fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close compressor: %w", err)
	}
	return entries, nil
}

func (b *Builder) compressor(w io.Writer) (io.WriteCloser, error) {
	if b.format == core.FormatTarGzip {
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	}
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// writeEStargz builds an eStargz blob. estargz needs random access to the
// uncompressed tar, so the tar is staged in a temporary file first.
func (b *Builder) writeEStargz(ctx context.Context, src fs.FS, skip func(string) bool, w io.Writer) (int, error) {
	staging, err := os.CreateTemp("", "shipper-tar-*")
	if err != nil {
		return 0, fmt.Errorf("create staging tar: %w", err)
	}
	defer func() {
		staging.Close()
		os.Remove(staging.Name())
	}()

	tw := tar.NewWriter(staging)
	entries, err := writeTar(ctx, tw, src, skip, b.logger)
	if err != nil {
		return 0, err
	}
	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("close tar: %w", err)
	}

	size, err := staging.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("size staging tar: %w", err)
	}

	blob, err := estargz.Build(io.NewSectionReader(staging, 0, size))
	if err != nil {
		return 0, fmt.Errorf("build estargz: %w", err)
	}
	defer blob.Close()

	if err := copyWithContext(ctx, w, blob, nil); err != nil {
		return 0, fmt.Errorf("write estargz: %w", err)
	}
	b.logger.Debug("estargz built", "toc_digest", blob.TOCDigest().String(), "diff_id", blob.DiffID().String())
	return entries, nil
}

// outputEntries reports the entry names under sourceDir that belong to the
// archive being built: destPath itself and the temporary files Build writes
// next to it. It returns nil when destPath lies outside sourceDir.
func outputEntries(sourceDir, destPath string) func(string) bool {
	absSrc, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil
	}
	absDest, err := filepath.Abs(destPath)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(absSrc, filepath.Dir(absDest))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}

	dir := filepath.ToSlash(rel)
	base := filepath.Base(absDest)
	return func(name string) bool {
		if path.Dir(name) != dir {
			return false
		}
		file := path.Base(name)
		return file == base || (strings.HasPrefix(file, "."+base+".") && strings.HasSuffix(file, ".tmp"))
	}
}

// writeTar walks src and writes every entry to tw with slash-separated names
// relative to the root. Symlinks are stored as links. Sockets, devices and
// pipes are skipped, as is any name skip reports.
func writeTar(ctx context.Context, tw *tar.Writer, src fs.FS, skip func(string) bool, logger *slog.Logger) (int, error) {
	buf := make([]byte, copyBufferSize)
	entries := 0

	err := fs.WalkDir(src, ".", func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		if skip != nil && skip(name) {
			logger.Debug("skipping archive output", "path", name)
			return nil
		}

		info, err := lstat(src, name, d)
		if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}

		var link string
		switch mode := info.Mode(); {
		case mode&fs.ModeSymlink != 0:
			rl, ok := src.(readLinkFS)
			if !ok {
				return fmt.Errorf("read link %s: filesystem does not support symlinks", name)
			}
			if link, err = rl.ReadLink(name); err != nil {
				return fmt.Errorf("read link %s: %w", name, err)
			}
		case mode.IsDir(), mode.IsRegular():
		default:
			logger.Debug("skipping special file", "path", name, "mode", mode.String())
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("tar header %s: %w", name, err)
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uid, hdr.Gid, hdr.Uname, hdr.Gname = 0, 0, "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", name, err)
		}
		entries++

		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := src.Open(name)
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		if err := copyWithContext(ctx, tw, f, buf); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return entries, nil
}

func lstat(src fs.FS, name string, d fs.DirEntry) (fs.FileInfo, error) {
	if l, ok := src.(lstatFS); ok {
		return l.Lstat(name)
	}
	return d.Info()
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// errNotDirectory is returned when the archive source is a file.
var errNotDirectory = errors.New("not a directory")
