package archive

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Compile-time interface implementation checks.
var (
	_ fs.FS        = (*osFS)(nil)
	_ fs.ReadDirFS = (*osFS)(nil)
	_ fs.StatFS    = (*osFS)(nil)
	_ lstatFS      = (*osFS)(nil)
	_ readLinkFS   = (*osFS)(nil)
)

// OSFS returns a filesystem rooted at the given directory.
//
// Archive entries are named relative to this root, which is how the build
// directory's contents end up at the top level of the archive without
// changing the process working directory. Unlike os.DirFS it reports
// symlinks via Lstat and ReadLink instead of following them.
func OSFS(root string) *osFS {
	return &osFS{root: root}
}

type osFS struct {
	root string
}

// path validates name and joins it to the root.
func (o *osFS) path(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return filepath.Join(o.root, filepath.FromSlash(name)), nil
}

// Open implements fs.FS.
func (o *osFS) Open(name string) (fs.File, error) {
	p, err := o.path("open", name)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: name is validated by fs.ValidPath and rooted to o.root
	return os.Open(p)
}

// ReadDir implements fs.ReadDirFS.
func (o *osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := o.path("readdir", name)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(p)
}

// Stat implements fs.StatFS.
func (o *osFS) Stat(name string) (fs.FileInfo, error) {
	p, err := o.path("stat", name)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// Lstat returns FileInfo for name without following symlinks.
func (o *osFS) Lstat(name string) (fs.FileInfo, error) {
	p, err := o.path("lstat", name)
	if err != nil {
		return nil, err
	}
	return os.Lstat(p)
}

// ReadLink returns the target of the named symlink.
func (o *osFS) ReadLink(name string) (string, error) {
	p, err := o.path("readlink", name)
	if err != nil {
		return "", err
	}
	return os.Readlink(p)
}
