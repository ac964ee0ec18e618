package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shipper/core"
)

func TestList(t *testing.T) {
	t.Parallel()

	for _, format := range []core.Format{core.FormatTarZstd, core.FormatTarGzip, core.FormatEStargz} {
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			src := buildTree(t)
			dest := filepath.Join(t.TempDir(), "out."+format.Extension())
			_, err := NewBuilder(nil, format).Build(context.Background(), src, dest)
			require.NoError(t, err)

			entries, err := List(dest, format)
			require.NoError(t, err)

			byName := make(map[string]Entry)
			for _, e := range entries {
				byName[e.Name] = e
			}
			assert.Len(t, byName, 4)

			if e, ok := byName["waifu2x"]; assert.True(t, ok) {
				assert.Equal(t, int64(len("#!/bin/sh\necho hi\n")), e.Size)
				assert.False(t, e.IsDir())
				assert.Equal(t, os.FileMode(0o755), e.Mode.Perm())
			}
			if e, ok := byName["models/upconv_7"]; assert.True(t, ok) {
				assert.True(t, e.IsDir())
			}
			assert.Contains(t, byName, "models/upconv_7/scale2.0x.npz")
		})
	}
}

func TestList_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := List(filepath.Join(t.TempDir(), "nope.tar.zst"), core.FormatTarZstd)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("not an archive", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "junk.tar.gz")
		require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0o644))

		_, err := List(path, core.FormatTarGzip)
		assert.ErrorIs(t, err, errInvalidArchive)

		_, err = List(path, core.FormatEStargz)
		assert.ErrorIs(t, err, errInvalidArchive)
	})

	t.Run("unsupported format", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "x")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		_, err := List(path, core.Format("7z"))
		assert.Error(t, err)
	})
}

func TestTrimDirSlash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "models", trimDirSlash("models/"))
	assert.Equal(t, "waifu2x", trimDirSlash("waifu2x"))
	assert.Equal(t, "/", trimDirSlash("/"))
}
