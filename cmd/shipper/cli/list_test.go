package cli

import (
	"bytes"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meigma/shipper/internal/archive"
)

func TestFormatMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode fs.FileMode
		want string
	}{
		{mode: 0o644, want: "-rw-r--r--"},
		{mode: 0o755, want: "-rwxr-xr-x"},
		{mode: fs.ModeDir | 0o755, want: "drwxr-xr-x"},
		{mode: fs.ModeSymlink | 0o777, want: "lrwxrwxrwx"},
		{mode: 0, want: "----------"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatMode(tt.mode))
		})
	}
}

func TestPrintListing(t *testing.T) {
	t.Parallel()

	entries := []archive.Entry{
		{Name: "models", Mode: fs.ModeDir | 0o755},
		{Name: "models/noise0.bin", Size: 2048, Mode: 0o644},
		{Name: "run", Mode: fs.ModeSymlink | 0o777, LinkName: "waifu2x"},
	}

	var short bytes.Buffer
	printShortListing(&short, entries)
	assert.Equal(t, "models\nmodels/noise0.bin\nrun\n", short.String())

	var long bytes.Buffer
	printLongListing(&long, entries, false)
	assert.Contains(t, long.String(), "drwxr-xr-x  -     models\n")
	assert.Contains(t, long.String(), "-rw-r--r--  2048  models/noise0.bin\n")
	assert.Contains(t, long.String(), "run -> waifu2x")

	var human bytes.Buffer
	printLongListing(&human, entries, true)
	assert.Contains(t, human.String(), "2.0 KiB")
}
