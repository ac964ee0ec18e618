package provider

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shipper/core"
)

// archiveFixture is a small on-disk archive handed to providers.
type archiveFixture struct {
	path    string
	content []byte
	opened  atomic.Int32
	closed  atomic.Int32
}

func newArchiveFixture(t *testing.T, content string) *archiveFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "waifu2x-v1.2.3-linux-cuda.tar.zst")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return &archiveFixture{path: path, content: []byte(content)}
}

func (a *archiveFixture) artifact() core.Artifact {
	return core.Artifact{
		ArchivePath: a.path,
		FileName:    filepath.Base(a.path),
		Project:     "waifu2x",
		Platform:    "linux",
		Device:      "cuda",
		Size:        int64(len(a.content)),
		Digest:      digest.FromBytes(a.content).String(),
		MediaType:   "application/zstd",
	}
}

func (a *archiveFixture) open() (io.ReadCloser, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, err
	}
	a.opened.Add(1)
	return &countingCloser{ReadCloser: f, closed: &a.closed}, nil
}

type countingCloser struct {
	io.ReadCloser
	closed *atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return c.ReadCloser.Close()
}

// eventLog records emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []core.Event
}

func (l *eventLog) emit(e core.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []core.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]core.EventKind, 0, len(l.events))
	for _, e := range l.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (a *archiveFixture) upload(release core.Release, record *core.ReleaseRecord, log *eventLog) *core.Upload {
	var emit func(core.Event)
	if log != nil {
		emit = log.emit
	}
	return core.NewUpload(a.artifact(), release, record, a.open, emit)
}
