// Package progress tracks bytes read from an archive during an upload.
package progress

import (
	"errors"
	"io"
)

// Callback is called to report progress during an upload.
type Callback func(bytesTransferred, totalBytes int64)

// minStep is the smallest number of bytes between two callbacks.
const minStep = 256 * 1024

// Reader wraps an upload body and reports cumulative bytes read.
//
// Callbacks are throttled to roughly one per percent of total (and never
// closer than 256KiB apart); the final callback is always delivered when the
// underlying reader reaches EOF.
type Reader struct {
	rc       io.ReadCloser
	callback Callback
	total    int64
	read     int64
	reported int64
	step     int64
}

// NewReader creates a progress-tracking reader over rc.
// total is the expected size, or -1 when unknown.
func NewReader(rc io.ReadCloser, total int64, callback Callback) *Reader {
	step := int64(minStep)
	if total > 0 && total/100 > step {
		step = total / 100
	}
	return &Reader{
		rc:       rc,
		callback: callback,
		total:    total,
		step:     step,
	}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.read += int64(n)
	}
	if r.callback != nil && r.read != r.reported {
		if r.read-r.reported >= r.step || errors.Is(err, io.EOF) || r.read == r.total {
			r.reported = r.read
			r.callback(r.read, r.total)
		}
	}
	return n, err
}

// Close closes the underlying reader.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// BytesRead returns the number of bytes read so far.
func (r *Reader) BytesRead() int64 {
	return r.read
}
