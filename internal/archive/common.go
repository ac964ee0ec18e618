package archive

import (
	"context"
	"errors"
	"io"
)

// copyBufferSize is the chunk size between context checks while copying.
const copyBufferSize = 128 * 1024

// copyWithContext copies src to dst, checking ctx between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) error {
	if len(buf) < copyBufferSize {
		buf = make([]byte, copyBufferSize)
	}
	buf = buf[:copyBufferSize]
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
