package provider

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/meigma/shipper/core"
	"github.com/meigma/shipper/internal/transport"
)

// multipartFileField is the form field carrying the archive.
const multipartFileField = "file"

// postMultipart streams the archive to url as multipart/form-data with the
// given extra fields and headers, and returns the response body.
//
// The archive handle is opened here and closed before returning on every
// path, including when the request fails before the body is consumed.
func postMultipart(ctx context.Context, client *http.Client, url string, u *core.Upload, fields, headers map[string]string) ([]byte, error) {
	file, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer file.Close()
		pw.CloseWithError(writeMultipart(mw, u.Artifact.FileName, file, fields))
	}()

	body, err := doMultipart(ctx, client, url, pr, mw.FormDataContentType(), headers)

	// Unblock the writer if the request stopped reading early, then wait
	// for it so the archive handle is released before returning.
	pr.CloseWithError(io.ErrClosedPipe)
	<-done

	return body, err
}

func writeMultipart(mw *multipart.Writer, fileName string, file io.Reader, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	part, err := mw.CreateFormFile(multipartFileField, fileName)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	return mw.Close()
}

func doMultipart(ctx context.Context, client *http.Client, url string, body io.Reader, contentType string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := transport.CheckResponse(resp); err != nil {
		return nil, err
	}
	return readBody(resp)
}
