package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	s3creds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation check.
var _ core.Provider = (*S3)(nil)

// S3Config configures an S3-compatible bucket destination.
type S3Config struct {
	// Endpoint is the service host, optionally with scheme
	// (s3.amazonaws.com, http://localhost:9000).
	Endpoint string
	// AccessKey and SecretKey are static credentials. When both are empty,
	// AWS_* and MINIO_* environment variables are used.
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to object keys.
	Prefix string
	Region string
	// Insecure uses plain HTTP.
	Insecure bool
}

// S3 stores the archive as an object under <prefix>/<release>/<file>.
type S3 struct {
	name   string
	client *minio.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 provider. rt may be nil to use the minio default transport.
func NewS3(name string, cfg S3Config, rt http.RoundTripper) (*S3, error) {
	endpoint := cfg.Endpoint
	secure := !cfg.Insecure
	if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint, secure = rest, false
	} else if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint = rest
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}

	creds := s3creds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	if cfg.AccessKey == "" && cfg.SecretKey == "" {
		creds = s3creds.NewChainCredentials([]s3creds.Provider{
			&s3creds.EnvAWS{},
			&s3creds.EnvMinio{},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     creds,
		Secure:    secure,
		Region:    cfg.Region,
		Transport: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &S3{
		name:   name,
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Name implements core.Provider.
func (s *S3) Name() string { return s.name }

// Upload implements core.Provider.
func (s *S3) Upload(ctx context.Context, u *core.Upload) (json.RawMessage, error) {
	key := s.objectKey(u.Release.ID, u.Artifact.FileName)

	file, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	info, err := s.client.PutObject(ctx, s.bucket, key, file, u.Artifact.Size, minio.PutObjectOptions{
		ContentType: contentType(u.Artifact),
		UserMetadata: map[string]string{
			"release": u.Release.ID,
			"digest":  u.Artifact.Digest,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", s.bucket, key, mapS3Error(err))
	}

	return json.Marshal(struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
		ETag   string `json:"etag"`
		URL    string `json:"location"`
	}{info.Bucket, info.Key, info.ETag, s.client.EndpointURL().JoinPath(info.Bucket, info.Key).String()})
}

func (s *S3) objectKey(releaseID, fileName string) string {
	return path.Join(s.prefix, releaseID, fileName)
}

// mapS3Error converts S3 error responses to shipper sentinel errors.
func mapS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", core.ErrUnauthorized, err)
	case resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	}
	return err
}
