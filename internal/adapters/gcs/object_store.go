// Package gcs stores product images in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"merchpos/internal/domain"
)

// Config configures the object store.
type Config struct {
	Bucket          string
	CredentialsJSON string
	PublicBaseURL   string
}

// ObjectStore implements domain.ObjectStore over one bucket.
type ObjectStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// New opens a storage client. Explicit credentials JSON wins; otherwise application default credentials are used.
func New(ctx context.Context, cfg Config) (*ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", cfg.Bucket, err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket, baseURL: cfg.PublicBaseURL}, nil
}

var _ domain.ObjectStore = (*ObjectStore)(nil)

// Put uploads r to name and returns the object's public URL.
func (s *ObjectStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return publicURL(s.baseURL, s.bucket, name), nil
}

// Delete removes name. Deleting a missing object is not an error.
func (s *ObjectStore) Delete(ctx context.Context, name string) error {
	err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *ObjectStore) Close() error {
	return s.client.Close()
}

func publicURL(baseURL, bucket, name string) string {
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com"
	}
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + "/" + bucket + "/" + strings.Join(segments, "/")
}
