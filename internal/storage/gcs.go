package storage

import (
	"context"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSStore keeps blobs private and hands out short-lived signed GET URLs.
type GCSStore struct {
	client *gcs.Client
	bucket string
	ttl    time.Duration
}

func NewGCSStore(ctx context.Context, bucket string, urlTTL time.Duration) (*GCSStore, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket, ttl: urlTTL}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	obj := s.client.Bucket(s.bucket).Object(key)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *GCSStore) URL(_ context.Context, key string) (string, error) {
	return s.client.Bucket(s.bucket).SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
	})
}
