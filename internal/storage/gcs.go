package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps artifacts as objects in a bucket, optionally under a key
// prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStore(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Save(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}

	w := s.client.Bucket(s.bucket).Object(s.name(key)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("finalize upload: %w", err)
	}

	return s.object(key, w.Attrs()), nil
}

func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(s.name(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("create reader: %w", err)
	}
	return r, nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	query := prefix
	if s.prefix != "" {
		query = s.prefix + "/" + prefix
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: query})

	var objects []Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		key := strings.TrimPrefix(strings.TrimPrefix(attrs.Name, s.prefix), "/")
		objects = append(objects, s.object(key, attrs))
	}

	return objects, nil
}

func (s *GCSStore) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *GCSStore) object(key string, attrs *storage.ObjectAttrs) Object {
	o := Object{
		Key:      key,
		Location: fmt.Sprintf("gs://%s/%s", s.bucket, s.name(key)),
	}
	if attrs != nil {
		o.Size = attrs.Size
		o.ContentType = attrs.ContentType
		o.Updated = attrs.Updated
	}
	return o
}
