package download

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// GCSSource reads gs://bucket/object URLs from Google Cloud Storage. The
// client is created on first use so hosts without credentials only fail when
// such a URL is actually opened.
type GCSSource struct {
	once      sync.Once
	client    *storage.Client
	clientErr error

	newClient func(ctx context.Context) (*storage.Client, error)
}

// NewGCSSource returns a GCSSource using application default credentials.
func NewGCSSource() *GCSSource {
	return &GCSSource{
		newClient: func(ctx context.Context) (*storage.Client, error) {
			return storage.NewClient(ctx)
		},
	}
}

// NewGCSSourceWithClient wraps an existing client.
func NewGCSSourceWithClient(client *storage.Client) *GCSSource {
	s := &GCSSource{client: client}
	s.once.Do(func() {})
	return s
}

// Fetch implements Source.
func (s *GCSSource) Fetch(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, object, err := splitObjectURL(u)
	if err != nil {
		return nil, err
	}

	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	switch {
	case err == nil:
		return r, nil

	case errors.Is(err, storage.ErrObjectNotExist):
		return nil, errors.Wrapf(os.ErrNotExist, "object gs://%s/%s", bucket, object)

	default:
		return nil, errors.Wrap(err, "get object reader")
	}
}

// Close releases the client if one was created.
func (s *GCSSource) Close() error {
	if s.client == nil {
		return nil
	}
	return errors.Wrap(s.client.Close(), "close GCS client")
}

func (s *GCSSource) getClient() (*storage.Client, error) {
	s.once.Do(func() {
		// The client outlives any single request.
		s.client, s.clientErr = s.newClient(context.Background())
		if s.clientErr != nil {
			s.clientErr = errors.Wrap(s.clientErr, "create GCS client")
		}
	})
	return s.client, s.clientErr
}

func splitObjectURL(u *url.URL) (bucket, object string, err error) {
	if u == nil || u.Scheme != "gs" || u.Host == "" {
		return "", "", errors.New("invalid GCS object URI")
	}
	object = strings.TrimLeft(u.Path, "/")
	if object == "" {
		return "", "", errors.New("GCS object URI has no object path")
	}
	return u.Host, object, nil
}
