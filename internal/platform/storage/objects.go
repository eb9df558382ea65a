package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
)

var (
	// ErrObjectNotFound is returned when the requested object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")

	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errNoClient      = errors.New("storage: client is required")
)

// objectStore is the subset of Cloud Storage used by this package.
type objectStore interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
	Copy(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error
}

type gcsStore struct {
	client *gcs.Client
}

func (s gcsStore) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return s.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (s gcsStore) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"
	return w
}

func (s gcsStore) Copy(ctx context.Context, srcBucket, srcObject, dstBucket, dstObject string) error {
	src := s.client.Bucket(srcBucket).Object(srcObject)
	dst := s.client.Bucket(dstBucket).Object(dstObject)
	_, err := dst.CopierFrom(src).Run(ctx)
	return err
}

// Location names a single Cloud Storage object.
type Location struct {
	Bucket string
	Object string
}

// ParseLocation parses "gs://bucket/path/to/object".
func ParseLocation(raw string) (Location, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "gs://") {
		return Location{}, fmt.Errorf("storage: location %q must use gs:// scheme", raw)
	}
	bucket, object, _ := strings.Cut(strings.TrimPrefix(trimmed, "gs://"), "/")
	loc := Location{Bucket: bucket, Object: object}
	if err := loc.validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// String renders the gs:// form of the location.
func (l Location) String() string {
	return "gs://" + l.Bucket + "/" + l.Object
}

func (l Location) validate() error {
	if strings.TrimSpace(l.Bucket) == "" {
		return errInvalidBucket
	}
	if strings.TrimSpace(l.Object) == "" {
		return errInvalidObject
	}
	return nil
}

// ObjectSource streams a destiny dataset stored in Cloud Storage.
// It satisfies sixstar.Source.
type ObjectSource struct {
	store    objectStore
	location Location
}

// NewObjectSource constructs a source reading bucket/object through client.
func NewObjectSource(client *gcs.Client, bucket, object string) (*ObjectSource, error) {
	if client == nil {
		return nil, errNoClient
	}
	return newObjectSource(gcsStore{client: client}, Location{Bucket: strings.TrimSpace(bucket), Object: strings.TrimSpace(object)})
}

func newObjectSource(store objectStore, loc Location) (*ObjectSource, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	return &ObjectSource{store: store, location: loc}, nil
}

// Fetch opens the object for reading.
func (s *ObjectSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.store.NewReader(ctx, s.location.Bucket, s.location.Object)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, s.location)
		}
		return nil, fmt.Errorf("storage: open %s: %w", s.location, err)
	}
	return rc, nil
}

// Name reports the gs:// location.
func (s *ObjectSource) Name() string {
	return s.location.String()
}

// Publisher uploads dataset snapshots and promotes them between locations.
type Publisher struct {
	store objectStore
}

// NewPublisher constructs a Publisher backed by the Cloud Storage client.
func NewPublisher(client *gcs.Client) (*Publisher, error) {
	if client == nil {
		return nil, errNoClient
	}
	return &Publisher{store: gcsStore{client: client}}, nil
}

// Upload writes r to dst with the given content type.
func (p *Publisher) Upload(ctx context.Context, dst Location, r io.Reader, contentType string) error {
	if err := dst.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "text/csv; charset=utf-8"
	}
	w := p.store.NewWriter(ctx, dst.Bucket, dst.Object, contentType)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: upload %s: %w", dst, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: finalize %s: %w", dst, err)
	}
	return nil
}

// Promote copies src over dst. Copying an object onto itself is a no-op.
func (p *Publisher) Promote(ctx context.Context, src, dst Location) error {
	if err := src.validate(); err != nil {
		return err
	}
	if err := dst.validate(); err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if err := p.store.Copy(ctx, src.Bucket, src.Object, dst.Bucket, dst.Object); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, src)
		}
		return fmt.Errorf("storage: promote %s to %s: %w", src, dst, err)
	}
	return nil
}
