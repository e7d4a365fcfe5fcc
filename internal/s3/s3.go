// Package s3 implements the S3-compatible object store: a bucket registry,
// per-bucket object maps, the multipart upload coordinator and the XML wire
// protocol, dispatched by HTTP method and path shape.
package s3

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Owner is the fixed identity reported for every bucket and object. A local
// emulator has exactly one account.
var Owner = OwnerInfo{
	ID:          "ruststack",
	DisplayName: "ruststack",
}

// Service is the object store engine. The registry mutex guards the bucket
// map; each bucket carries its own lock, so traffic against different
// buckets never serializes.
type Service struct {
	mu      sync.RWMutex
	buckets map[string]*bucket

	logger *zap.Logger
	now    func() time.Time
}

// NewService builds an empty object store.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		buckets: make(map[string]*bucket),
		logger:  logger,
		now:     time.Now,
	}
}

// bucket holds one bucket's objects and in-progress multipart uploads. The
// mutex covers both maps together, so delete-bucket's emptiness check and
// multipart completion's object install are atomic steps.
type bucket struct {
	mu sync.RWMutex

	name      string
	createdAt time.Time
	objects   map[string]*object
	uploads   map[string]*upload
}

// Metadata is the user-visible object metadata carried on put and returned
// verbatim on get and head. User holds the x-amz-meta-* header suffixes.
type Metadata struct {
	ContentType        string
	ContentEncoding    string
	CacheControl       string
	ContentLanguage    string
	ContentDisposition string
	User               map[string]string
}

// Clone deep-copies the metadata so stored state never aliases request
// state.
func (m Metadata) Clone() Metadata {
	out := m
	if m.User != nil {
		out.User = make(map[string]string, len(m.User))
		for k, v := range m.User {
			out.User[k] = v
		}
	}
	return out
}

// object is a stored object. Payload bytes are immutable once stored; a put
// at the same key replaces the whole record.
type object struct {
	data         []byte
	etag         string
	lastModified time.Time
	metadata     Metadata
}

// Object is the read-side snapshot of a stored object.
type Object struct {
	Key          string
	Data         []byte
	ETag         string
	LastModified time.Time
	Size         int64
	Metadata     Metadata
}

func (o *object) snapshot(key string) *Object {
	return &Object{
		Key:          key,
		Data:         o.data,
		ETag:         o.etag,
		LastModified: o.lastModified,
		Size:         int64(len(o.data)),
		Metadata:     o.metadata.Clone(),
	}
}

// CreateBucket registers a new bucket.
func (s *Service) CreateBucket(name string) error {
	if name == "" {
		return errInvalidArgument("bucket name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.buckets[name]; exists {
		return errBucketExists(name)
	}
	s.buckets[name] = &bucket{
		name:      name,
		createdAt: s.now(),
		objects:   make(map[string]*object),
		uploads:   make(map[string]*upload),
	}
	s.logger.Info("bucket created", zap.String("bucket", name))
	return nil
}

// DeleteBucket removes a bucket, refusing while any object or in-progress
// multipart upload remains.
func (s *Service) DeleteBucket(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		return errNoSuchBucket(name)
	}
	b.mu.RLock()
	empty := len(b.objects) == 0 && len(b.uploads) == 0
	b.mu.RUnlock()
	if !empty {
		return errBucketNotEmpty(name)
	}
	delete(s.buckets, name)
	s.logger.Info("bucket deleted", zap.String("bucket", name))
	return nil
}

// BucketExists reports whether the bucket is registered.
func (s *Service) BucketExists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[name]
	return ok
}

// BucketSummary is one entry of a list-buckets response.
type BucketSummary struct {
	Name      string
	CreatedAt time.Time
}

// ListBuckets returns every bucket in lexicographic name order.
func (s *Service) ListBuckets() []BucketSummary {
	s.mu.RLock()
	out := make([]BucketSummary, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, BucketSummary{Name: b.name, CreatedAt: b.createdAt})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) lookup(name string) (*bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[name]
	if !ok {
		return nil, errNoSuchBucket(name)
	}
	return b, nil
}
