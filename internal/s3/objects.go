package s3

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// payloadETag computes the single-part entity tag: the lowercase hex MD5 of
// the payload, double-quoted as the wire requires.
func payloadETag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// PutObject stores an object, replacing any prior object at the key.
func (s *Service) PutObject(bucketName, key string, data []byte, meta Metadata) (etag string, err error) {
	if key == "" {
		return "", errInvalidArgument("object key must not be empty")
	}
	b, err := s.lookup(bucketName)
	if err != nil {
		return "", err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	obj := &object{
		data:         stored,
		etag:         payloadETag(stored),
		lastModified: s.now(),
		metadata:     meta.Clone(),
	}

	b.mu.Lock()
	b.objects[key] = obj
	b.mu.Unlock()

	s.logger.Debug("object stored",
		zap.String("bucket", bucketName),
		zap.String("key", key),
		zap.Int("size", len(stored)),
	)
	return obj.etag, nil
}

// GetObject returns a snapshot of the object at key.
func (s *Service) GetObject(bucketName, key string) (*Object, error) {
	b, err := s.lookup(bucketName)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	obj, ok := b.objects[key]
	b.mu.RUnlock()
	if !ok {
		return nil, errNoSuchKey(bucketName, key)
	}
	return obj.snapshot(key), nil
}

// HeadObject returns the object's metadata without the payload. The snapshot
// still carries Size and ETag; the handler suppresses the body.
func (s *Service) HeadObject(bucketName, key string) (*Object, error) {
	return s.GetObject(bucketName, key)
}

// DeleteObject removes an object. The wire answer is 204 either way; the
// returned existed flag lets callers that care observe the difference.
func (s *Service) DeleteObject(bucketName, key string) (existed bool, err error) {
	b, err := s.lookup(bucketName)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	_, existed = b.objects[key]
	delete(b.objects, key)
	b.mu.Unlock()
	return existed, nil
}

// CopyObject copies the source object's payload into dstKey. When the
// request supplies replacement metadata it wins; otherwise the source
// metadata is carried over.
func (s *Service) CopyObject(srcBucket, srcKey, dstBucket, dstKey string, meta *Metadata) (*Object, error) {
	src, err := s.GetObject(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	useMeta := src.Metadata
	if meta != nil {
		useMeta = *meta
	}
	if _, err := s.PutObject(dstBucket, dstKey, src.Data, useMeta); err != nil {
		return nil, err
	}
	return s.GetObject(dstBucket, dstKey)
}

// DeletedResult reports the outcome of one key in a multi-object delete.
type DeletedResult struct {
	Key     string
	Existed bool
}

// DeleteObjects removes a batch of keys. Individual keys never fail: delete
// is idempotent, so every entry comes back as deleted.
func (s *Service) DeleteObjects(bucketName string, keys []string) ([]DeletedResult, error) {
	b, err := s.lookup(bucketName)
	if err != nil {
		return nil, err
	}
	out := make([]DeletedResult, 0, len(keys))
	b.mu.Lock()
	for _, key := range keys {
		_, existed := b.objects[key]
		delete(b.objects, key)
		out = append(out, DeletedResult{Key: key, Existed: existed})
	}
	b.mu.Unlock()
	return out, nil
}

// ListQuery carries the list-objects parameters shared by the V1 and V2
// wire forms. Marker holds the V1 marker or the decoded V2 start-after
// position.
type ListQuery struct {
	Prefix    string
	Delimiter string
	Marker    string
	MaxKeys   int
}

// ListResult is the engine-side outcome of a list-objects call. Objects are
// metadata snapshots without payloads.
type ListResult struct {
	Objects        []*Object
	CommonPrefixes []string
	IsTruncated    bool
	NextMarker     string
}

const defaultMaxKeys = 1000

// ListObjects enumerates a bucket's keys in lexicographic order, collapsing
// keys that share a post-prefix delimiter group into common prefixes. Keys
// are snapshotted under a brief lock; grouping and pagination run outside
// it.
func (s *Service) ListObjects(bucketName string, q ListQuery) (*ListResult, error) {
	b, err := s.lookup(bucketName)
	if err != nil {
		return nil, err
	}
	maxKeys := q.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	b.mu.RLock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		if strings.HasPrefix(key, q.Prefix) {
			keys = append(keys, key)
		}
	}
	snapshots := make(map[string]*object, len(keys))
	for _, key := range keys {
		snapshots[key] = b.objects[key]
	}
	b.mu.RUnlock()
	sort.Strings(keys)

	res := &ListResult{}
	seenPrefixes := make(map[string]struct{})
	emitted := 0
	for _, key := range keys {
		if q.Marker != "" && key <= q.Marker {
			continue
		}
		if emitted >= maxKeys {
			res.IsTruncated = true
			break
		}

		if q.Delimiter != "" {
			remainder := key[len(q.Prefix):]
			if idx := strings.Index(remainder, q.Delimiter); idx >= 0 {
				common := q.Prefix + remainder[:idx+len(q.Delimiter)]
				if _, dup := seenPrefixes[common]; !dup {
					seenPrefixes[common] = struct{}{}
					res.CommonPrefixes = append(res.CommonPrefixes, common)
					emitted++
				}
				// The key is rolled up into its prefix group, so the
				// marker may advance past it.
				res.NextMarker = key
				continue
			}
		}

		res.Objects = append(res.Objects, snapshots[key].snapshot(key))
		emitted++
		res.NextMarker = key
	}
	if !res.IsTruncated {
		res.NextMarker = ""
	}
	return res, nil
}
