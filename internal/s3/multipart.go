package s3

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minPartNumber = 1
	maxPartNumber = 10000
)

// part is one uploaded part of an in-progress multipart upload.
type part struct {
	data []byte
	etag string
	size int64
}

// upload is an in-progress multipart upload. The target metadata is frozen
// at creation time; completion installs it on the assembled object.
type upload struct {
	id        string
	key       string
	metadata  Metadata
	parts     map[int]part
	createdAt time.Time
}

// newUploadID issues a fresh URL-safe upload identifier.
func newUploadID() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}

// CreateMultipartUpload opens a multipart upload targeting key and returns
// its upload id.
func (s *Service) CreateMultipartUpload(bucketName, key string, meta Metadata) (uploadID string, err error) {
	if key == "" {
		return "", errInvalidArgument("object key must not be empty")
	}
	b, err := s.lookup(bucketName)
	if err != nil {
		return "", err
	}
	up := &upload{
		id:        newUploadID(),
		key:       key,
		metadata:  meta.Clone(),
		parts:     make(map[int]part),
		createdAt: s.now(),
	}
	b.mu.Lock()
	b.uploads[up.id] = up
	b.mu.Unlock()

	s.logger.Debug("multipart upload created",
		zap.String("bucket", bucketName),
		zap.String("key", key),
		zap.String("upload_id", up.id),
	)
	return up.id, nil
}

// UploadPart stores one part of an upload. Re-uploading a part number
// replaces the prior bytes; the last writer wins.
func (s *Service) UploadPart(bucketName, key, uploadID string, partNumber int, data []byte) (etag string, err error) {
	if partNumber < minPartNumber || partNumber > maxPartNumber {
		return "", errInvalidArgument(fmt.Sprintf("Part number must be an integer between %d and %d, inclusive", minPartNumber, maxPartNumber))
	}
	b, err := s.lookup(bucketName)
	if err != nil {
		return "", err
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	p := part{
		data: stored,
		etag: payloadETag(stored),
		size: int64(len(stored)),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	up, ok := b.uploads[uploadID]
	if !ok || up.key != key {
		return "", errNoSuchUpload(uploadID)
	}
	up.parts[partNumber] = p
	return p.etag, nil
}

// CompletedPart is one entry of the caller's completion manifest.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// CompleteMultipartUpload assembles the referenced parts into the final
// object and returns its compound entity tag. The manifest is sorted by
// part number before assembly; part numbers must be distinct. On any error
// the upload record and the bucket are left untouched.
func (s *Service) CompleteMultipartUpload(bucketName, key, uploadID string, manifest []CompletedPart) (etag string, err error) {
	if len(manifest) == 0 {
		return "", errMalformedXML()
	}
	b, err := s.lookup(bucketName)
	if err != nil {
		return "", err
	}

	sorted := make([]CompletedPart, len(manifest))
	copy(sorted, manifest)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	b.mu.Lock()
	defer b.mu.Unlock()
	up, ok := b.uploads[uploadID]
	if !ok || up.key != key {
		return "", errNoSuchUpload(uploadID)
	}

	var payload []byte
	var digests []byte
	prev := 0
	for _, cp := range sorted {
		if cp.PartNumber <= prev {
			return "", errInvalidPartOrder()
		}
		prev = cp.PartNumber
		p, ok := up.parts[cp.PartNumber]
		if !ok {
			return "", errInvalidPart(cp.PartNumber)
		}
		if cp.ETag != "" && trimETag(cp.ETag) != trimETag(p.etag) {
			return "", errInvalidPart(cp.PartNumber)
		}
		payload = append(payload, p.data...)
		sum := md5.Sum(p.data)
		digests = append(digests, sum[:]...)
	}

	// Compound tag: md5 over the concatenated raw part digests, suffixed
	// with the part count.
	outer := md5.Sum(digests)
	etag = fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(outer[:]), len(sorted))

	b.objects[key] = &object{
		data:         payload,
		etag:         etag,
		lastModified: s.now(),
		metadata:     up.metadata.Clone(),
	}
	delete(b.uploads, uploadID)

	s.logger.Debug("multipart upload completed",
		zap.String("bucket", bucketName),
		zap.String("key", key),
		zap.String("upload_id", uploadID),
		zap.Int("parts", len(sorted)),
		zap.Int("size", len(payload)),
	)
	return etag, nil
}

// AbortMultipartUpload discards an upload and all of its parts. Aborting an
// upload that is already gone succeeds, matching the wire's idempotency.
func (s *Service) AbortMultipartUpload(bucketName, key, uploadID string) error {
	b, err := s.lookup(bucketName)
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.uploads, uploadID)
	b.mu.Unlock()
	return nil
}

// UploadSummary is one entry of a list-multipart-uploads response.
type UploadSummary struct {
	Key       string
	UploadID  string
	CreatedAt time.Time
}

// ListMultipartUploads enumerates a bucket's in-progress uploads ordered by
// key, then upload id.
func (s *Service) ListMultipartUploads(bucketName string) ([]UploadSummary, error) {
	b, err := s.lookup(bucketName)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	out := make([]UploadSummary, 0, len(b.uploads))
	for _, up := range b.uploads {
		out = append(out, UploadSummary{Key: up.key, UploadID: up.id, CreatedAt: up.createdAt})
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].UploadID < out[j].UploadID
	})
	return out, nil
}

// PartSummary is one entry of a list-parts response.
type PartSummary struct {
	PartNumber int
	ETag       string
	Size       int64
}

// ListParts enumerates an upload's parts in part-number order.
func (s *Service) ListParts(bucketName, key, uploadID string) ([]PartSummary, error) {
	b, err := s.lookup(bucketName)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	up, ok := b.uploads[uploadID]
	if !ok || up.key != key {
		return nil, errNoSuchUpload(uploadID)
	}
	out := make([]PartSummary, 0, len(up.parts))
	for num, p := range up.parts {
		out = append(out, PartSummary{PartNumber: num, ETag: p.etag, Size: p.size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out, nil
}

// trimETag strips the wire quoting so manifest tags compare regardless of
// how the client quoted them.
func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
