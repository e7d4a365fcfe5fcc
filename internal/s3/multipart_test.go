package s3

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ruststack/pkg/errors"
)

// compoundETag computes the multipart tag law independently of the engine:
// md5 over the concatenated raw part digests, dash, part count.
func compoundETag(parts ...[]byte) string {
	var digests []byte
	for _, p := range parts {
		sum := md5.Sum(p)
		digests = append(digests, sum[:]...)
	}
	outer := md5.Sum(digests)
	return fmt.Sprintf(`"%s-%d"`, hex.EncodeToString(outer[:]), len(parts))
}

func TestMultipartAssembly(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))

	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{ContentType: "text/plain"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p1, p2 := []byte("part1"), []byte("part2")
	etag1, err := svc.UploadPart("b", "obj", id, 1, p1)
	require.NoError(t, err)
	assert.Equal(t, payloadETag(p1), etag1)
	etag2, err := svc.UploadPart("b", "obj", id, 2, p2)
	require.NoError(t, err)

	etag, err := svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{
		{PartNumber: 1, ETag: etag1},
		{PartNumber: 2, ETag: etag2},
	})
	require.NoError(t, err)
	assert.Equal(t, compoundETag(p1, p2), etag)

	obj, err := svc.GetObject("b", "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("part1part2"), obj.Data)
	assert.Equal(t, int64(10), obj.Size)
	assert.Equal(t, etag, obj.ETag)
	// The metadata frozen at creation time lands on the assembled object.
	assert.Equal(t, "text/plain", obj.Metadata.ContentType)

	// The upload record is gone once completed.
	_, err = svc.ListParts("b", "obj", id)
	assert.Equal(t, codeNoSuchUpload, apperrors.AsAppError(err).Code)
}

func TestMultipartPartsOutOfOrderUpload(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{})
	require.NoError(t, err)

	// Upload in reverse; the manifest order decides assembly order.
	_, err = svc.UploadPart("b", "obj", id, 3, []byte("ccc"))
	require.NoError(t, err)
	_, err = svc.UploadPart("b", "obj", id, 1, []byte("aaa"))
	require.NoError(t, err)

	_, err = svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{
		{PartNumber: 3},
		{PartNumber: 1},
	})
	require.NoError(t, err)

	obj, err := svc.GetObject("b", "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaccc"), obj.Data)
}

func TestMultipartReuploadReplacesPart(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{})
	require.NoError(t, err)

	_, err = svc.UploadPart("b", "obj", id, 1, []byte("old"))
	require.NoError(t, err)
	_, err = svc.UploadPart("b", "obj", id, 1, []byte("new"))
	require.NoError(t, err)

	_, err = svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{{PartNumber: 1}})
	require.NoError(t, err)
	obj, err := svc.GetObject("b", "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), obj.Data)
}

func TestMultipartSinglePartKeepsSuffix(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{})
	require.NoError(t, err)

	data := bytes.Repeat([]byte("x"), 64)
	_, err = svc.UploadPart("b", "obj", id, 1, data)
	require.NoError(t, err)

	etag, err := svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{{PartNumber: 1}})
	require.NoError(t, err)
	assert.Equal(t, compoundETag(data), etag)
	assert.Contains(t, etag, `-1"`)
}

func TestMultipartCompleteErrors(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{})
	require.NoError(t, err)
	_, err = svc.UploadPart("b", "obj", id, 1, []byte("a"))
	require.NoError(t, err)

	t.Run("unknown upload id", func(t *testing.T) {
		_, err := svc.CompleteMultipartUpload("b", "obj", "bogus", []CompletedPart{{PartNumber: 1}})
		assert.Equal(t, codeNoSuchUpload, apperrors.AsAppError(err).Code)
	})

	t.Run("missing part", func(t *testing.T) {
		_, err := svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{{PartNumber: 1}, {PartNumber: 2}})
		assert.Equal(t, codeInvalidPart, apperrors.AsAppError(err).Code)
	})

	t.Run("mismatched manifest etag", func(t *testing.T) {
		_, err := svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{{PartNumber: 1, ETag: `"feedface"`}})
		assert.Equal(t, codeInvalidPart, apperrors.AsAppError(err).Code)
	})

	t.Run("duplicate part numbers", func(t *testing.T) {
		_, err := svc.CompleteMultipartUpload("b", "obj", id, []CompletedPart{{PartNumber: 1}, {PartNumber: 1}})
		assert.Equal(t, codeInvalidPartOrder, apperrors.AsAppError(err).Code)
	})

	t.Run("empty manifest", func(t *testing.T) {
		_, err := svc.CompleteMultipartUpload("b", "obj", id, nil)
		assert.Equal(t, codeMalformedXML, apperrors.AsAppError(err).Code)
	})

	// All of the failures above left the upload intact.
	parts, err := svc.ListParts("b", "obj", id)
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestMultipartPartNumberBounds(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{})
	require.NoError(t, err)

	_, err = svc.UploadPart("b", "obj", id, 0, []byte("x"))
	assert.Equal(t, codeInvalidArgument, apperrors.AsAppError(err).Code)
	_, err = svc.UploadPart("b", "obj", id, 10001, []byte("x"))
	assert.Equal(t, codeInvalidArgument, apperrors.AsAppError(err).Code)
}

func TestMultipartAbort(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	id, err := svc.CreateMultipartUpload("b", "obj", Metadata{})
	require.NoError(t, err)
	_, err = svc.UploadPart("b", "obj", id, 1, []byte("a"))
	require.NoError(t, err)

	require.NoError(t, svc.AbortMultipartUpload("b", "obj", id))
	_, err = svc.ListParts("b", "obj", id)
	assert.Equal(t, codeNoSuchUpload, apperrors.AsAppError(err).Code)

	// Aborting again is a wire-level no-op.
	require.NoError(t, svc.AbortMultipartUpload("b", "obj", id))
}

func TestListUploadsAndParts(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))

	id1, err := svc.CreateMultipartUpload("b", "k2", Metadata{})
	require.NoError(t, err)
	id2, err := svc.CreateMultipartUpload("b", "k1", Metadata{})
	require.NoError(t, err)

	uploads, err := svc.ListMultipartUploads("b")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "k1", uploads[0].Key)
	assert.Equal(t, id2, uploads[0].UploadID)
	assert.Equal(t, "k2", uploads[1].Key)
	assert.Equal(t, id1, uploads[1].UploadID)

	_, err = svc.UploadPart("b", "k2", id1, 2, []byte("bb"))
	require.NoError(t, err)
	_, err = svc.UploadPart("b", "k2", id1, 1, []byte("a"))
	require.NoError(t, err)

	parts, err := svc.ListParts("b", "k2", id1)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 1, parts[0].PartNumber)
	assert.Equal(t, int64(1), parts[0].Size)
	assert.Equal(t, 2, parts[1].PartNumber)
	assert.Equal(t, int64(2), parts[1].Size)
}
