package s3

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "ruststack/pkg/errors"
)

func newTestService() *Service {
	return NewService(zap.NewNop())
}

func TestBucketLifecycle(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.CreateBucket("b"))
	assert.True(t, svc.BucketExists("b"))

	err := svc.CreateBucket("b")
	require.Error(t, err)
	assert.Equal(t, codeBucketExists, apperrors.AsAppError(err).Code)

	// A bucket holding an object refuses deletion until the object goes.
	_, err = svc.PutObject("b", "a", []byte("x"), Metadata{})
	require.NoError(t, err)
	err = svc.DeleteBucket("b")
	require.Error(t, err)
	assert.Equal(t, codeBucketNotEmpty, apperrors.AsAppError(err).Code)

	existed, err := svc.DeleteObject("b", "a")
	require.NoError(t, err)
	assert.True(t, existed)
	require.NoError(t, svc.DeleteBucket("b"))
	assert.False(t, svc.BucketExists("b"))

	err = svc.DeleteBucket("b")
	require.Error(t, err)
	assert.Equal(t, codeNoSuchBucket, apperrors.AsAppError(err).Code)
}

func TestBucketNotEmptyWithPendingUpload(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))

	id, err := svc.CreateMultipartUpload("b", "k", Metadata{})
	require.NoError(t, err)

	err = svc.DeleteBucket("b")
	require.Error(t, err)
	assert.Equal(t, codeBucketNotEmpty, apperrors.AsAppError(err).Code)

	require.NoError(t, svc.AbortMultipartUpload("b", "k", id))
	require.NoError(t, svc.DeleteBucket("b"))
}

func TestListBucketsSorted(t *testing.T) {
	svc := newTestService()
	for _, name := range []string{"zebra", "alpha", "mango"} {
		require.NoError(t, svc.CreateBucket(name))
	}
	var names []string
	for _, b := range svc.ListBuckets() {
		names = append(names, b.Name)
		assert.False(t, b.CreatedAt.IsZero())
	}
	assert.Equal(t, []string{"alpha", "mango", "zebra"}, names)
}

func TestPutGetRoundTrip(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))

	payload := []byte("hello world")
	meta := Metadata{
		ContentType: "text/plain",
		User:        map[string]string{"owner": "tests"},
	}
	etag, err := svc.PutObject("b", "greeting", payload, meta)
	require.NoError(t, err)

	sum := md5.Sum(payload)
	assert.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, etag)

	obj, err := svc.GetObject("b", "greeting")
	require.NoError(t, err)
	assert.Equal(t, payload, obj.Data)
	assert.Equal(t, etag, obj.ETag)
	assert.Equal(t, int64(len(payload)), obj.Size)
	assert.Equal(t, "text/plain", obj.Metadata.ContentType)
	assert.Equal(t, "tests", obj.Metadata.User["owner"])
	assert.False(t, obj.LastModified.IsZero())
}

func TestPutOverwrites(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))

	_, err := svc.PutObject("b", "k", []byte("one"), Metadata{})
	require.NoError(t, err)
	etag2, err := svc.PutObject("b", "k", []byte("two"), Metadata{})
	require.NoError(t, err)

	obj, err := svc.GetObject("b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), obj.Data)
	assert.Equal(t, etag2, obj.ETag)
}

func TestGetObjectErrors(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetObject("missing", "k")
	assert.Equal(t, codeNoSuchBucket, apperrors.AsAppError(err).Code)

	require.NoError(t, svc.CreateBucket("b"))
	_, err = svc.GetObject("b", "missing")
	assert.Equal(t, codeNoSuchKey, apperrors.AsAppError(err).Code)
}

func TestDeleteObjectIdempotent(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))

	existed, err := svc.DeleteObject("b", "never-there")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCopyObject(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("src"))
	require.NoError(t, svc.CreateBucket("dst"))

	srcMeta := Metadata{ContentType: "text/plain", User: map[string]string{"k": "v"}}
	_, err := svc.PutObject("src", "a", []byte("data"), srcMeta)
	require.NoError(t, err)

	t.Run("metadata carried over by default", func(t *testing.T) {
		obj, err := svc.CopyObject("src", "a", "dst", "a-copy", nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), obj.Data)
		assert.Equal(t, "text/plain", obj.Metadata.ContentType)
		assert.Equal(t, "v", obj.Metadata.User["k"])
	})

	t.Run("replacement metadata wins", func(t *testing.T) {
		obj, err := svc.CopyObject("src", "a", "dst", "a-replaced", &Metadata{ContentType: "application/json"})
		require.NoError(t, err)
		assert.Equal(t, "application/json", obj.Metadata.ContentType)
		assert.Empty(t, obj.Metadata.User)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := svc.CopyObject("src", "missing", "dst", "x", nil)
		assert.Equal(t, codeNoSuchKey, apperrors.AsAppError(err).Code)
	})
}

func TestDeleteObjects(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.CreateBucket("b"))
	for _, key := range []string{"a", "b", "c"} {
		_, err := svc.PutObject("b", key, []byte(key), Metadata{})
		require.NoError(t, err)
	}

	results, err := svc.DeleteObjects("b", []string{"a", "c", "ghost"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Existed)
	assert.True(t, results[1].Existed)
	assert.False(t, results[2].Existed)

	_, err = svc.GetObject("b", "a")
	require.Error(t, err)
	_, err = svc.GetObject("b", "b")
	require.NoError(t, err)
}
