package s3

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ruststack/internal/awsapi"
)

const testRequestID = "TESTREQUESTID0000000000000000000"

func newTestHandler() *Handler {
	return NewHandler(newTestService(), zap.NewNop())
}

// do runs one request through the handler with a fixed request id.
func do(h *Handler, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(awsapi.WithRequestID(req.Context(), testRequestID))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBucketOps(t *testing.T) {
	h := newTestHandler()

	rec := do(h, http.MethodPut, "/bucket", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/bucket", rec.Header().Get("Location"))

	rec = do(h, http.MethodHead, "/bucket", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(h, http.MethodHead, "/other", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<ListAllMyBucketsResult>")
	assert.Contains(t, rec.Body.String(), "<Name>bucket</Name>")

	rec = do(h, http.MethodDelete, "/bucket", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerErrorEnvelopeShape(t *testing.T) {
	h := newTestHandler()

	rec := do(h, http.MethodGet, "/missing/key", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, testRequestID, rec.Header().Get("x-amz-request-id"))

	want := xml.Header +
		"<Error><Code>NoSuchBucket</Code><Message>The specified bucket does not exist</Message>" +
		"<Resource>/missing</Resource><RequestId>" + testRequestID + "</RequestId></Error>"
	assert.Equal(t, want, rec.Body.String())
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandler()
	rec := do(h, http.MethodPost, "/", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>MethodNotAllowed</Code>")

	rec = do(h, http.MethodPatch, "/bucket/key", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerObjectRoundTrip(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)

	rec := do(h, http.MethodPut, "/b/dir/file.txt", "payload", map[string]string{
		"Content-Type":   "text/plain",
		"x-amz-meta-who": "tester",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = do(h, http.MethodGet, "/b/dir/file.txt", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, etag, rec.Header().Get("ETag"))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "tester", rec.Header().Get("x-amz-meta-who"))

	rec = do(h, http.MethodHead, "/b/dir/file.txt", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "7", rec.Header().Get("Content-Length"))

	rec = do(h, http.MethodDelete, "/b/dir/file.txt", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodDelete, "/b/dir/file.txt", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerCopyObject(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)
	do(h, http.MethodPut, "/b/src", "data", nil)

	rec := do(h, http.MethodPut, "/b/dst", "", map[string]string{
		"x-amz-copy-source": "/b/src",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<CopyObjectResult>")

	rec = do(h, http.MethodGet, "/b/dst", "", nil)
	assert.Equal(t, "data", rec.Body.String())
}

func TestHandlerListObjectsV2(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)
	for _, key := range []string{"a/1", "a/2", "b/1", "top"} {
		do(h, http.MethodPut, "/b/"+key, "x", nil)
	}

	rec := do(h, http.MethodGet, "/b?list-type=2&delimiter=%2F", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<KeyCount>3</KeyCount>")
	assert.Contains(t, body, "<Prefix>a/</Prefix>")
	assert.Contains(t, body, "<Prefix>b/</Prefix>")
	assert.Contains(t, body, "<Key>top</Key>")
	assert.NotContains(t, body, "<Key>a/1</Key>")
}

func TestHandlerListObjectsV2Pagination(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)
	for _, key := range []string{"k1", "k2", "k3"} {
		do(h, http.MethodPut, "/b/"+key, "x", nil)
	}

	rec := do(h, http.MethodGet, "/b?list-type=2&max-keys=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page1 struct {
		IsTruncated           bool     `xml:"IsTruncated"`
		NextContinuationToken string   `xml:"NextContinuationToken"`
		Keys                  []string `xml:"Contents>Key"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &page1))
	assert.True(t, page1.IsTruncated)
	assert.Equal(t, []string{"k1", "k2"}, page1.Keys)
	require.NotEmpty(t, page1.NextContinuationToken)

	rec = do(h, http.MethodGet, "/b?list-type=2&max-keys=2&continuation-token="+page1.NextContinuationToken, "", nil)
	var page2 struct {
		IsTruncated bool     `xml:"IsTruncated"`
		Keys        []string `xml:"Contents>Key"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &page2))
	assert.False(t, page2.IsTruncated)
	assert.Equal(t, []string{"k3"}, page2.Keys)
}

func TestHandlerMultipartFlow(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)

	rec := do(h, http.MethodPost, "/b/big?uploads", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var initiated struct {
		UploadID string `xml:"UploadId"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &initiated))
	require.NotEmpty(t, initiated.UploadID)

	var etags [2]string
	for i, payload := range []string{"part1", "part2"} {
		rec = do(h, http.MethodPut,
			fmt.Sprintf("/b/big?uploadId=%s&partNumber=%d", initiated.UploadID, i+1),
			payload, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		etags[i] = rec.Header().Get("ETag")
		require.NotEmpty(t, etags[i])
	}

	rec = do(h, http.MethodGet, "/b/big?uploadId="+initiated.UploadID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<PartNumber>1</PartNumber>")
	assert.Contains(t, rec.Body.String(), "<PartNumber>2</PartNumber>")

	manifest := fmt.Sprintf(`
		<CompleteMultipartUpload>
			<Part><PartNumber>1</PartNumber><ETag>%s</ETag></Part>
			<Part><PartNumber>2</PartNumber><ETag>%s</ETag></Part>
		</CompleteMultipartUpload>`, etags[0], etags[1])
	rec = do(h, http.MethodPost, "/b/big?uploadId="+initiated.UploadID, manifest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var completed struct {
		ETag string `xml:"ETag"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, compoundETag([]byte("part1"), []byte("part2")), completed.ETag)

	rec = do(h, http.MethodGet, "/b/big", "", nil)
	assert.Equal(t, "part1part2", rec.Body.String())
}

func TestHandlerMultipartAbortOverHTTP(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)
	rec := do(h, http.MethodPost, "/b/k?uploads", "", nil)
	var initiated struct {
		UploadID string `xml:"UploadId"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &initiated))

	rec = do(h, http.MethodDelete, "/b/k?uploadId="+initiated.UploadID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodGet, "/b?uploads", "", nil)
	assert.NotContains(t, rec.Body.String(), initiated.UploadID)
}

func TestHandlerDeleteObjects(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)
	do(h, http.MethodPut, "/b/one", "1", nil)
	do(h, http.MethodPut, "/b/two", "2", nil)

	body := `<Delete><Object><Key>one</Key></Object><Object><Key>two</Key></Object></Delete>`
	rec := do(h, http.MethodPost, "/b?delete", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Deleted><Key>one</Key></Deleted>")
	assert.Contains(t, rec.Body.String(), "<Deleted><Key>two</Key></Deleted>")

	rec = do(h, http.MethodGet, "/b/one", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerMalformedCompleteManifest(t *testing.T) {
	h := newTestHandler()
	do(h, http.MethodPut, "/b", "", nil)
	rec := do(h, http.MethodPost, "/b/k?uploads", "", nil)
	var initiated struct {
		UploadID string `xml:"UploadId"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &initiated))

	rec = do(h, http.MethodPost, "/b/k?uploadId="+initiated.UploadID, "<not-xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Code>MalformedXML</Code>")
}
