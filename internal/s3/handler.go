package s3

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ruststack/internal/awsapi"
)

// Handler serves the S3 surface: bucket and object CRUD, listing and the
// multipart upload protocol, routed by HTTP method, path shape and the
// multipart query indicators.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler wires the object store behind the HTTP surface.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// ServeHTTP routes one request. The path splits into bucket and key at the
// first slash; query indicators pick the multipart operations out of the
// plain object operations.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := awsapi.RequestID(r.Context())
	bucket, key := splitPath(r.URL.Path)

	var err error
	switch {
	case bucket == "":
		err = h.serveRoot(w, r)
	case key == "":
		err = h.serveBucket(w, r, bucket)
	default:
		err = h.serveObject(w, r, bucket, key)
	}
	if err != nil {
		WriteError(w, h.logger, requestID, err)
	}
}

// splitPath separates "/bucket/key/with/slashes" into its bucket and key.
func splitPath(path string) (bucket, key string) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", ""
	}
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}

func (h *Handler) serveRoot(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return errMethodNotAllowed(r.Method)
	}
	result := listAllMyBucketsResult{Owner: Owner}
	for _, b := range h.svc.ListBuckets() {
		result.Buckets = append(result.Buckets, bucketEntry{
			Name:         b.Name,
			CreationDate: b.CreatedAt.UTC().Format(timeFormat),
		})
	}
	return h.writeXML(w, r, http.StatusOK, result)
}

func (h *Handler) serveBucket(w http.ResponseWriter, r *http.Request, bucket string) error {
	query := r.URL.Query()
	switch r.Method {
	case http.MethodPut:
		if err := h.svc.CreateBucket(bucket); err != nil {
			return err
		}
		w.Header().Set("Location", "/"+bucket)
		w.WriteHeader(http.StatusOK)
		return nil
	case http.MethodDelete:
		if err := h.svc.DeleteBucket(bucket); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	case http.MethodHead:
		if !h.svc.BucketExists(bucket) {
			w.WriteHeader(http.StatusNotFound)
			return nil
		}
		w.WriteHeader(http.StatusOK)
		return nil
	case http.MethodGet:
		if query.Has("uploads") {
			return h.listUploads(w, r, bucket)
		}
		if query.Get("list-type") == "2" {
			return h.listObjectsV2(w, r, bucket, query)
		}
		return h.listObjectsV1(w, r, bucket, query)
	case http.MethodPost:
		if query.Has("delete") {
			return h.deleteObjects(w, r, bucket)
		}
		return errMethodNotAllowed(r.Method)
	default:
		return errMethodNotAllowed(r.Method)
	}
}

func (h *Handler) serveObject(w http.ResponseWriter, r *http.Request, bucket, key string) error {
	query := r.URL.Query()
	switch r.Method {
	case http.MethodPost:
		if query.Has("uploads") {
			return h.createUpload(w, r, bucket, key)
		}
		if id := query.Get("uploadId"); id != "" {
			return h.completeUpload(w, r, bucket, key, id)
		}
		return errMethodNotAllowed(r.Method)
	case http.MethodPut:
		if id := query.Get("uploadId"); id != "" {
			return h.uploadPart(w, r, bucket, key, id, query.Get("partNumber"))
		}
		if src := r.Header.Get("x-amz-copy-source"); src != "" {
			return h.copyObject(w, r, bucket, key, src)
		}
		return h.putObject(w, r, bucket, key)
	case http.MethodGet:
		if id := query.Get("uploadId"); id != "" {
			return h.listParts(w, r, bucket, key, id)
		}
		return h.getObject(w, r, bucket, key, true)
	case http.MethodHead:
		return h.getObject(w, r, bucket, key, false)
	case http.MethodDelete:
		if id := query.Get("uploadId"); id != "" {
			if err := h.svc.AbortMultipartUpload(bucket, key, id); err != nil {
				return err
			}
			w.WriteHeader(http.StatusNoContent)
			return nil
		}
		if _, err := h.svc.DeleteObject(bucket, key); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	default:
		return errMethodNotAllowed(r.Method)
	}
}

func (h *Handler) putObject(w http.ResponseWriter, r *http.Request, bucket, key string) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return errInvalidArgument("unable to read the request body")
	}
	etag, err := h.svc.PutObject(bucket, key, data, metadataFromHeaders(r.Header))
	if err != nil {
		return err
	}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) getObject(w http.ResponseWriter, r *http.Request, bucket, key string, withBody bool) error {
	obj, err := h.svc.GetObject(bucket, key)
	if err != nil {
		// HEAD must not carry an error body.
		if !withBody {
			w.WriteHeader(http.StatusNotFound)
			return nil
		}
		return err
	}
	writeMetadataHeaders(w.Header(), obj)
	w.WriteHeader(http.StatusOK)
	if withBody {
		_, _ = w.Write(obj.Data)
	}
	return nil
}

func (h *Handler) copyObject(w http.ResponseWriter, r *http.Request, bucket, key, source string) error {
	srcBucket, srcKey, err := parseCopySource(source)
	if err != nil {
		return err
	}
	var meta *Metadata
	if strings.EqualFold(r.Header.Get("x-amz-metadata-directive"), "REPLACE") {
		m := metadataFromHeaders(r.Header)
		meta = &m
	}
	obj, err := h.svc.CopyObject(srcBucket, srcKey, bucket, key, meta)
	if err != nil {
		return err
	}
	return h.writeXML(w, r, http.StatusOK, copyObjectResult{
		LastModified: obj.LastModified.UTC().Format(timeFormat),
		ETag:         obj.ETag,
	})
}

// parseCopySource splits an x-amz-copy-source header ("/bucket/key" or
// "bucket/key", URL-encoded) into its parts.
func parseCopySource(source string) (bucket, key string, err error) {
	decoded, derr := url.PathUnescape(source)
	if derr != nil {
		decoded = source
	}
	bucket, key = splitPath("/" + strings.TrimPrefix(decoded, "/"))
	if bucket == "" || key == "" {
		return "", "", errInvalidArgument(fmt.Sprintf("invalid copy source %q", source))
	}
	return bucket, key, nil
}

func (h *Handler) deleteObjects(w http.ResponseWriter, r *http.Request, bucket string) error {
	var req deleteRequest
	if err := decodeXMLBody(r.Body, &req); err != nil {
		return err
	}
	keys := make([]string, 0, len(req.Objects))
	for _, o := range req.Objects {
		keys = append(keys, o.Key)
	}
	results, err := h.svc.DeleteObjects(bucket, keys)
	if err != nil {
		return err
	}
	out := deleteResult{}
	if !req.Quiet {
		for _, res := range results {
			out.Deleted = append(out.Deleted, deletedEntry{Key: res.Key})
		}
	}
	return h.writeXML(w, r, http.StatusOK, out)
}

func (h *Handler) listObjectsV1(w http.ResponseWriter, r *http.Request, bucket string, query url.Values) error {
	q, err := listQueryFrom(query, query.Get("marker"))
	if err != nil {
		return err
	}
	res, err := h.svc.ListObjects(bucket, q)
	if err != nil {
		return err
	}
	result := listBucketResult{
		Name:        bucket,
		Prefix:      q.Prefix,
		Delimiter:   q.Delimiter,
		Marker:      query.Get("marker"),
		NextMarker:  res.NextMarker,
		MaxKeys:     q.MaxKeys,
		IsTruncated: res.IsTruncated,
	}
	result.Contents, result.CommonPrefixes = renderListing(res)
	return h.writeXML(w, r, http.StatusOK, result)
}

func (h *Handler) listObjectsV2(w http.ResponseWriter, r *http.Request, bucket string, query url.Values) error {
	marker := query.Get("start-after")
	token := query.Get("continuation-token")
	if token != "" {
		decoded, err := base64.URLEncoding.DecodeString(token)
		if err != nil {
			return errInvalidArgument("The continuation token provided is incorrect")
		}
		marker = string(decoded)
	}
	q, err := listQueryFrom(query, marker)
	if err != nil {
		return err
	}
	res, err := h.svc.ListObjects(bucket, q)
	if err != nil {
		return err
	}
	result := listBucketResultV2{
		Name:              bucket,
		Prefix:            q.Prefix,
		Delimiter:         q.Delimiter,
		MaxKeys:           q.MaxKeys,
		IsTruncated:       res.IsTruncated,
		ContinuationToken: token,
		StartAfter:        query.Get("start-after"),
	}
	if res.NextMarker != "" {
		result.NextContinuationToken = base64.URLEncoding.EncodeToString([]byte(res.NextMarker))
	}
	result.Contents, result.CommonPrefixes = renderListing(res)
	result.KeyCount = len(result.Contents) + len(result.CommonPrefixes)
	return h.writeXML(w, r, http.StatusOK, result)
}

func listQueryFrom(query url.Values, marker string) (ListQuery, error) {
	q := ListQuery{
		Prefix:    query.Get("prefix"),
		Delimiter: query.Get("delimiter"),
		Marker:    marker,
	}
	if raw := query.Get("max-keys"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, errInvalidArgument("max-keys must be a non-negative integer")
		}
		q.MaxKeys = n
	}
	return q, nil
}

func renderListing(res *ListResult) ([]objectEntry, []prefixEntry) {
	contents := make([]objectEntry, 0, len(res.Objects))
	for _, obj := range res.Objects {
		contents = append(contents, objectEntry{
			Key:          obj.Key,
			LastModified: obj.LastModified.UTC().Format(timeFormat),
			ETag:         obj.ETag,
			Size:         obj.Size,
			StorageClass: "STANDARD",
			Owner:        Owner,
		})
	}
	prefixes := make([]prefixEntry, 0, len(res.CommonPrefixes))
	for _, p := range res.CommonPrefixes {
		prefixes = append(prefixes, prefixEntry{Prefix: p})
	}
	return contents, prefixes
}

func (h *Handler) createUpload(w http.ResponseWriter, r *http.Request, bucket, key string) error {
	id, err := h.svc.CreateMultipartUpload(bucket, key, metadataFromHeaders(r.Header))
	if err != nil {
		return err
	}
	return h.writeXML(w, r, http.StatusOK, initiateMultipartUploadResult{
		Bucket:   bucket,
		Key:      key,
		UploadID: id,
	})
}

func (h *Handler) uploadPart(w http.ResponseWriter, r *http.Request, bucket, key, uploadID, partNumber string) error {
	num, err := strconv.Atoi(partNumber)
	if err != nil {
		return errInvalidArgument("partNumber must be an integer")
	}
	data, rerr := io.ReadAll(r.Body)
	if rerr != nil {
		return errInvalidArgument("unable to read the request body")
	}
	etag, err := h.svc.UploadPart(bucket, key, uploadID, num, data)
	if err != nil {
		return err
	}
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) completeUpload(w http.ResponseWriter, r *http.Request, bucket, key, uploadID string) error {
	var manifest completeMultipartUpload
	if err := decodeXMLBody(r.Body, &manifest); err != nil {
		return err
	}
	parts := make([]CompletedPart, 0, len(manifest.Parts))
	for _, p := range manifest.Parts {
		parts = append(parts, CompletedPart{PartNumber: p.PartNumber, ETag: strings.TrimSpace(p.ETag)})
	}
	etag, err := h.svc.CompleteMultipartUpload(bucket, key, uploadID, parts)
	if err != nil {
		return err
	}
	return h.writeXML(w, r, http.StatusOK, completeMultipartUploadResult{
		Location: "/" + bucket + "/" + key,
		Bucket:   bucket,
		Key:      key,
		ETag:     etag,
	})
}

func (h *Handler) listUploads(w http.ResponseWriter, r *http.Request, bucket string) error {
	uploads, err := h.svc.ListMultipartUploads(bucket)
	if err != nil {
		return err
	}
	result := listMultipartUploadsResult{Bucket: bucket}
	for _, up := range uploads {
		result.Uploads = append(result.Uploads, uploadEntry{
			Key:       up.Key,
			UploadID:  up.UploadID,
			Initiated: up.CreatedAt.UTC().Format(timeFormat),
			Owner:     Owner,
		})
	}
	return h.writeXML(w, r, http.StatusOK, result)
}

func (h *Handler) listParts(w http.ResponseWriter, r *http.Request, bucket, key, uploadID string) error {
	parts, err := h.svc.ListParts(bucket, key, uploadID)
	if err != nil {
		return err
	}
	result := listPartsResult{Bucket: bucket, Key: key, UploadID: uploadID}
	for _, p := range parts {
		result.Parts = append(result.Parts, partEntry{PartNumber: p.PartNumber, ETag: p.ETag, Size: p.Size})
	}
	return h.writeXML(w, r, http.StatusOK, result)
}

// writeXML renders a success envelope with the XML declaration prepended,
// the way the service emits every XML body.
func (h *Handler) writeXML(w http.ResponseWriter, r *http.Request, status int, body any) error {
	w.Header().Set("Content-Type", contentTypeXML)
	w.Header().Set("x-amz-request-id", awsapi.RequestID(r.Context()))
	w.WriteHeader(status)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return nil
	}
	if err := xml.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("xml encode failed", zap.Error(err))
	}
	return nil
}

func decodeXMLBody(body io.Reader, into any) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return errInvalidArgument("unable to read the request body")
	}
	if err := xml.Unmarshal(data, into); err != nil {
		return errMalformedXML()
	}
	return nil
}

// metadataFromHeaders collects the user-visible metadata a put or
// create-multipart request carries.
func metadataFromHeaders(header http.Header) Metadata {
	meta := Metadata{
		ContentType:        header.Get("Content-Type"),
		ContentEncoding:    header.Get("Content-Encoding"),
		CacheControl:       header.Get("Cache-Control"),
		ContentLanguage:    header.Get("Content-Language"),
		ContentDisposition: header.Get("Content-Disposition"),
	}
	for name, values := range header {
		lower := strings.ToLower(name)
		if suffix, ok := strings.CutPrefix(lower, "x-amz-meta-"); ok && len(values) > 0 {
			if meta.User == nil {
				meta.User = make(map[string]string)
			}
			meta.User[suffix] = values[0]
		}
	}
	return meta
}

// writeMetadataHeaders mirrors stored metadata onto a get or head response.
func writeMetadataHeaders(header http.Header, obj *Object) {
	contentType := obj.Metadata.ContentType
	if contentType == "" {
		contentType = "binary/octet-stream"
	}
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	header.Set("ETag", obj.ETag)
	header.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	if v := obj.Metadata.ContentEncoding; v != "" {
		header.Set("Content-Encoding", v)
	}
	if v := obj.Metadata.CacheControl; v != "" {
		header.Set("Cache-Control", v)
	}
	if v := obj.Metadata.ContentLanguage; v != "" {
		header.Set("Content-Language", v)
	}
	if v := obj.Metadata.ContentDisposition; v != "" {
		header.Set("Content-Disposition", v)
	}
	for suffix, value := range obj.Metadata.User {
		header.Set("x-amz-meta-"+suffix, value)
	}
}
