package s3

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "ruststack/pkg/errors"
)

const (
	codeNoSuchBucket     = "NoSuchBucket"
	codeNoSuchKey        = "NoSuchKey"
	codeNoSuchUpload     = "NoSuchUpload"
	codeBucketExists     = "BucketAlreadyOwnedByYou"
	codeBucketNotEmpty   = "BucketNotEmpty"
	codeInvalidArgument  = "InvalidArgument"
	codeInvalidPart      = "InvalidPart"
	codeInvalidPartOrder = "InvalidPartOrder"
	codeMalformedXML     = "MalformedXML"
	codeMethodNotAllowed = "MethodNotAllowed"

	contentTypeXML = "application/xml"
)

func errNoSuchBucket(name string) *apperrors.AppError {
	return apperrors.NewAbsent(codeNoSuchBucket, "The specified bucket does not exist").WithResource("/" + name)
}

func errNoSuchKey(bucket, key string) *apperrors.AppError {
	return apperrors.NewAbsent(codeNoSuchKey, "The specified key does not exist.").WithResource("/" + bucket + "/" + key)
}

func errNoSuchUpload(uploadID string) *apperrors.AppError {
	return apperrors.NewAbsent(codeNoSuchUpload,
		fmt.Sprintf("The specified upload does not exist. The upload ID may be invalid, or the upload may have been aborted or completed. Upload ID: %s", uploadID))
}

func errBucketExists(name string) *apperrors.AppError {
	return apperrors.NewConflict(codeBucketExists,
		"Your previous request to create the named bucket succeeded and you already own it.").WithResource("/" + name)
}

func errBucketNotEmpty(name string) *apperrors.AppError {
	return apperrors.NewConflict(codeBucketNotEmpty,
		"The bucket you tried to delete is not empty").WithResource("/" + name)
}

func errInvalidArgument(message string) *apperrors.AppError {
	return apperrors.NewValidation(codeInvalidArgument, message)
}

func errInvalidPart(partNumber int) *apperrors.AppError {
	return apperrors.NewValidation(codeInvalidPart,
		fmt.Sprintf("One or more of the specified parts could not be found. Part number: %d", partNumber))
}

func errInvalidPartOrder() *apperrors.AppError {
	return apperrors.NewValidation(codeInvalidPartOrder,
		"The list of parts was not in ascending order. Parts must be ordered by part number.")
}

func errMalformedXML() *apperrors.AppError {
	return apperrors.NewValidation(codeMalformedXML,
		"The XML you provided was not well-formed or did not validate against our published schema")
}

func errMethodNotAllowed(method string) *apperrors.AppError {
	return apperrors.NewValidation(codeMethodNotAllowed,
		"The specified method is not allowed against this resource.").WithStatus(http.StatusMethodNotAllowed).WithResource(method)
}

// errorResponse is the S3 XML error envelope.
type errorResponse struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId"`
}

// WriteError renders an error as the S3 XML envelope. Exported so the
// dispatcher can answer in kind for requests it refuses before the engine
// sees them.
func WriteError(w http.ResponseWriter, logger *zap.Logger, requestID string, err error) {
	app := apperrors.AsAppError(err)
	if app.Kind == apperrors.KindInternal && logger != nil {
		logger.Error("s3 request failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
	code := app.Code
	if code == "" {
		code = "InternalError"
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(app.Status)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(errorResponse{
		Code:      code,
		Message:   app.Message,
		Resource:  app.Resource,
		RequestID: requestID,
	})
}
