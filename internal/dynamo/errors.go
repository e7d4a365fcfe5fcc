package dynamo

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "ruststack/pkg/errors"
)

// wireNamespace prefixes every error code in the JSON error envelope.
const wireNamespace = "com.amazonaws.dynamodb.v20120810"

const (
	codeResourceNotFound  = "ResourceNotFoundException"
	codeResourceInUse     = "ResourceInUseException"
	codeValidation        = "ValidationException"
	codeConditionFailed   = "ConditionalCheckFailedException"
	codeUnknownOperation  = "UnknownOperationException"
	codeInternalFailure   = "InternalFailure"
	contentTypeAmzJSON1_0 = "application/x-amz-json-1.0"
)

func errTableNotFound(name string) *apperrors.AppError {
	return apperrors.NewAbsent(codeResourceNotFound,
		fmt.Sprintf("Requested resource not found: Table: %s not found", name)).WithResource(name)
}

func errTableExists(name string) *apperrors.AppError {
	return apperrors.NewConflict(codeResourceInUse,
		fmt.Sprintf("Table already exists: %s", name)).WithResource(name)
}

func errValidation(format string, args ...any) *apperrors.AppError {
	return apperrors.NewValidationf(codeValidation, format, args...)
}

func errConditionFailed() *apperrors.AppError {
	return apperrors.NewCondition(codeConditionFailed, "The conditional request failed")
}

type errorEnvelope struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// writeError renders an error as the x-amz-json-1.0 envelope with the
// namespaced __type discriminator SDK clients dispatch on.
func writeError(w http.ResponseWriter, logger *zap.Logger, requestID string, err error) {
	app := apperrors.AsAppError(err)
	if app.Kind == apperrors.KindInternal {
		logger.Error("dynamodb request failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
	code := app.Code
	if code == "" || code == "InternalError" {
		code = codeInternalFailure
	}
	w.Header().Set("Content-Type", contentTypeAmzJSON1_0)
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(app.Status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Type:    wireNamespace + "#" + code,
		Message: app.Message,
	})
}
