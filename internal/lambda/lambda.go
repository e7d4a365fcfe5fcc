// Package lambda is the function-service boundary. The emulator routes
// Lambda-shaped requests here but carries no runtime: listing functions
// answers an empty set and everything else reports the resource as absent.
package lambda

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ruststack/internal/awsapi"
)

// ControlPlanePrefix is the path prefix of the Lambda control-plane API.
const ControlPlanePrefix = "/2015-03-31/"

const contentTypeJSON = "application/json"

// Handler serves the Lambda control-plane boundary.
type Handler struct {
	logger *zap.Logger
}

// NewHandler builds the boundary stub.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

type functionList struct {
	Functions  []struct{} `json:"Functions"`
	NextMarker *string    `json:"NextMarker"`
}

type lambdaError struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// ServeHTTP answers the control-plane surface the emulator exposes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := awsapi.RequestID(r.Context())
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("x-amz-request-id", requestID)

	if r.Method == http.MethodGet && strings.TrimSuffix(r.URL.Path, "/") == ControlPlanePrefix+"functions" {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(functionList{Functions: []struct{}{}})
		return
	}

	h.logger.Debug("lambda resource not found",
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(lambdaError{
		Type:    "ResourceNotFoundException",
		Message: "Function not found: " + r.URL.Path,
	})
}
