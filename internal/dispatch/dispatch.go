// Package dispatch classifies incoming requests to the emulated service
// that should handle them. One listening port serves every service, the way
// the AWS edge does; the classification keys on the X-Amz-Target header and
// the path shape.
package dispatch

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ruststack/internal/awsapi"
	"ruststack/internal/lambda"
	"ruststack/internal/s3"
	apperrors "ruststack/pkg/errors"
)

// Service names the emulated service a request classifies to.
type Service string

const (
	ServiceS3       Service = "s3"
	ServiceDynamoDB Service = "dynamodb"
	ServiceLambda   Service = "lambda"
)

// Classify decides which service a request belongs to, in order: a
// DynamoDB target header wins, then the Lambda control-plane path, then
// everything else is S3.
func Classify(r *http.Request) Service {
	target := r.Header.Get(awsapi.AmzTargetHeader)
	if strings.HasPrefix(target, "DynamoDB_") {
		return ServiceDynamoDB
	}
	if strings.HasPrefix(r.URL.Path, lambda.ControlPlanePrefix) || strings.HasPrefix(target, "AWSLambda") {
		return ServiceLambda
	}
	return ServiceS3
}

// Enabled records which services the process serves. Requests classified to
// a disabled service answer 503 in the matching envelope.
type Enabled struct {
	S3       bool
	DynamoDB bool
	Lambda   bool
}

// Services lists the enabled service names in the order the health endpoint
// reports them.
func (e Enabled) Services() []string {
	var out []string
	if e.S3 {
		out = append(out, string(ServiceS3))
	}
	if e.DynamoDB {
		out = append(out, string(ServiceDynamoDB))
	}
	if e.Lambda {
		out = append(out, string(ServiceLambda))
	}
	return out
}

// Dispatcher fans requests out to the per-service handlers.
type Dispatcher struct {
	s3Handler     http.Handler
	dynamoHandler http.Handler
	lambdaHandler http.Handler
	enabled       Enabled
	logger        *zap.Logger
}

// New assembles a dispatcher over the three service handlers.
func New(s3h, dynamoh, lambdah http.Handler, enabled Enabled, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		s3Handler:     s3h,
		dynamoHandler: dynamoh,
		lambdaHandler: lambdah,
		enabled:       enabled,
		logger:        logger,
	}
}

// ServeHTTP classifies and forwards one request.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc := Classify(r)
	requestID := awsapi.RequestID(r.Context())

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, awsapi.SigV4AuthorizationPrefix) {
		if sig, err := awsapi.ParseSigV4(auth); err == nil {
			d.logger.Debug("request classified",
				zap.String("request_id", requestID),
				zap.String("service", string(svc)),
				zap.String("key_id", sig.KeyID),
				zap.String("region", sig.Region),
				zap.String("signed_service", sig.Service),
			)
		}
	}

	switch svc {
	case ServiceDynamoDB:
		if !d.enabled.DynamoDB {
			d.unavailableJSON(w, requestID)
			return
		}
		d.dynamoHandler.ServeHTTP(w, r)
	case ServiceLambda:
		if !d.enabled.Lambda {
			d.unavailableJSON(w, requestID)
			return
		}
		d.lambdaHandler.ServeHTTP(w, r)
	default:
		if !d.enabled.S3 {
			s3.WriteError(w, d.logger, requestID, errServiceUnavailable())
			return
		}
		d.s3Handler.ServeHTTP(w, r)
	}
}

func errServiceUnavailable() *apperrors.AppError {
	return &apperrors.AppError{
		Kind:    apperrors.KindInternal,
		Code:    "ServiceUnavailable",
		Message: "The requested service is not enabled on this endpoint.",
		Status:  http.StatusServiceUnavailable,
	}
}

// unavailableJSON answers a disabled JSON-protocol service. The envelope
// matches the x-amz-json error shape so SDK clients surface a typed error.
func (d *Dispatcher) unavailableJSON(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"__type":"ServiceUnavailable","message":"The requested service is not enabled on this endpoint."}`))
}
