package dynamo

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ruststack/internal/awsapi"
	apperrors "ruststack/pkg/errors"
)

// TargetPrefix is the X-Amz-Target namespace every DynamoDB operation
// carries.
const TargetPrefix = "DynamoDB_20120810."

// Handler serves the x-amz-json-1.0 protocol: it resolves the operation
// from the X-Amz-Target header, decodes and validates the JSON input and
// renders the output or the error envelope.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler wires the document store behind the HTTP surface.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// ServeHTTP handles one operation call.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := awsapi.RequestID(r.Context())
	op, ok := strings.CutPrefix(r.Header.Get(awsapi.AmzTargetHeader), TargetPrefix)
	if !ok || op == "" {
		writeError(w, h.logger, requestID, errUnknownOperation(r.Header.Get(awsapi.AmzTargetHeader)))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.logger, requestID, errValidation("unable to read the request body"))
		return
	}

	out, err := h.dispatch(op, body)
	if err != nil {
		writeError(w, h.logger, requestID, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeAmzJSON1_0)
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error("json encode failed",
			zap.String("request_id", requestID),
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}

// dispatch decodes the input shape for one operation and runs it.
func (h *Handler) dispatch(op string, body []byte) (any, error) {
	switch op {
	case "CreateTable":
		input := new(CreateTableInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		desc, err := h.svc.CreateTable(input)
		if err != nil {
			return nil, err
		}
		return &CreateTableOutput{TableDescription: desc}, nil
	case "DeleteTable":
		input := new(DeleteTableInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		desc, err := h.svc.DeleteTable(input.TableName)
		if err != nil {
			return nil, err
		}
		return &DeleteTableOutput{TableDescription: desc}, nil
	case "DescribeTable":
		input := new(DescribeTableInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		desc, err := h.svc.DescribeTable(input.TableName)
		if err != nil {
			return nil, err
		}
		return &DescribeTableOutput{Table: desc}, nil
	case "ListTables":
		input := new(ListTablesInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.ListTables(input)
	case "PutItem":
		input := new(PutItemInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.PutItem(input)
	case "GetItem":
		input := new(GetItemInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.GetItem(input)
	case "UpdateItem":
		input := new(UpdateItemInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.UpdateItem(input)
	case "DeleteItem":
		input := new(DeleteItemInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.DeleteItem(input)
	case "Query":
		input := new(QueryInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.Query(input)
	case "Scan":
		input := new(ScanInput)
		if err := h.decode(body, input); err != nil {
			return nil, err
		}
		return h.svc.Scan(input)
	default:
		return nil, errUnknownOperation(TargetPrefix + op)
	}
}

// decode unmarshals and validates one input shape. Validation failures come
// back as ValidationException, matching the service's schema checks.
func (h *Handler) decode(body []byte, into any) error {
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, into); err != nil {
		return errValidation("invalid request body: %v", err)
	}
	if err := h.validate.Struct(into); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) && len(verr) > 0 {
			return errValidation("invalid value for field %s", verr[0].Field())
		}
		return errValidation("%v", err)
	}
	return nil
}

func errUnknownOperation(target string) *apperrors.AppError {
	return apperrors.NewValidation(codeUnknownOperation,
		"Unknown operation: "+target)
}
