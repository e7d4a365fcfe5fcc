// Package awsapi holds the wire-level helpers shared by the emulated
// services: AWS SigV4 Authorization parsing, the X-Amz-Target header, and
// request-id plumbing.
package awsapi

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	// SigV4AuthorizationPrefix marks a request signed with AWS Signature
	// Version 4. The emulator parses the header for logging but never
	// verifies the signature.
	SigV4AuthorizationPrefix = "AWS4-HMAC-SHA256"

	// AmzTargetHeader carries the JSON-protocol operation name, e.g.
	// "DynamoDB_20120810.PutItem".
	AmzTargetHeader = "X-Amz-Target"

	// AmzRequestIDHeader echoes the request id assigned by the server.
	AmzRequestIDHeader = "x-amz-request-id"
)

// SigV4 contains the parsed content of an AWS SigV4 Authorization header.
type SigV4 struct {
	// KeyID is the AWS access-key-id of the caller.
	KeyID string
	// Date is the credential scope date in YYYYMMDD form.
	Date string
	// Region is the credential scope region.
	Region string
	// Service is the credential scope service ("s3", "dynamodb", ...).
	Service string
	// SignedHeaders lists the headers covered by the signature.
	SignedHeaders []string
	// Signature is the hex signature. Never verified here.
	Signature string
}

// ParseSigV4 splits an Authorization header of the form
//
//	AWS4-HMAC-SHA256 Credential=AKID/20130524/us-east-1/s3/aws4_request,
//	SignedHeaders=host;x-amz-date, Signature=fe5f...
//
// into its sections. It returns an error on malformed input; callers treat
// that as a logging inconvenience, not a request failure.
func ParseSigV4(header string) (*SigV4, error) {
	if header == "" {
		return nil, fmt.Errorf("empty authorization header")
	}

	m := make(map[string]string)
	for _, section := range strings.Split(header, " ") {
		kv := strings.SplitN(section, "=", 2)
		if len(kv) != 2 {
			continue
		}
		m[kv[0]] = strings.TrimSuffix(kv[1], ",")
	}

	credParts := strings.Split(m["Credential"], "/")
	if len(credParts) != 5 {
		return nil, fmt.Errorf("invalid Credential section %q", m["Credential"])
	}

	sig := SigV4{
		KeyID:     credParts[0],
		Date:      credParts[1],
		Region:    credParts[2],
		Service:   credParts[3],
		Signature: m["Signature"],
	}
	if sig.Signature == "" {
		return nil, fmt.Errorf("missing Signature section")
	}
	if v := m["SignedHeaders"]; v != "" {
		sig.SignedHeaders = strings.Split(v, ";")
	}
	return &sig, nil
}

// IsSigV4 reports whether the request carries a SigV4 Authorization header.
func IsSigV4(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), SigV4AuthorizationPrefix)
}
