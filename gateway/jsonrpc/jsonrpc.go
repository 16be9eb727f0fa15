// Package jsonrpc carries the wire envelope and the gateway's failure
// taxonomy. The gateway is protocol-agnostic at the method/param level: it
// relays envelopes without interpreting them, so the types here keep params,
// results, and ids as raw JSON.
package jsonrpc

import (
	"encoding/json"
	"net/http"
)

const Version = "2.0"

// Request is an inbound JSON-RPC 2.0 call. Params and ID are relayed verbatim.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is an outbound JSON-RPC 2.0 reply.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object, relayed for upstream protocol errors
// and synthesized for gateway rejections.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes emitted by the gateway itself. Standard codes stay in
// the -32700/-32600 range; gateway-specific classes use the -32000 block.
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeUnauthorized    = -32001
	CodeDeactivated     = -32002
	CodeSourceDenied    = -32003
	CodeNetworkUnknown  = -32004
	CodeProviderMissing = -32005
	CodeUpstreamDown    = -32006
)

// Reserved WebSocket application close codes, one per failure class so a
// streaming caller can distinguish rejections without parsing the reason.
const (
	CloseCredentialMissing     = 4001
	CloseCredentialMalformed   = 4002
	CloseCredentialInvalid     = 4003
	CloseCredentialDeactivated = 4004
	CloseSourceNotAllowed      = 4005
	CloseNetworkUnsupported    = 4006
	CloseProviderMissing       = 4010
	CloseUpstreamUnavailable   = 4011
	CloseUpstreamError         = 4012
)

// Failure is one rejection class with its representation on both transports.
// It implements error so call sites can classify with errors.As.
type Failure struct {
	HTTPStatus int
	Code       int
	Message    string
	CloseCode  int
}

func (f *Failure) Error() string { return f.Message }

var (
	ErrCredentialMissing     = &Failure{HTTPStatus: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "credential missing", CloseCode: CloseCredentialMissing}
	ErrCredentialMalformed   = &Failure{HTTPStatus: http.StatusBadRequest, Code: CodeInvalidRequest, Message: "credential malformed", CloseCode: CloseCredentialMalformed}
	ErrCredentialInvalid     = &Failure{HTTPStatus: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "credential invalid", CloseCode: CloseCredentialInvalid}
	ErrCredentialDeactivated = &Failure{HTTPStatus: http.StatusForbidden, Code: CodeDeactivated, Message: "credential deactivated", CloseCode: CloseCredentialDeactivated}
	ErrSourceNotAllowed      = &Failure{HTTPStatus: http.StatusForbidden, Code: CodeSourceDenied, Message: "source not allowed", CloseCode: CloseSourceNotAllowed}
	ErrNetworkUnsupported    = &Failure{HTTPStatus: http.StatusBadRequest, Code: CodeNetworkUnknown, Message: "network not supported", CloseCode: CloseNetworkUnsupported}
	ErrProviderMissing       = &Failure{HTTPStatus: http.StatusServiceUnavailable, Code: CodeProviderMissing, Message: "provider credentials not configured", CloseCode: CloseProviderMissing}
	ErrUpstreamUnavailable   = &Failure{HTTPStatus: http.StatusBadGateway, Code: CodeUpstreamDown, Message: "upstream unavailable, please retry", CloseCode: CloseUpstreamUnavailable}
	ErrUpstreamError         = &Failure{HTTPStatus: http.StatusBadGateway, Code: CodeUpstreamDown, Message: "upstream connection error", CloseCode: CloseUpstreamError}
)

// WriteFailure emits the JSON-RPC-shaped error envelope for a rejection.
// Rejections always carry a null id: most fire before the body is read.
func WriteFailure(w http.ResponseWriter, failure *Failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(failure.HTTPStatus)
	resp := Response{
		JSONRPC: Version,
		ID:      json.RawMessage("null"),
		Error:   &Error{Code: failure.Code, Message: failure.Message},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// CloseReason renders the compact JSON reason attached to a WebSocket close
// frame. Close reasons are capped at 125 bytes by the protocol, so the
// message must stay short.
func CloseReason(failure *Failure) string {
	payload, err := json.Marshal(map[string]*Error{
		"error": {Code: failure.Code, Message: failure.Message},
	})
	if err != nil {
		return failure.Message
	}
	return string(payload)
}
