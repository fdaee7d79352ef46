// Package rpc is the worker channel (spec §5, §6.1): an out-of-band,
// newline-delimited JSON transport over a Unix domain socket that
// dispatches the same named operations the HTTP boundary exposes,
// carrying (operation, args) in and a Value or typed error out.
//
// The framing here is grounded on the teacher's daemon RPC protocol
// (internal/rpc/client.go's bufio-framed, newline-terminated JSON
// exchange): a request line in, a response line out, one per
// connection round trip.
package rpc

import "github.com/untoldecay/moobase/internal/opserr"

// Request is one worker-channel call.
type Request struct {
	// RequestID identifies the call for logging and client-side
	// correlation; the client fills it in if empty.
	RequestID string   `json:"request_id"`
	Operation string   `json:"operation"`
	Args      []string `json:"args"`
	// APIKey authenticates the caller, resolved the same way the HTTP
	// boundary resolves its auth header (users.Store.GetByAPIKey).
	APIKey string `json:"api_key,omitempty"`
}

// Response is the worker channel's reply to a Request.
type Response struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	// ErrorKind is the opserr.Kind string, empty on success.
	ErrorKind string `json:"error_kind,omitempty"`
}

func errorResponse(requestID string, err error) Response {
	return Response{
		RequestID: requestID,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(opserr.KindOf(err)),
	}
}
