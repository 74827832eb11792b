// Package types holds the wire envelopes shared by every HTTP handler.
package types

// SuccessEnvelope wraps successful responses so clients always unwrap the
// same top-level key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Code values mirror the error
// package's taxonomy; Details carries field-level validation feedback.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps failed responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
