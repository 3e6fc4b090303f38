package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoCodeFound    = errors.New("no code found for this email")
	ErrCodeExpired    = errors.New("code has expired")
	ErrInvalidCode    = errors.New("invalid code")
	ErrDispatchFailed = errors.New("failed to send email")
)
