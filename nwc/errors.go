package nwc

import "errors"

var (
	// ErrInvalidURI means the connection string is malformed or
	// incomplete; never retried, surfaced to whoever supplied it
	ErrInvalidURI = errors.New("invalid wallet connect URI")

	// ErrTimeout means no correlated response arrived within the
	// request window; wrapped with the method name
	ErrTimeout = errors.New("wallet request timed out")

	// ErrPublishFailed means the signed request could not be delivered
	// to the wallet relay
	ErrPublishFailed = errors.New("failed to publish wallet request")

	// ErrDecryptionFailed means a response arrived but could not be
	// decrypted or parsed - a protocol mismatch, not transient loss
	ErrDecryptionFailed = errors.New("failed to decrypt wallet response")

	// ErrEmptyResult means the wallet response carried neither result
	// nor error - a protocol violation
	ErrEmptyResult = errors.New("wallet response had neither result nor error")
)

// WalletError is a business-level failure reported by the wallet
// itself (insufficient balance, payment failed, ...). Always surfaced
// verbatim.
type WalletError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *WalletError) Error() string {
	return e.Code + ": " + e.Message
}

// Standard NIP-47 wallet error codes
const (
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeNotImplemented      = "NOT_IMPLEMENTED"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeRestricted          = "RESTRICTED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL"
	ErrCodeOther               = "OTHER"
	ErrCodePaymentFailed       = "PAYMENT_FAILED"
	ErrCodeNotFound            = "NOT_FOUND"
)
