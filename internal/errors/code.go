package errors

import (
	"fmt"
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
)

// Credit service error reasons.
//
// Only hard failures are errors. Quota and subscription outcomes of the usage
// gate are returned as result data (see biz.UsageError).
//
// Modules:
//   INTERNAL_*  internal RPC gate
//   REQUEST_*   malformed input, missing identity
//   WEBHOOK_*   provider callbacks
//   CUSTOMER_*  customer directory
//   PROVIDER_*  payment provider API
//   LEDGER_*    storage and locking

// Internal RPC gate
const (
	// ReasonInternalKeyInvalid key absent or mismatched
	ReasonInternalKeyInvalid = "INTERNAL_KEY_INVALID"
	// ReasonInternalKeyNotConfigured server has no key configured
	ReasonInternalKeyNotConfigured = "INTERNAL_KEY_NOT_CONFIGURED"
)

// Request
const (
	ReasonInvalidArgument = "REQUEST_INVALID_ARGUMENT"
	ReasonUnauthenticated = "REQUEST_UNAUTHENTICATED"
)

// Webhook
const (
	// ReasonWebhookSignatureInvalid signature, timestamp or headers rejected
	ReasonWebhookSignatureInvalid = "WEBHOOK_SIGNATURE_INVALID"
	// ReasonWebhookPayloadInvalid body did not match the event schema
	ReasonWebhookPayloadInvalid = "WEBHOOK_PAYLOAD_INVALID"
	// ReasonWebhookInFlight an earlier attempt of the same delivery is still running
	ReasonWebhookInFlight = "WEBHOOK_IN_FLIGHT"
)

// Customer directory
const (
	ReasonCustomerNotFound = "CUSTOMER_NOT_FOUND"
	ReasonUnknownProduct   = "CUSTOMER_UNKNOWN_PRODUCT"
)

// Payment provider
const (
	ReasonProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	ReasonProviderRequestFailed = "PROVIDER_REQUEST_FAILED"
)

// Ledger
const (
	ReasonLedgerLockFailed = "LEDGER_LOCK_FAILED"
	ReasonLedgerStorage    = "LEDGER_STORAGE_ERROR"
)

func ErrInternalKeyInvalid() *errors.Error {
	return errors.Unauthorized(ReasonInternalKeyInvalid, "invalid internal key")
}

func ErrInternalKeyNotConfigured() *errors.Error {
	return errors.InternalServer(ReasonInternalKeyNotConfigured, "internal key is not configured")
}

func ErrInvalidArgument(format string, args ...interface{}) *errors.Error {
	return errors.New(http.StatusBadRequest, ReasonInvalidArgument, fmt.Sprintf(format, args...))
}

func ErrUnauthenticated() *errors.Error {
	return errors.Unauthorized(ReasonUnauthenticated, "missing or invalid session")
}

func ErrWebhookSignatureInvalid(cause error) *errors.Error {
	return errors.Unauthorized(ReasonWebhookSignatureInvalid, "invalid webhook signature").WithCause(cause)
}

func ErrWebhookPayloadInvalid(cause error) *errors.Error {
	return errors.BadRequest(ReasonWebhookPayloadInvalid, "invalid webhook payload").WithCause(cause)
}

func ErrWebhookInFlight(deliveryID string) *errors.Error {
	return errors.Conflict(ReasonWebhookInFlight, fmt.Sprintf("delivery %s is being processed", deliveryID))
}

func ErrCustomerNotFound() *errors.Error {
	return errors.NotFound(ReasonCustomerNotFound, "no billing customer for this account")
}

func ErrUnknownProduct(productID string) *errors.Error {
	return errors.New(http.StatusBadRequest, ReasonUnknownProduct, fmt.Sprintf("unknown product %q", productID))
}

func ErrProviderNotConfigured() *errors.Error {
	return errors.ServiceUnavailable(ReasonProviderNotConfigured, "payment provider is not configured")
}

func ErrProviderRequestFailed(cause error) *errors.Error {
	return errors.ServiceUnavailable(ReasonProviderRequestFailed, "payment provider request failed").WithCause(cause)
}

func ErrLedgerLockFailed(cause error) *errors.Error {
	return errors.Conflict(ReasonLedgerLockFailed, "ledger is busy, retry").WithCause(cause)
}

func ErrLedgerStorage(cause error) *errors.Error {
	return errors.InternalServer(ReasonLedgerStorage, "ledger storage error").WithCause(cause)
}
