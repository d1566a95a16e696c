// Package faults defines the error taxonomy surfaced to document
// senders. A UserFacingError carries a stable machine code plus a
// message safe to show verbatim; everything else stays an internal
// error and is logged, not forwarded.
package faults

import "fmt"

// Code is a stable machine-readable failure category.
type Code string

const (
	// CodeInvalidDocumentType means the document body carried no
	// recognizable type signature.
	CodeInvalidDocumentType Code = "INVALID_DOCUMENT_TYPE"
	// CodeMissingRecipientAddress means the parsed document declares no
	// endpoint for the addressed party.
	CodeMissingRecipientAddress Code = "MISSING_RECIPIENT_ADDRESS"
	// CodeProcessIdentifierUnavailable means no process identifier could
	// be determined for the document type.
	CodeProcessIdentifierUnavailable Code = "PROCESS_IDENTIFIER_UNAVAILABLE"
	// CodeTransmissionFailed means the network leg itself failed.
	CodeTransmissionFailed Code = "TRANSMISSION_FAILED"
	// CodeInvalidIntegrationConfig means an integration configuration
	// is incompatible with the plugin's manifest.
	CodeInvalidIntegrationConfig Code = "INVALID_INTEGRATION_CONFIG"
	// CodeUnsupportedPluginVersion means a plugin answered with a
	// protocol version this node does not speak.
	CodeUnsupportedPluginVersion Code = "UNSUPPORTED_PLUGIN_VERSION"
)

// UserFacingError is a failure whose message is intended for the
// document sender, not just the operator log.
type UserFacingError struct {
	Code    Code
	Message string

	// AdditionalContext carries verbatim diagnostic detail from a
	// collaborator, e.g. the transport error text. Optional.
	AdditionalContext string
}

func (e *UserFacingError) Error() string {
	if e.AdditionalContext != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.AdditionalContext)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a UserFacingError without additional context.
func New(code Code, format string, args ...any) *UserFacingError {
	return &UserFacingError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithContext builds a UserFacingError carrying collaborator detail.
func WithContext(code Code, message, additionalContext string) *UserFacingError {
	return &UserFacingError{Code: code, Message: message, AdditionalContext: additionalContext}
}
