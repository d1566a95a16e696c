package document

import "context"

// Source identifies how a document entered the pipeline. The
// enforcement policy for validation failures depends on it.
type Source string

const (
	// SourceAPI marks a document submitted directly through the API.
	SourceAPI Source = "api"
	// SourceEmail marks a document forwarded as a raw email attachment.
	SourceEmail Source = "email"
)

// Finding is one field-attributed validation message.
type Finding struct {
	// Field names the document field the finding applies to.
	Field string `json:"field"`
	// Message is the human-readable description, safe to show verbatim.
	Message string `json:"message"`
	// Rule is the machine rule code that produced the finding.
	Rule string `json:"rule"`
}

// ValidationResult is the outcome of validating one document. Computed
// fresh per document; never cached.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Findings []Finding `json:"findings,omitempty"`
}

// Validator is the external business-rules engine collaborator.
type Validator interface {
	ValidateDocument(ctx context.Context, body []byte) (*ValidationResult, error)
}

// BlocksTransmission applies the enforcement policy: an invalid result
// is a hard stop for email-submitted documents and a stored warning for
// API documents. Self-service API callers are assumed to have validated
// already; forwarded raw email attachments are assumed not to have
// been.
func (r *ValidationResult) BlocksTransmission(source Source) bool {
	if r == nil || r.Valid {
		return false
	}
	return source == SourceEmail
}
