// Package document classifies, parses, and validates business documents
// ahead of transmission.
//
// Classification (Detect) inspects the raw XML body for a coarse
// document-type signature without a full schema parse. Parsing (Parse)
// dispatches to a type-specific extractor that pulls the routing and
// display fields the access point needs: party endpoint identifiers,
// document number, currency. A document whose type cannot be matched to
// a specific parser may still be transmitted from its raw body alone;
// structured parsing is only required for rendering, billing, and
// detailed validation.
//
// Validation is delegated to an external rules engine behind the
// Validator interface. The enforcement policy is asymmetric: an invalid
// document is a hard stop when it arrived by email forwarding, but only
// a stored warning when submitted directly through the API, where the
// caller is assumed to have validated already.
package document
