package document

import (
	"strings"

	"github.com/beevik/etree"
)

// Type is the coarse business type detected from a document body.
type Type string

const (
	TypeInvoice               Type = "invoice"
	TypeCreditNote            Type = "creditNote"
	TypeSelfBillingInvoice    Type = "selfBillingInvoice"
	TypeSelfBillingCreditNote Type = "selfBillingCreditNote"
	// TypeMessageLevelResponse is an ApplicationResponse carrying a
	// message level response. Routable, but carries no billing fields
	// worth extracting: it is transmitted from the raw body alone.
	TypeMessageLevelResponse Type = "messageLevelResponse"
	// TypeUnknown marks a document that parsed as XML but matched no
	// specific parser. Such documents may still be transmitted raw.
	TypeUnknown Type = "unknown"
)

// Detect inspects the raw document body and extracts a coarse
// document-type signature from the root element and customization
// identifier.
//
// The second return value is false when no recognizable signature is
// found. That is not an error: callers must treat it as "cannot
// proceed, ask the sender to clarify", not as a retryable fault.
func Detect(body []byte) (Type, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return "", false
	}
	root := doc.Root()
	if root == nil {
		return "", false
	}

	selfBilling := strings.Contains(strings.ToLower(childText(root, "CustomizationID")), "selfbilling")

	switch root.Tag {
	case "Invoice":
		if selfBilling {
			return TypeSelfBillingInvoice, true
		}
		return TypeInvoice, true
	case "CreditNote":
		if selfBilling {
			return TypeSelfBillingCreditNote, true
		}
		return TypeCreditNote, true
	case "ApplicationResponse":
		return TypeMessageLevelResponse, true
	}
	return "", false
}

// child returns the first child element with the given local name,
// regardless of namespace prefix.
func child(e *etree.Element, name string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

// childText returns the trimmed text of the first matching child
// element, or "" when absent.
func childText(e *etree.Element, name string) string {
	c := child(e, name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// find walks a path of local names from e.
func find(e *etree.Element, path ...string) *etree.Element {
	for _, name := range path {
		if e == nil {
			return nil
		}
		e = child(e, name)
	}
	return e
}
