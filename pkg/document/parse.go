package document

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/fourcornerlabs/go-peppol/pkg/identifier"
)

// Party is a trading party extracted from a document.
type Party struct {
	// EndpointScheme and EndpointID form the party's network address
	// (e.g. scheme "0208", id "0123456789"). Empty when the document
	// declares no endpoint for the party.
	EndpointScheme string `json:"endpointScheme,omitempty"`
	EndpointID     string `json:"endpointId,omitempty"`

	Name        string `json:"name,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// Address returns the party's network address. The second return value
// is false when the document declares no endpoint for the party.
func (p Party) Address() (identifier.Address, bool) {
	if p.EndpointScheme == "" || p.EndpointID == "" {
		return identifier.Address{}, false
	}
	return identifier.Address{Scheme: p.EndpointScheme, Value: p.EndpointID}, true
}

// Parsed is the structured representation of a business document. Only
// the fields the access point routes, renders, and bills on are
// extracted; the full schema stays with the raw body.
type Parsed struct {
	Type Type `json:"type"`

	Number       string `json:"number,omitempty"`
	IssueDate    string `json:"issueDate,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`

	// Supplier is the seller party (AccountingSupplierParty).
	Supplier Party `json:"supplier"`
	// Customer is the buyer party (AccountingCustomerParty).
	Customer Party `json:"customer"`

	SelfBilling bool `json:"selfBilling,omitempty"`
}

// RecipientAddress determines the addressed party for delivery: the
// buyer for regular documents, the seller for self-billing documents
// (where the buyer issues the document on the seller's behalf).
func (p *Parsed) RecipientAddress() (identifier.Address, bool) {
	if p.SelfBilling {
		return p.Supplier.Address()
	}
	return p.Customer.Address()
}

// RecipientSection names the XML section expected to carry the
// recipient endpoint for diagnostics.
func (p *Parsed) RecipientSection() string {
	if p.SelfBilling {
		return "cac:AccountingSupplierParty/cac:Party/cbc:EndpointID"
	}
	return "cac:AccountingCustomerParty/cac:Party/cbc:EndpointID"
}

// Parse dispatches to a type-specific parser for the detected type.
//
// When no specific parser matches the type (message level responses,
// type "unknown"), Parse returns (nil, nil): transmission may still
// proceed from the raw body alone. A body that fails to parse as XML
// for a known type is an error.
func Parse(typ Type, body []byte) (*Parsed, error) {
	switch typ {
	case TypeInvoice, TypeSelfBillingInvoice, TypeCreditNote, TypeSelfBillingCreditNote:
		return parseBillingDocument(typ, body)
	default:
		return nil, nil
	}
}

// parseBillingDocument extracts the shared UBL billing fields. Invoice
// and credit note share the party and header layout.
func parseBillingDocument(typ Type, body []byte) (*Parsed, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("parsing %s body: %w", typ, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("parsing %s body: no root element", typ)
	}

	parsed := &Parsed{
		Type:         typ,
		Number:       childText(root, "ID"),
		IssueDate:    childText(root, "IssueDate"),
		CurrencyCode: childText(root, "DocumentCurrencyCode"),
		Supplier:     parseParty(find(root, "AccountingSupplierParty", "Party")),
		Customer:     parseParty(find(root, "AccountingCustomerParty", "Party")),
		SelfBilling:  typ == TypeSelfBillingInvoice || typ == TypeSelfBillingCreditNote,
	}
	return parsed, nil
}

func parseParty(e *etree.Element) Party {
	if e == nil {
		return Party{}
	}
	party := Party{
		Name:        childText(find(e, "PartyLegalEntity"), "RegistrationName"),
		CountryCode: childText(find(e, "PostalAddress", "Country"), "IdentificationCode"),
	}
	if ep := child(e, "EndpointID"); ep != nil {
		party.EndpointScheme = ep.SelectAttrValue("schemeID", "")
		party.EndpointID = strings.TrimSpace(ep.Text())
	}
	return party
}
