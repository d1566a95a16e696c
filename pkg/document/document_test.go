package document

import (
	"testing"
)

const invoiceXML = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0</cbc:CustomizationID>
  <cbc:ID>INV-2026-001</cbc:ID>
  <cbc:IssueDate>2026-08-01</cbc:IssueDate>
  <cbc:DocumentCurrencyCode>EUR</cbc:DocumentCurrencyCode>
  <cac:AccountingSupplierParty>
    <cac:Party>
      <cbc:EndpointID schemeID="0208">0987654321</cbc:EndpointID>
      <cac:PostalAddress>
        <cac:Country><cbc:IdentificationCode>BE</cbc:IdentificationCode></cac:Country>
      </cac:PostalAddress>
      <cac:PartyLegalEntity>
        <cbc:RegistrationName>Supplier BV</cbc:RegistrationName>
      </cac:PartyLegalEntity>
    </cac:Party>
  </cac:AccountingSupplierParty>
  <cac:AccountingCustomerParty>
    <cac:Party>
      <cbc:EndpointID schemeID="0208">0123456789</cbc:EndpointID>
      <cac:PartyLegalEntity>
        <cbc:RegistrationName>Customer NV</cbc:RegistrationName>
      </cac:PartyLegalEntity>
    </cac:Party>
  </cac:AccountingCustomerParty>
</Invoice>`

const selfBillingInvoiceXML = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:selfbilling:3.0</cbc:CustomizationID>
  <cbc:ID>SB-001</cbc:ID>
  <cac:AccountingSupplierParty>
    <cac:Party>
      <cbc:EndpointID schemeID="0208">0987654321</cbc:EndpointID>
    </cac:Party>
  </cac:AccountingSupplierParty>
  <cac:AccountingCustomerParty>
    <cac:Party>
      <cbc:EndpointID schemeID="0208">0123456789</cbc:EndpointID>
    </cac:Party>
  </cac:AccountingCustomerParty>
</Invoice>`

const mlrXML = `<?xml version="1.0" encoding="UTF-8"?>
<ApplicationResponse xmlns="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"
                     xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:fdc:peppol.eu:poacc:trns:mlr:3</cbc:CustomizationID>
  <cbc:ID>MLR-1</cbc:ID>
</ApplicationResponse>`

const creditNoteXML = `<?xml version="1.0" encoding="UTF-8"?>
<CreditNote xmlns="urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
            xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0</cbc:CustomizationID>
  <cbc:ID>CN-17</cbc:ID>
</CreditNote>`

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Type
		ok   bool
	}{
		{name: "invoice", body: invoiceXML, want: TypeInvoice, ok: true},
		{name: "self-billing invoice", body: selfBillingInvoiceXML, want: TypeSelfBillingInvoice, ok: true},
		{name: "credit note", body: creditNoteXML, want: TypeCreditNote, ok: true},
		{name: "message level response", body: mlrXML, want: TypeMessageLevelResponse, ok: true},
		{name: "unrecognized root", body: `<Order xmlns="urn:x"><ID>1</ID></Order>`, ok: false},
		{name: "not XML", body: `{"kind": "invoice"}`, ok: false},
		{name: "empty", body: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect([]byte(tt.body))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Detect() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseInvoice(t *testing.T) {
	parsed, err := Parse(TypeInvoice, []byte(invoiceXML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Number != "INV-2026-001" {
		t.Errorf("Number = %s", parsed.Number)
	}
	if parsed.IssueDate != "2026-08-01" {
		t.Errorf("IssueDate = %s", parsed.IssueDate)
	}
	if parsed.CurrencyCode != "EUR" {
		t.Errorf("CurrencyCode = %s", parsed.CurrencyCode)
	}
	if parsed.Supplier.Name != "Supplier BV" || parsed.Supplier.CountryCode != "BE" {
		t.Errorf("Supplier = %+v", parsed.Supplier)
	}
	if parsed.Customer.EndpointScheme != "0208" || parsed.Customer.EndpointID != "0123456789" {
		t.Errorf("Customer = %+v", parsed.Customer)
	}

	// The buyer is the addressed party for a regular invoice
	addr, ok := parsed.RecipientAddress()
	if !ok {
		t.Fatal("expected recipient address")
	}
	if addr.String() != "0208:0123456789" {
		t.Errorf("recipient = %s, want 0208:0123456789", addr)
	}
}

func TestParseSelfBillingInvertsRecipient(t *testing.T) {
	parsed, err := Parse(TypeSelfBillingInvoice, []byte(selfBillingInvoiceXML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parsed.SelfBilling {
		t.Fatal("SelfBilling = false, want true")
	}

	// The seller becomes the addressed party for self-billing
	addr, ok := parsed.RecipientAddress()
	if !ok {
		t.Fatal("expected recipient address")
	}
	if addr.String() != "0208:0987654321" {
		t.Errorf("recipient = %s, want 0208:0987654321", addr)
	}
}

func TestParseUnknownType(t *testing.T) {
	parsed, err := Parse(TypeUnknown, []byte(invoiceXML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed != nil {
		t.Errorf("parsed = %+v, want nil for unknown type", parsed)
	}
}

func TestParseMessageLevelResponseStaysRaw(t *testing.T) {
	parsed, err := Parse(TypeMessageLevelResponse, []byte(mlrXML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed != nil {
		t.Errorf("parsed = %+v, want nil for message level response", parsed)
	}
}

func TestParseMalformedBody(t *testing.T) {
	_, err := Parse(TypeInvoice, []byte("<Invoice><unclosed"))
	if err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestIncrementNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"INV-099", "INV-100"},
		{"INV-999", "INV-1000"},
		{"INV-001", "INV-002"},
		{"2026-0001", "2026-0002"},
		{"42", "43"},
		{"099", "100"},
		{"INV-09-A", "INV-10-A"},
		{"INVOICE", "INVOICE-1"},
		{"", "1"},
		{"99999999999999999999", "100000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IncrementNumber(tt.input); got != tt.want {
				t.Errorf("IncrementNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidationPolicy(t *testing.T) {
	invalid := &ValidationResult{Valid: false, Findings: []Finding{
		{Field: "cbc:ID", Message: "missing invoice number", Rule: "BR-02"},
	}}
	valid := &ValidationResult{Valid: true}

	if !invalid.BlocksTransmission(SourceEmail) {
		t.Error("invalid email document must be blocked")
	}
	if invalid.BlocksTransmission(SourceAPI) {
		t.Error("invalid API document must not be blocked")
	}
	if valid.BlocksTransmission(SourceEmail) {
		t.Error("valid document must never be blocked")
	}
	var nilResult *ValidationResult
	if nilResult.BlocksTransmission(SourceEmail) {
		t.Error("nil result must not block")
	}
}
