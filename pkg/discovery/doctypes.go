package discovery

// Transport profile constants
const (
	// TransportPeppolAS4 is the Peppol AS4 transport profile
	TransportPeppolAS4 = "peppol-transport-as4-v2_0"
	// TransportAS4V1 is the legacy AS4 transport profile
	TransportAS4V1 = "busdox-transport-ebms3-as4-v1p0"
)

// Well-known document-type identifiers on the billing network.
const (
	DocTypeInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice" +
		"##urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0::2.1"
	DocTypeCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2::CreditNote" +
		"##urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0::2.1"
	DocTypeSelfBillingInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice" +
		"##urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:selfbilling:3.0::2.1"
	DocTypeSelfBillingCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2::CreditNote" +
		"##urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:selfbilling:3.0::2.1"
	DocTypeMessageLevelResponse = "urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2::ApplicationResponse" +
		"##urn:fdc:peppol.eu:poacc:trns:mlr:3::2.1"
)

// Process identifiers for the profiles above.
const (
	ProcessBilling     = "urn:fdc:peppol.eu:2017:poacc:billing:01:1.0"
	ProcessSelfBilling = "urn:fdc:peppol.eu:2017:poacc:selfbilling:01:1.0"
	ProcessMLR         = "urn:fdc:peppol.eu:poacc:bis:mlr:3"
)

// DocType describes one registered document type: its network
// identifier, the process it participates in, and a human name.
type DocType struct {
	ID        string
	ProcessID string
	Name      string
}

// registry is the static document-type registry. Lookups never hit the
// network.
var registry = map[string]DocType{
	DocTypeInvoice:               {ID: DocTypeInvoice, ProcessID: ProcessBilling, Name: "Peppol BIS Billing 3.0 Invoice"},
	DocTypeCreditNote:            {ID: DocTypeCreditNote, ProcessID: ProcessBilling, Name: "Peppol BIS Billing 3.0 Credit Note"},
	DocTypeSelfBillingInvoice:    {ID: DocTypeSelfBillingInvoice, ProcessID: ProcessSelfBilling, Name: "Peppol BIS Self-Billing 3.0 Invoice"},
	DocTypeSelfBillingCreditNote: {ID: DocTypeSelfBillingCreditNote, ProcessID: ProcessSelfBilling, Name: "Peppol BIS Self-Billing 3.0 Credit Note"},
	DocTypeMessageLevelResponse:  {ID: DocTypeMessageLevelResponse, ProcessID: ProcessMLR, Name: "Peppol Message Level Response"},
}

// LookupDocumentType returns the registry entry for a network
// document-type identifier.
func LookupDocumentType(id string) (DocType, bool) {
	dt, ok := registry[id]
	return dt, ok
}

// DisplayName maps a network document-type identifier to a human name.
// Unknown identifiers are returned unchanged.
func DisplayName(id string) string {
	if dt, ok := registry[id]; ok {
		return dt.Name
	}
	return id
}
