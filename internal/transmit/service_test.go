package transmit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourcornerlabs/go-peppol/internal/faults"
	"github.com/fourcornerlabs/go-peppol/internal/storage"
	"github.com/fourcornerlabs/go-peppol/internal/storage/memory"
	"github.com/fourcornerlabs/go-peppol/pkg/discovery"
	"github.com/fourcornerlabs/go-peppol/pkg/document"
)

const testInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0</cbc:CustomizationID>
  <cbc:ID>INV-1</cbc:ID>
  <cac:AccountingSupplierParty>
    <cac:Party><cbc:EndpointID schemeID="0208">0987654321</cbc:EndpointID></cac:Party>
  </cac:AccountingSupplierParty>
  <cac:AccountingCustomerParty>
    <cac:Party><cbc:EndpointID schemeID="0208">0123456789</cbc:EndpointID></cac:Party>
  </cac:AccountingCustomerParty>
</Invoice>`

const invoiceWithoutEndpoints = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:cen.eu:en16931:2017#compliant#urn:fdc:peppol.eu:2017:poacc:billing:3.0</cbc:CustomizationID>
  <cbc:ID>INV-2</cbc:ID>
</Invoice>`

const testMLR = `<?xml version="1.0" encoding="UTF-8"?>
<ApplicationResponse xmlns="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"
                     xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:CustomizationID>urn:fdc:peppol.eu:poacc:trns:mlr:3</cbc:CustomizationID>
  <cbc:ID>MLR-1</cbc:ID>
</ApplicationResponse>`

// stubTransport records calls and plays back a fixed result.
type stubTransport struct {
	calls  []*SendRequest
	result *SendResult
	err    error
}

func (t *stubTransport) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	t.calls = append(t.calls, req)
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

type stubNotifier struct {
	diagnostics []string
}

func (n *stubNotifier) NotifySubmitter(ctx context.Context, req *Request, diagnostic string) {
	n.diagnostics = append(n.diagnostics, diagnostic)
}

type stubDispatcher struct {
	sent []*storage.TransmittedDocument
}

func (d *stubDispatcher) DocumentSent(ctx context.Context, doc *storage.TransmittedDocument) {
	d.sent = append(d.sent, doc)
}

type stubValidator struct {
	result *document.ValidationResult
}

func (v *stubValidator) ValidateDocument(ctx context.Context, body []byte) (*document.ValidationResult, error) {
	return v.result, nil
}

type fixture struct {
	store      *memory.Store
	live       *stubTransport
	simulated  *stubTransport
	notifier   *stubNotifier
	dispatcher *stubDispatcher
	entity     *storage.BusinessEntity
	service    *Service
}

func newFixture(t *testing.T, entity *storage.BusinessEntity, validator document.Validator) *fixture {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.CreateEntity(context.Background(), entity))

	f := &fixture{
		store:      store,
		live:       &stubTransport{result: &SendResult{OK: true, PeppolMessageID: "msg-1", SBDHInstanceID: "sbdh-1"}},
		simulated:  &stubTransport{result: &SendResult{OK: true, PeppolMessageID: "sim-1"}},
		notifier:   &stubNotifier{},
		dispatcher: &stubDispatcher{},
		entity:     entity,
	}
	f.service = NewService(store, f.live, f.simulated, validator, f.dispatcher, f.notifier, nil)
	return f
}

func liveEntity() *storage.BusinessEntity {
	return &storage.BusinessEntity{
		TenantID:    "t1",
		Name:        "Acme",
		Address:     "0208:0987654321",
		CountryCode: "BE",
	}
}

func TestTransmitSuccess(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	doc, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})
	require.NoError(t, err)

	assert.True(t, doc.Success)
	assert.Equal(t, "msg-1", doc.PeppolMessageID)
	assert.Equal(t, "0208:0987654321", doc.Sender)
	assert.Equal(t, "0208:0123456789", doc.Receiver)
	assert.Equal(t, document.TypeInvoice, doc.Type)
	assert.NotEmpty(t, doc.ProcessID)

	require.Len(t, f.live.calls, 1)
	assert.Empty(t, f.simulated.calls)

	// Usage is billed and the dispatcher notified
	assert.Len(t, f.store.UsageEvents(), 1)
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, doc.ID, f.dispatcher.sent[0].ID)

	stored, err := f.store.GetDocument(context.Background(), "t1", doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.Success)
}

func TestTransmitMessageLevelResponseSendsRawBody(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	doc, err := f.service.Transmit(context.Background(), &Request{
		TenantID:  "t1",
		EntityID:  f.entity.ID,
		Source:    document.SourceAPI,
		Recipient: "0208:0123456789",
		Body:      []byte(testMLR),
	})
	require.NoError(t, err)

	assert.Equal(t, document.TypeMessageLevelResponse, doc.Type)
	assert.Nil(t, doc.Parsed)
	assert.Equal(t, discovery.DocTypeMessageLevelResponse, doc.DocumentTypeID)
	assert.Equal(t, discovery.ProcessMLR, doc.ProcessID)

	// The raw body went out untouched
	require.Len(t, f.live.calls, 1)
	assert.Equal(t, testMLR, f.live.calls[0].Body)
}

func TestTransmitMessageLevelResponseNeedsExplicitRecipient(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	// No parsed parties to fall back on
	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testMLR),
	})

	var uerr *faults.UserFacingError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, faults.CodeMissingRecipientAddress, uerr.Code)
	assert.Empty(t, f.live.calls)
}

func TestTransmitAdvancesLastDocumentNumber(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})
	require.NoError(t, err)

	entity, err := f.store.GetEntity(context.Background(), "t1", f.entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", entity.LastInvoiceNumber)
}

func TestTransmitCallerSuppliedRecipientWins(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	doc, err := f.service.Transmit(context.Background(), &Request{
		TenantID:  "t1",
		EntityID:  f.entity.ID,
		Source:    document.SourceAPI,
		Recipient: "9915:other",
		Body:      []byte(testInvoice),
	})
	require.NoError(t, err)
	assert.Equal(t, "9915:other", doc.Receiver)
}

func TestTransmitUndetectableTypeAbortsBeforeNetwork(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceEmail,
		Body:     []byte(`<Order xmlns="urn:x"/>`),
	})

	var uerr *faults.UserFacingError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, faults.CodeInvalidDocumentType, uerr.Code)

	// No transport call was made and the email submitter got the
	// diagnostic
	assert.Empty(t, f.live.calls)
	assert.Empty(t, f.simulated.calls)
	require.Len(t, f.notifier.diagnostics, 1)
	assert.Contains(t, f.notifier.diagnostics[0], "document type could not be detected")
}

func TestTransmitMissingRecipient(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(invoiceWithoutEndpoints),
	})

	var uerr *faults.UserFacingError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, faults.CodeMissingRecipientAddress, uerr.Code)
	assert.Contains(t, uerr.Message, "AccountingCustomerParty")
	assert.Empty(t, f.live.calls)
}

func TestTransmitTransportFailurePreservesDiagnostic(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)
	f.live.result = &SendResult{OK: false, ErrorMessage: "connection refused"}

	doc, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})

	var uerr *faults.UserFacingError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, faults.CodeTransmissionFailed, uerr.Code)
	assert.Equal(t, "connection refused", uerr.AdditionalContext)

	// The failed attempt is recorded with the verbatim diagnostic
	require.NotNil(t, doc)
	stored, err2 := f.store.GetDocument(context.Background(), "t1", doc.ID)
	require.NoError(t, err2)
	assert.False(t, stored.Success)
	assert.Equal(t, "connection refused", stored.AdditionalContext)

	// A failed send never counts as usage and never dispatches
	assert.Empty(t, f.store.UsageEvents())
	assert.Empty(t, f.dispatcher.sent)
}

func TestTransmitTransportErrorPreservesDiagnostic(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)
	f.live.err = errors.New("sending to gateway: dial tcp: connect: connection refused")

	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})

	var uerr *faults.UserFacingError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, f.live.err.Error(), uerr.AdditionalContext)
}

func TestTransmitSandboxUsesSimulatedTransport(t *testing.T) {
	entity := liveEntity()
	entity.Sandbox = true
	f := newFixture(t, entity, nil)

	doc, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})
	require.NoError(t, err)

	assert.Empty(t, f.live.calls)
	require.Len(t, f.simulated.calls, 1)
	assert.True(t, doc.Success)

	// Sandbox activity is excluded from usage accounting
	assert.Empty(t, f.store.UsageEvents())
}

func TestTransmitSandboxOnTestNetworkGoesLive(t *testing.T) {
	entity := liveEntity()
	entity.Sandbox = true
	entity.UseTestNetwork = true
	f := newFixture(t, entity, nil)

	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: f.entity.ID,
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})
	require.NoError(t, err)

	require.Len(t, f.live.calls, 1)
	assert.True(t, f.live.calls[0].UseTestNetwork)
	assert.Empty(t, f.simulated.calls)
}

func TestTransmitValidationPolicy(t *testing.T) {
	invalid := &document.ValidationResult{
		Valid:    false,
		Findings: []document.Finding{{Field: "cbc:ID", Message: "bad invoice number", Rule: "BR-02"}},
	}

	t.Run("email submission is blocked", func(t *testing.T) {
		f := newFixture(t, liveEntity(), &stubValidator{result: invalid})

		_, err := f.service.Transmit(context.Background(), &Request{
			TenantID: "t1",
			EntityID: f.entity.ID,
			Source:   document.SourceEmail,
			Body:     []byte(testInvoice),
		})

		var uerr *faults.UserFacingError
		require.ErrorAs(t, err, &uerr)
		assert.Empty(t, f.live.calls)
		require.Len(t, f.notifier.diagnostics, 1)
	})

	t.Run("api submission proceeds with stored warning", func(t *testing.T) {
		f := newFixture(t, liveEntity(), &stubValidator{result: invalid})

		doc, err := f.service.Transmit(context.Background(), &Request{
			TenantID: "t1",
			EntityID: f.entity.ID,
			Source:   document.SourceAPI,
			Body:     []byte(testInvoice),
		})
		require.NoError(t, err)

		require.Len(t, f.live.calls, 1)
		require.NotNil(t, doc.Validation)
		assert.False(t, doc.Validation.Valid)
	})
}

func TestTransmitUnknownEntity(t *testing.T) {
	f := newFixture(t, liveEntity(), nil)

	_, err := f.service.Transmit(context.Background(), &Request{
		TenantID: "t1",
		EntityID: "nope",
		Source:   document.SourceAPI,
		Body:     []byte(testInvoice),
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}
