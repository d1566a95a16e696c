// Package transmit orchestrates the outbound document pipeline: it
// classifies and validates the document, determines sender and
// recipient addresses, selects a transport, records the outcome, and
// triggers downstream event dispatch.
//
// Each call to [Service.Transmit] is one attempt. There are no retries
// within an attempt: resending a financial document automatically
// risks duplicate delivery, so a retry is a fresh invocation with a
// fresh record.
package transmit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fourcornerlabs/go-peppol/internal/faults"
	"github.com/fourcornerlabs/go-peppol/internal/storage"
	"github.com/fourcornerlabs/go-peppol/pkg/discovery"
	"github.com/fourcornerlabs/go-peppol/pkg/document"
	"github.com/fourcornerlabs/go-peppol/pkg/identifier"
)

// Dispatcher receives document lifecycle events after the transmission
// outcome is committed. Dispatch is best-effort: failures are logged,
// never propagated.
type Dispatcher interface {
	DocumentSent(ctx context.Context, doc *storage.TransmittedDocument)
}

// Notifier informs the original submitter of a pipeline failure.
// Used for the email ingestion path, where the sender has no API
// response to read the diagnostic from.
type Notifier interface {
	NotifySubmitter(ctx context.Context, req *Request, diagnostic string)
}

// Request is one transmission attempt.
type Request struct {
	TenantID string
	EntityID string

	// Source is how the document entered the pipeline; it selects the
	// validation enforcement policy and failure notification path
	Source document.Source

	// Recipient is the caller-supplied participant address. When empty
	// the recipient is taken from the parsed document parties.
	Recipient string

	Body []byte
}

// Service is the transmission orchestrator.
type Service struct {
	store      storage.Store
	live       Transport
	simulated  Transport
	validator  document.Validator
	dispatcher Dispatcher
	notifier   Notifier
	logger     *slog.Logger
}

// NewService wires the orchestrator. validator, dispatcher, and
// notifier may be nil; the corresponding step is then skipped.
func NewService(store storage.Store, live, simulated Transport, validator document.Validator, dispatcher Dispatcher, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		live:       live,
		simulated:  simulated,
		validator:  validator,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// docTypeIDs maps detected business types onto network document-type
// identifiers. The process pairing stays with the registry.
var docTypeIDs = map[document.Type]string{
	document.TypeInvoice:               discovery.DocTypeInvoice,
	document.TypeCreditNote:            discovery.DocTypeCreditNote,
	document.TypeSelfBillingInvoice:    discovery.DocTypeSelfBillingInvoice,
	document.TypeSelfBillingCreditNote: discovery.DocTypeSelfBillingCreditNote,
	document.TypeMessageLevelResponse:  discovery.DocTypeMessageLevelResponse,
}

// route resolves a detected business type to its network document-type
// and process identifiers through the registry.
func route(typ document.Type) (docTypeID, processID string, ok bool) {
	id, ok := docTypeIDs[typ]
	if !ok {
		return "", "", false
	}
	dt, ok := discovery.LookupDocumentType(id)
	if !ok {
		return "", "", false
	}
	return dt.ID, dt.ProcessID, true
}

// Transmit runs the pipeline for one document. The returned record is
// persisted on any transport attempt, successful or not; failures
// before the transport stage abort without a record and notify the
// submitter on the email path.
func (s *Service) Transmit(ctx context.Context, req *Request) (*storage.TransmittedDocument, error) {
	log := s.logger.With("tenant", req.TenantID, "entity", req.EntityID, "source", req.Source)

	entity, err := s.store.GetEntity(ctx, req.TenantID, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("loading business entity: %w", err)
	}

	// Classify
	typ, detected := document.Detect(req.Body)
	if !detected {
		uerr := faults.New(faults.CodeInvalidDocumentType, "document type could not be detected")
		s.notifyFailure(ctx, req, uerr)
		return nil, uerr
	}
	log = log.With("type", typ)

	parsed, err := document.Parse(typ, req.Body)
	if err != nil {
		uerr := faults.New(faults.CodeInvalidDocumentType, "document could not be parsed: %v", err)
		s.notifyFailure(ctx, req, uerr)
		return nil, uerr
	}

	// Validate; a failure is a hard stop only for email submissions
	var validation *document.ValidationResult
	if s.validator != nil {
		validation, err = s.validator.ValidateDocument(ctx, req.Body)
		if err != nil {
			return nil, fmt.Errorf("validating document: %w", err)
		}
		if validation.BlocksTransmission(req.Source) {
			uerr := faults.New(faults.CodeInvalidDocumentType, "document failed validation")
			if len(validation.Findings) > 0 {
				uerr.AdditionalContext = validation.Findings[0].Message
			}
			s.notifyFailure(ctx, req, uerr)
			return nil, uerr
		}
		if !validation.Valid {
			log.Warn("document invalid, transmitting anyway", "findings", len(validation.Findings))
		}
	}

	// Address
	sender, err := identifier.Parse(entity.Address)
	if err != nil {
		return nil, fmt.Errorf("entity %s has malformed address %q: %w", entity.ID, entity.Address, err)
	}

	recipient, uerr := resolveRecipient(req, parsed)
	if uerr != nil {
		s.notifyFailure(ctx, req, uerr)
		return nil, uerr
	}

	docTypeID, processID, ok := route(typ)
	if !ok {
		uerr := faults.New(faults.CodeProcessIdentifierUnavailable, "no process identifier known for document type %s", typ)
		s.notifyFailure(ctx, req, uerr)
		return nil, uerr
	}

	// Sandbox entities stay off the network unless opted into the
	// live test network
	transport := s.live
	simulated := entity.Sandbox && !entity.UseTestNetwork
	if simulated {
		transport = s.simulated
	}

	result, err := transport.Send(ctx, &SendRequest{
		SenderID:       sender.String(),
		ReceiverID:     recipient.String(),
		DocumentTypeID: docTypeID,
		ProcessID:      processID,
		CountryCode:    entity.CountryCode,
		Body:           string(req.Body),
		UseTestNetwork: entity.UseTestNetwork,
	})
	if err != nil {
		result = &SendResult{OK: false, ErrorMessage: err.Error()}
	}

	doc := &storage.TransmittedDocument{
		TenantID:        req.TenantID,
		EntityID:        entity.ID,
		Direction:       storage.DirectionOutgoing,
		Sender:          sender.String(),
		Receiver:        recipient.String(),
		DocumentTypeID:  docTypeID,
		ProcessID:       processID,
		Body:            req.Body,
		Type:            typ,
		Parsed:          parsed,
		Validation:      validation,
		Success:         result.OK,
		PeppolMessageID: result.PeppolMessageID,
		SBDHInstanceID:  result.SBDHInstanceID,
	}

	if !result.OK {
		// Preserve the transport's diagnostic verbatim
		uerr := faults.WithContext(faults.CodeTransmissionFailed, "document transmission failed", result.ErrorMessage)
		doc.FailureCode = string(uerr.Code)
		doc.FailureMessage = uerr.Message
		doc.AdditionalContext = result.ErrorMessage

		if err := s.store.CreateDocument(ctx, doc); err != nil {
			log.Error("failed to record failed transmission", "error", err)
		}
		s.notifyFailure(ctx, req, uerr)
		return doc, uerr
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("recording transmitted document: %w", err)
	}

	// Remember the delivered document number; the API suggests the
	// next one from it
	if parsed != nil && parsed.Number != "" && parsed.Number != entity.LastInvoiceNumber {
		entity.LastInvoiceNumber = parsed.Number
		if err := s.store.UpdateEntity(ctx, entity); err != nil {
			log.Error("failed to record last document number", "error", err)
		}
	}

	// Sandbox activity is excluded from usage accounting
	if !entity.Sandbox {
		event := &storage.UsageEvent{
			TenantID:   req.TenantID,
			EntityID:   entity.ID,
			DocumentID: doc.ID,
			Kind:       "document.sent",
		}
		if err := s.store.CreateUsageEvent(ctx, event); err != nil {
			log.Error("failed to record usage event", "document", doc.ID, "error", err)
		}
	}

	log.Info("document transmitted",
		"document", doc.ID,
		"receiver", doc.Receiver,
		"simulated", simulated,
		"peppol_message_id", doc.PeppolMessageID)

	// Notification is decoupled from delivery: dispatch failures are
	// the dispatcher's to log, never ours to propagate
	if s.dispatcher != nil {
		s.dispatcher.DocumentSent(ctx, doc)
	}

	return doc, nil
}

// resolveRecipient picks the addressed party: the caller-supplied
// value wins, otherwise the parsed document parties decide (the seller
// for self-billing documents, the buyer for everything else).
func resolveRecipient(req *Request, parsed *document.Parsed) (identifier.Address, *faults.UserFacingError) {
	if req.Recipient != "" {
		addr, err := identifier.Parse(req.Recipient)
		if err != nil {
			return identifier.Address{}, faults.New(faults.CodeMissingRecipientAddress,
				"recipient address %q is not a valid scheme:identifier pair", req.Recipient)
		}
		return addr, nil
	}

	if parsed != nil {
		if addr, ok := parsed.RecipientAddress(); ok {
			return addr, nil
		}
		return identifier.Address{}, faults.New(faults.CodeMissingRecipientAddress,
			"no recipient address found in %s", parsed.RecipientSection())
	}

	return identifier.Address{}, faults.New(faults.CodeMissingRecipientAddress,
		"no recipient address supplied and none could be read from the document")
}

// notifyFailure forwards the diagnostic to the original submitter on
// the email path. API callers read the error from the response.
func (s *Service) notifyFailure(ctx context.Context, req *Request, uerr *faults.UserFacingError) {
	if s.notifier == nil || req.Source != document.SourceEmail {
		return
	}
	s.notifier.NotifySubmitter(ctx, req, uerr.Message)
}
