package discovery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fourcornerlabs/go-peppol/pkg/identifier"
)

// publisherResolver resolves a DNS query name to a publisher record.
// Satisfied by *Resolver.
type publisherResolver interface {
	ResolvePublisher(ctx context.Context, domainName string) (*PublisherRecord, error)
}

// Service combines DNS resolution and SMP queries into the high-level
// recipient verification operation.
type Service struct {
	resolver publisherResolver
	smp      *SMPClient
	zone     string
	logger   *slog.Logger
}

// ServiceConfig contains configuration for the discovery service.
type ServiceConfig struct {
	// Zone is the network SML zone queried during DNS discovery
	// (e.g. "edelivery.tech.ec.europa.eu").
	Zone string

	// Resolver configuration; zero value uses defaults.
	Resolver ResolverConfig

	// SMP client configuration; zero value uses defaults.
	SMP SMPClientConfig

	Logger *slog.Logger
}

// NewService creates a discovery service for the given network zone.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: NewResolverWithConfig(cfg.Resolver),
		smp:      NewSMPClientWithConfig(cfg.SMP),
		zone:     cfg.Zone,
		logger:   logger,
	}
}

// VerifyOptions selects the detail level of a verification. All levels
// are independently toggleable; the zero value answers only "is this
// address registered and which document types does it claim to support"
// with a single DNS lookup and a single HTTP GET.
type VerifyOptions struct {
	// IncludeMetadata fetches full service metadata (endpoint,
	// transport profile, certificate expiry) per registered document
	// type. One extra HTTP GET per type.
	IncludeMetadata bool

	// IncludeBusinessCard fetches the participant's directory entry.
	IncludeBusinessCard bool
}

// SupportedDocumentType is one registered document type of a verified
// recipient.
type SupportedDocumentType struct {
	// ID is the network document-type identifier.
	ID string
	// Name is the human name from the static registry; falls back to
	// the identifier when unknown.
	Name string
	// Reference is the publisher URL the full metadata is available at.
	Reference string
	// Metadata is populated only when VerifyOptions.IncludeMetadata is
	// set and the per-type fetch succeeded.
	Metadata *ServiceMetadata
}

// Verification is the result of verifying a recipient address.
type Verification struct {
	Address    identifier.Address
	Registered bool

	// PublisherURL is the resolved metadata publisher, empty when the
	// address is not registered.
	PublisherURL string

	SupportedDocumentTypes []SupportedDocumentType

	// BusinessCard is populated only on request, and only when the
	// publisher exposes one.
	BusinessCard *BusinessCard
}

// VerifyRecipient checks whether addr is registered on the network and,
// depending on opts, fetches per-type service metadata and the business
// card. An unregistered address is a negative result, not an error.
func (s *Service) VerifyRecipient(ctx context.Context, addr identifier.Address, opts VerifyOptions) (*Verification, error) {
	log := s.logger.With("participant", addr.String())

	queryName := identifier.HashQueryName(addr, s.zone)
	publisher, err := s.resolver.ResolvePublisher(ctx, queryName)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		log.Debug("no publisher record found", "query", queryName)
		return &Verification{Address: addr, Registered: false}, nil
	}

	group, err := s.smp.GetServiceGroup(ctx, publisher.URL, addr)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			// Publisher resolves but has no service group: the address
			// is not (or no longer) registered.
			log.Debug("publisher has no service group", "publisher", publisher.URL)
			return &Verification{Address: addr, Registered: false}, nil
		}
		return nil, err
	}

	result := &Verification{
		Address:      addr,
		Registered:   true,
		PublisherURL: publisher.URL,
	}

	for _, ref := range group.References {
		sdt := SupportedDocumentType{
			ID:        ref.DocumentTypeID,
			Name:      DisplayName(ref.DocumentTypeID),
			Reference: ref.Href,
		}
		if opts.IncludeMetadata {
			metadata, err := s.smp.FetchServiceMetadata(ctx, ref.Href)
			if err != nil {
				// The type stays listed without endpoint detail; a
				// broken metadata document for one type must not fail
				// the whole verification.
				log.Warn("service metadata fetch failed",
					"document_type", ref.DocumentTypeID, "error", err)
			} else {
				sdt.Metadata = metadata
			}
		}
		result.SupportedDocumentTypes = append(result.SupportedDocumentTypes, sdt)
	}

	if opts.IncludeBusinessCard {
		card, err := s.smp.GetBusinessCard(ctx, publisher.URL, addr)
		if err != nil {
			if !errors.Is(err, ErrBusinessCardNotFound) {
				log.Warn("business card fetch failed", "error", err)
			}
		} else {
			result.BusinessCard = card
		}
	}

	return result, nil
}

// IsRegistered is the cheap registration probe used by the transmission
// pipeline: one DNS lookup, one HTTP GET, no metadata detail.
func (s *Service) IsRegistered(ctx context.Context, addr identifier.Address) (bool, error) {
	v, err := s.VerifyRecipient(ctx, addr, VerifyOptions{})
	if err != nil {
		return false, err
	}
	return v.Registered, nil
}
