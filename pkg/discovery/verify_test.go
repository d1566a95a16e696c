package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fourcornerlabs/go-peppol/pkg/identifier"
)

type stubResolver struct {
	record *PublisherRecord
	err    error
}

func (s *stubResolver) ResolvePublisher(ctx context.Context, domainName string) (*PublisherRecord, error) {
	return s.record, s.err
}

func newTestService(resolver publisherResolver) *Service {
	return &Service{
		resolver: resolver,
		smp:      NewSMPClient(),
		zone:     "sml.example",
		logger:   slog.Default(),
	}
}

func TestVerifyRecipientNotRegistered(t *testing.T) {
	// No DNS record present: verification answers negatively without
	// an error.
	svc := newTestService(&stubResolver{record: nil})

	v, err := svc.VerifyRecipient(context.Background(), identifier.MustParse("0208:0000000000"), VerifyOptions{})
	if err != nil {
		t.Fatalf("VerifyRecipient() error = %v", err)
	}
	if v.Registered {
		t.Error("Registered = true, want false")
	}
	if v.PublisherURL != "" {
		t.Errorf("PublisherURL = %s, want empty", v.PublisherURL)
	}
}

func TestVerifyRecipientRegistered(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iso6523-actorid-upis::0208:0123456789", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(serviceGroupXML))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestService(&stubResolver{record: &PublisherRecord{URL: srv.URL}})

	v, err := svc.VerifyRecipient(context.Background(), identifier.MustParse("0208:0123456789"), VerifyOptions{})
	if err != nil {
		t.Fatalf("VerifyRecipient() error = %v", err)
	}
	if !v.Registered {
		t.Fatal("Registered = false, want true")
	}
	if v.PublisherURL != srv.URL {
		t.Errorf("PublisherURL = %s, want %s", v.PublisherURL, srv.URL)
	}
	if len(v.SupportedDocumentTypes) != 2 {
		t.Fatalf("SupportedDocumentTypes count = %d, want 2", len(v.SupportedDocumentTypes))
	}
	if v.SupportedDocumentTypes[0].Name != "Peppol BIS Billing 3.0 Invoice" {
		t.Errorf("Name = %s", v.SupportedDocumentTypes[0].Name)
	}
	// Default detail level performs no metadata fetch
	if v.SupportedDocumentTypes[0].Metadata != nil {
		t.Error("Metadata should be nil without IncludeMetadata")
	}
	if v.BusinessCard != nil {
		t.Error("BusinessCard should be nil without IncludeBusinessCard")
	}
}

func TestVerifyRecipientWithDetails(t *testing.T) {
	var metadataCalls int

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Service group referencing metadata on the same test server
	groupXML := `<?xml version="1.0" encoding="UTF-8"?>
<ServiceGroup xmlns="http://busdox.org/serviceMetadata/publishing/1.0/">
  <ServiceMetadataReferenceCollection>
    <ServiceMetadataReference href="` + srv.URL + `/iso6523-actorid-upis%3A%3A0208%3A0123456789/services/busdox-docid-qns%3A%3Aurn%3Aoasis%3Anames%3Aspecification%3Aubl%3Aschema%3Axsd%3AInvoice-2%3A%3AInvoice%23%23urn%3Acen.eu%3Aen16931%3A2017%23compliant%23urn%3Afdc%3Apeppol.eu%3A2017%3Apoacc%3Abilling%3A3.0%3A%3A2.1"/>
  </ServiceMetadataReferenceCollection>
</ServiceGroup>`

	mux.HandleFunc("/iso6523-actorid-upis::0208:0123456789", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(groupXML))
	})
	mux.HandleFunc("/iso6523-actorid-upis::0208:0123456789/services/", func(w http.ResponseWriter, r *http.Request) {
		metadataCalls++
		w.Write([]byte(serviceMetadataXML))
	})
	mux.HandleFunc("/businesscard/iso6523-actorid-upis::0208:0123456789", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(businessCardXML))
	})

	svc := newTestService(&stubResolver{record: &PublisherRecord{URL: srv.URL}})

	v, err := svc.VerifyRecipient(context.Background(), identifier.MustParse("0208:0123456789"), VerifyOptions{
		IncludeMetadata:     true,
		IncludeBusinessCard: true,
	})
	if err != nil {
		t.Fatalf("VerifyRecipient() error = %v", err)
	}
	if metadataCalls != 1 {
		t.Errorf("metadata fetches = %d, want 1", metadataCalls)
	}
	if len(v.SupportedDocumentTypes) != 1 || v.SupportedDocumentTypes[0].Metadata == nil {
		t.Fatal("metadata not attached to supported document type")
	}
	if v.SupportedDocumentTypes[0].Metadata.EndpointURL != "https://ap.example.com/as4" {
		t.Errorf("EndpointURL = %s", v.SupportedDocumentTypes[0].Metadata.EndpointURL)
	}
	if v.BusinessCard == nil || v.BusinessCard.Name != "Acme NV" {
		t.Errorf("BusinessCard = %+v", v.BusinessCard)
	}
}

func TestVerifyRecipientPublisherWithoutGroup(t *testing.T) {
	// Publisher resolves via DNS but answers 404 for the service
	// group: not registered, not an error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := newTestService(&stubResolver{record: &PublisherRecord{URL: srv.URL}})

	v, err := svc.VerifyRecipient(context.Background(), identifier.MustParse("0208:0000000000"), VerifyOptions{})
	if err != nil {
		t.Fatalf("VerifyRecipient() error = %v", err)
	}
	if v.Registered {
		t.Error("Registered = true, want false")
	}
}
