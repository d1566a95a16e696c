package discovery

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fourcornerlabs/go-peppol/pkg/identifier"
)

// SMP errors
var (
	// ErrParticipantNotFound is returned when the publisher has no
	// service group for the participant
	ErrParticipantNotFound = errors.New("participant not found at publisher")
	// ErrBusinessCardNotFound is returned when the publisher exposes no
	// business card for the participant
	ErrBusinessCardNotFound = errors.New("business card not found at publisher")
)

// participantScheme is the identifier scheme used in publisher URLs.
const participantScheme = "iso6523-actorid-upis"

// SMPClientConfig contains configuration for the SMP client.
type SMPClientConfig struct {
	// HTTPClient is the HTTP client to use (optional).
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header to send.
	UserAgent string
}

// SMPClient retrieves service metadata from a participant's publisher.
type SMPClient struct {
	config     SMPClientConfig
	httpClient *http.Client
}

// NewSMPClient creates an SMP client with default configuration.
func NewSMPClient() *SMPClient {
	return NewSMPClientWithConfig(SMPClientConfig{})
}

// NewSMPClientWithConfig creates an SMP client with custom configuration.
func NewSMPClientWithConfig(config SMPClientConfig) *SMPClient {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if config.UserAgent == "" {
		config.UserAgent = "go-peppol-smp-client/1.0"
	}
	return &SMPClient{config: config, httpClient: client}
}

// ServiceGroup lists the document types a participant has registered.
type ServiceGroup struct {
	Participant identifier.Address
	References  []ServiceReference
}

// ServiceReference is one entry of a service group: a registered
// document type and the URL its full service metadata is fetched from.
type ServiceReference struct {
	// DocumentTypeID is the network document-type identifier, decoded
	// from the reference URL.
	DocumentTypeID string
	// Href is the publisher-provided reference URL for the full
	// service metadata.
	Href string
}

// ServiceMetadata is one recipient capability for one document type.
type ServiceMetadata struct {
	Participant       identifier.Address
	DocumentTypeID    string
	ProcessID         string
	EndpointURL       string
	TransportProfile  string
	TechnicalContact  string
	CertificateExpiry *time.Time
	Description       string
}

// BusinessCard is a participant's directory entry. Independent of
// service metadata; fetched only on explicit request.
type BusinessCard struct {
	Name        string
	CountryCode string
}

// GetServiceGroup retrieves the list of document types the participant
// has registered with its publisher.
func (c *SMPClient) GetServiceGroup(ctx context.Context, publisherURL string, addr identifier.Address) (*ServiceGroup, error) {
	reqURL := c.serviceGroupURL(publisherURL, addr)

	body, err := c.doRequest(ctx, reqURL, ErrParticipantNotFound)
	if err != nil {
		return nil, err
	}
	return parseServiceGroup(body, addr)
}

// FetchServiceMetadata performs one HTTP GET against a publisher-provided
// reference URL and parses the transport endpoint, profile, technical
// contact, and certificate expiry from the response.
//
// Network or parse errors are returned as recoverable errors; the caller
// decides whether to treat the document type as unsupported or to abort.
func (c *SMPClient) FetchServiceMetadata(ctx context.Context, referenceURL string) (*ServiceMetadata, error) {
	body, err := c.doRequest(ctx, referenceURL, ErrParticipantNotFound)
	if err != nil {
		return nil, err
	}
	return parseServiceMetadata(body)
}

// GetBusinessCard retrieves the participant's directory entry from the
// publisher.
func (c *SMPClient) GetBusinessCard(ctx context.Context, publisherURL string, addr identifier.Address) (*BusinessCard, error) {
	base := strings.TrimRight(publisherURL, "/")
	reqURL := fmt.Sprintf("%s/businesscard/%s", base, url.PathEscape(participantScheme+"::"+addr.String()))

	body, err := c.doRequest(ctx, reqURL, ErrBusinessCardNotFound)
	if err != nil {
		return nil, err
	}
	return parseBusinessCard(body)
}

// serviceGroupURL constructs <publisher>/<scheme>::<participant>.
func (c *SMPClient) serviceGroupURL(publisherURL string, addr identifier.Address) string {
	base := strings.TrimRight(publisherURL, "/")
	return fmt.Sprintf("%s/%s", base, url.PathEscape(participantScheme+"::"+addr.String()))
}

// doRequest performs an HTTP GET and returns the response body.
// A 404 is mapped to notFound.
func (c *SMPClient) doRequest(ctx context.Context, reqURL string, notFound error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publisher request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("publisher returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// SMP 1.0 XML structures

type smpServiceGroup struct {
	XMLName                            xml.Name `xml:"ServiceGroup"`
	ServiceMetadataReferenceCollection struct {
		ServiceMetadataReferences []struct {
			Href string `xml:"href,attr"`
		} `xml:"ServiceMetadataReference"`
	} `xml:"ServiceMetadataReferenceCollection"`
}

type smpSignedServiceMetadata struct {
	XMLName         xml.Name `xml:"SignedServiceMetadata"`
	ServiceMetadata struct {
		ServiceInformation struct {
			ParticipantIdentifier struct {
				Value  string `xml:",chardata"`
				Scheme string `xml:"scheme,attr"`
			} `xml:"ParticipantIdentifier"`
			DocumentIdentifier struct {
				Value  string `xml:",chardata"`
				Scheme string `xml:"scheme,attr"`
			} `xml:"DocumentIdentifier"`
			ProcessList struct {
				Processes []struct {
					ProcessIdentifier struct {
						Value  string `xml:",chardata"`
						Scheme string `xml:"scheme,attr"`
					} `xml:"ProcessIdentifier"`
					ServiceEndpointList struct {
						Endpoints []struct {
							TransportProfile      string `xml:"transportProfile,attr"`
							EndpointURI           string `xml:"EndpointURI"`
							Certificate           string `xml:"Certificate"`
							ServiceExpirationDate string `xml:"ServiceExpirationDate"`
							TechnicalContactUrl   string `xml:"TechnicalContactUrl"`
							ServiceDescription    string `xml:"ServiceDescription"`
						} `xml:"Endpoint"`
					} `xml:"ServiceEndpointList"`
				} `xml:"Process"`
			} `xml:"ProcessList"`
		} `xml:"ServiceInformation"`
	} `xml:"ServiceMetadata"`
}

type smpBusinessCard struct {
	XMLName        xml.Name `xml:"BusinessCard"`
	BusinessEntity struct {
		Name        string `xml:"Name"`
		CountryCode string `xml:"CountryCode"`
	} `xml:"BusinessEntity"`
}

// parseServiceGroup parses a ServiceGroup response, decoding the
// document-type identifier embedded in each reference URL.
func parseServiceGroup(data []byte, addr identifier.Address) (*ServiceGroup, error) {
	var sg smpServiceGroup
	if err := xml.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("parsing service group: %w", err)
	}

	result := &ServiceGroup{Participant: addr}
	for _, ref := range sg.ServiceMetadataReferenceCollection.ServiceMetadataReferences {
		result.References = append(result.References, ServiceReference{
			DocumentTypeID: documentTypeFromReference(ref.Href),
			Href:           ref.Href,
		})
	}
	return result, nil
}

// documentTypeFromReference extracts the document-type identifier from a
// service metadata reference URL. The identifier is the percent-encoded
// path segment after "/services/", qualified with its scheme as
// "<scheme>::<identifier>".
func documentTypeFromReference(href string) string {
	idx := strings.LastIndex(href, "/services/")
	if idx < 0 {
		return ""
	}
	segment := href[idx+len("/services/"):]
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		decoded = segment
	}
	// Strip the identifier scheme qualifier (e.g. "busdox-docid-qns::")
	if i := strings.Index(decoded, "::"); i >= 0 {
		decoded = decoded[i+2:]
	}
	return decoded
}

// parseServiceMetadata parses a SignedServiceMetadata response into the
// flat per-document-type capability record.
func parseServiceMetadata(data []byte) (*ServiceMetadata, error) {
	var ssm smpSignedServiceMetadata
	if err := xml.Unmarshal(data, &ssm); err != nil {
		return nil, fmt.Errorf("parsing service metadata: %w", err)
	}

	si := ssm.ServiceMetadata.ServiceInformation
	result := &ServiceMetadata{DocumentTypeID: si.DocumentIdentifier.Value}

	if addr, err := identifier.Parse(si.ParticipantIdentifier.Value); err == nil {
		result.Participant = addr
	}

	if len(si.ProcessList.Processes) == 0 {
		return nil, errors.New("service metadata contains no process")
	}
	process := si.ProcessList.Processes[0]
	result.ProcessID = process.ProcessIdentifier.Value

	if len(process.ServiceEndpointList.Endpoints) == 0 {
		return nil, errors.New("service metadata contains no endpoint")
	}
	ep := process.ServiceEndpointList.Endpoints[0]
	result.EndpointURL = ep.EndpointURI
	result.TransportProfile = ep.TransportProfile
	result.TechnicalContact = ep.TechnicalContactUrl
	result.Description = ep.ServiceDescription
	result.CertificateExpiry = certificateExpiry(ep.Certificate, ep.ServiceExpirationDate)

	return result, nil
}

// certificateExpiry determines the declared certificate expiry: the
// NotAfter of the endpoint certificate when it parses, otherwise the
// declared service expiration date.
func certificateExpiry(certB64, expirationDate string) *time.Time {
	if certB64 != "" {
		der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(certB64), ""))
		if err == nil {
			if cert, err := x509.ParseCertificate(der); err == nil {
				t := cert.NotAfter
				return &t
			}
		}
	}
	if expirationDate != "" {
		if t, err := time.Parse(time.RFC3339, expirationDate); err == nil {
			return &t
		}
	}
	return nil
}

func parseBusinessCard(data []byte) (*BusinessCard, error) {
	var bc smpBusinessCard
	if err := xml.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("parsing business card: %w", err)
	}
	return &BusinessCard{
		Name:        bc.BusinessEntity.Name,
		CountryCode: bc.BusinessEntity.CountryCode,
	}, nil
}
