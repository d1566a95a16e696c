package transmit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SendRequest carries one outbound document to the transport.
type SendRequest struct {
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	DocumentTypeID string `json:"docTypeId"`
	ProcessID      string `json:"processId"`
	CountryCode    string `json:"countryCode"`
	Body           string `json:"document"`
	UseTestNetwork bool   `json:"useTestNetwork"`
}

// SendResult is the transport's verdict on one send.
type SendResult struct {
	OK bool `json:"ok"`

	PeppolMessageID string `json:"peppolMessageId,omitempty"`
	SBDHInstanceID  string `json:"sbdhInstanceIdentifier,omitempty"`

	// ErrorMessage is the transport's own diagnostic text, preserved
	// verbatim for the sender
	ErrorMessage string `json:"sendingException,omitempty"`
}

// Transport delivers a document to the recipient's access point.
type Transport interface {
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
}

// LiveTransportConfig configures the gateway client.
type LiveTransportConfig struct {
	// GatewayURL is the AS4 sending collaborator's endpoint
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
}

// LiveTransport delegates sending to the external AS4 gateway. The
// gateway owns message signing and the eDelivery handshake; this
// client only hands over the document and routing identifiers.
type LiveTransport struct {
	cfg    LiveTransportConfig
	client *http.Client
}

// NewLiveTransport creates a gateway-backed transport.
func NewLiveTransport(cfg LiveTransportConfig) *LiveTransport {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &LiveTransport{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send posts the document to the gateway and decodes its verdict.
// A transport-level refusal (OK false) is not an error: the result
// carries the gateway's own diagnostic text.
func (t *LiveTransport) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.GatewayURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "go-peppol-transport/1.0")
	if t.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending to gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var result SendResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	return &result, nil
}

// SimulatedTransport mimics network acceptance without real delivery.
// Used for sandbox entities not opted into the live test network.
type SimulatedTransport struct{}

// NewSimulatedTransport creates the in-process stand-in transport.
func NewSimulatedTransport() *SimulatedTransport {
	return &SimulatedTransport{}
}

// Send accepts every document and fabricates network identifiers.
func (t *SimulatedTransport) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	return &SendResult{
		OK:              true,
		PeppolMessageID: uuid.NewString(),
		SBDHInstanceID:  uuid.NewString(),
	}, nil
}
