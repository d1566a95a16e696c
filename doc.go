/*
Package gopeppol implements a node on the Peppol four-corner document
exchange network: participant discovery, document classification,
transmission orchestration, and downstream event dispatch.

# Overview

go-peppol operates a sending access point. To deliver a business
document it discovers the recipient's Service Metadata Publisher via
DNS (SML/BDXL NAPTR lookup), queries the publisher over HTTP for the
recipient's capabilities and transport endpoint, classifies and
validates the outbound document, transmits it through an AS4 gateway
(or an in-process simulated transport for sandbox entities), records
the outcome, and fans events out to webhooks and third-party
integration plugins.

# Package Structure

	github.com/fourcornerlabs/go-peppol/pkg/identifier  - Participant addresses and SML hash names
	github.com/fourcornerlabs/go-peppol/pkg/discovery   - SML DNS resolution and SMP metadata retrieval
	github.com/fourcornerlabs/go-peppol/pkg/document    - Document type detection, parsing, validation policy
	github.com/fourcornerlabs/go-peppol/internal/transmit - Transmission pipeline and transports
	github.com/fourcornerlabs/go-peppol/internal/dispatch - Webhook and integration plugin dispatch
	github.com/fourcornerlabs/go-peppol/internal/storage  - Persistence interfaces (MongoDB, in-memory)
	github.com/fourcornerlabs/go-peppol/internal/server   - HTTP API
	github.com/fourcornerlabs/go-peppol/cmd/apnode        - Node entrypoint

# Quick Start

To verify a recipient and transmit a document:

	import (
	    "github.com/fourcornerlabs/go-peppol/pkg/discovery"
	    "github.com/fourcornerlabs/go-peppol/pkg/identifier"
	)

	svc := discovery.NewService(discovery.ServiceConfig{
	    Zone: "edelivery.tech.ec.europa.eu",
	})

	addr := identifier.MustParse("0208:0123456789")
	verification, err := svc.VerifyRecipient(ctx, addr, discovery.VerifyOptions{})
	if err != nil {
	    // infrastructure failure, not "unregistered"
	}
	if !verification.Registered {
	    // the address has no publisher on the network
	}

# References

  - Peppol eDelivery Network: https://peppol.org
  - OASIS BDX Location (BDXL): https://docs.oasis-open.org/bdxr/BDX-Location/v1.0/
  - OASIS Service Metadata Publishing (SMP): https://docs.oasis-open.org/bdxr/bdx-smp/v1.0/
  - eDelivery AS4 profile: https://ec.europa.eu/digital-building-blocks/
*/
package gopeppol
