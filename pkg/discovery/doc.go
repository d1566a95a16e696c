// Package discovery implements participant discovery for the Peppol
// four-corner network: DNS-based location of a participant's Service
// Metadata Publisher (SMP) and retrieval of the participant's declared
// capabilities from it.
//
// # Discovery Process
//
// Locating a recipient works as follows:
//
//  1. DNS Query Construction: the participant address is hashed with
//     SHA-256, BASE32 encoded, and combined with the network zone to
//     form the DNS query name (see identifier.HashQueryName).
//
//  2. NAPTR Lookup: a DNS query for U-NAPTR records is performed against
//     that name. Records advertising the "Meta:SMP" service are
//     preferred; ties are broken by ascending (order, preference). The
//     record's rewrite rule, when present, is compiled and applied to
//     produce the publisher URL.
//
//  3. SMP Query: the publisher is queried over HTTP for the service
//     group (the list of supported document types) and, on demand, the
//     per-document-type service metadata (transport endpoint, profile,
//     technical contact, certificate expiry).
//
// An address that is not registered on the network is an expected,
// non-exceptional outcome: Resolver.ResolvePublisher returns (nil, nil)
// and Service.VerifyRecipient returns a Verification with Registered
// set to false rather than an error.
//
// # References
//
//   - OASIS BDX-Location 1.0: http://docs.oasis-open.org/bdxr/BDX-Location/v1.0/
//   - OASIS SMP 1.0: http://docs.oasis-open.org/bdxr/bdx-smp/v1.0/
//   - RFC 4848 (U-NAPTR): https://www.rfc-editor.org/rfc/rfc4848.html
//   - Peppol SML specification: https://docs.peppol.eu/edelivery/sml/
package discovery
