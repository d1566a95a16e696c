package discovery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ServiceMetaSMP is the NAPTR service tag advertising an OASIS SMP 1.0
// metadata publisher.
const ServiceMetaSMP = "Meta:SMP"

// PublisherRecord is the result of DNS discovery for one participant.
// It is ephemeral: recomputed per resolution, never persisted. Callers
// that need caching do so externally.
type PublisherRecord struct {
	// URL is the resolved publisher base URL, always scheme-prefixed.
	URL string
	// Record is the raw NAPTR record that was consulted.
	Record string
	// RewriteRule is the rewrite expression applied to produce URL,
	// empty when the record's replacement target was used verbatim.
	RewriteRule string
}

// ResolverConfig contains configuration for the publisher resolver.
type ResolverConfig struct {
	// DNSServer is the DNS server to use, as "ip:port". If empty, the
	// system resolver configuration (/etc/resolv.conf) is used.
	DNSServer string

	// Timeout bounds a single DNS exchange. Defaults to 10s.
	Timeout time.Duration
}

// Resolver resolves participant query names to metadata publisher URLs
// via DNS U-NAPTR lookup.
type Resolver struct {
	config    ResolverConfig
	dnsClient *dns.Client
}

// NewResolver creates a resolver with default configuration.
func NewResolver() *Resolver {
	return NewResolverWithConfig(ResolverConfig{})
}

// NewResolverWithConfig creates a resolver with custom configuration.
func NewResolverWithConfig(config ResolverConfig) *Resolver {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	client := new(dns.Client)
	client.Timeout = config.Timeout
	return &Resolver{config: config, dnsClient: client}
}

// ResolvePublisher queries NAPTR records for domainName and returns the
// metadata publisher URL derived from the best matching record.
//
// Resolution failure is an expected outcome, not a fault: a DNS timeout,
// NXDOMAIN, absence of usable records, or an unparsable rewrite rule all
// yield (nil, nil). Only environment problems (no resolver configured)
// produce an error.
func (r *Resolver) ResolvePublisher(ctx context.Context, domainName string) (*PublisherRecord, error) {
	server := r.config.DNSServer
	if server == "" {
		config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("reading DNS config: %w", err)
		}
		if len(config.Servers) == 0 {
			return nil, errors.New("no DNS servers configured")
		}
		server = config.Servers[0] + ":" + config.Port
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domainName), dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := r.dnsClient.ExchangeContext(ctx, msg, server)
	if err != nil {
		// Timeouts and transport errors mean "not resolvable", which
		// callers treat as "not registered".
		return nil, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, nil
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	best := selectPublisherRecord(records)
	if best == nil {
		return nil, nil
	}

	return publisherFromRecord(best, strings.TrimSuffix(dns.Fqdn(domainName), "."))
}

// selectPublisherRecord picks the record to follow. Records advertising
// the metadata publisher service are preferred; ties are broken by
// ascending (order, preference).
func selectPublisherRecord(records []*dns.NAPTR) *dns.NAPTR {
	var best *dns.NAPTR
	bestPreferred := false
	bestPriority := 0

	for _, rec := range records {
		if strings.ToUpper(rec.Flags) != "U" {
			continue
		}
		preferred := strings.EqualFold(rec.Service, ServiceMetaSMP)
		priority := int(rec.Order)*0x10000 + int(rec.Preference)

		switch {
		case best == nil:
		case preferred && !bestPreferred:
		case preferred == bestPreferred && priority < bestPriority:
		default:
			continue
		}
		best, bestPreferred, bestPriority = rec, preferred, priority
	}

	return best
}

// publisherFromRecord derives the publisher URL from a NAPTR record.
// When the record carries a rewrite rule it is compiled and applied to
// the queried name; otherwise the replacement target is used verbatim.
// An unparsable rule yields (nil, nil), never an error.
func publisherFromRecord(rec *dns.NAPTR, queriedName string) (*PublisherRecord, error) {
	result := &PublisherRecord{Record: rec.String()}

	if rec.Regexp != "" {
		rewritten, ok := applyRewriteRule(rec.Regexp, queriedName)
		if !ok {
			return nil, nil
		}
		result.URL = ensureScheme(rewritten)
		result.RewriteRule = rec.Regexp
		return result, nil
	}

	target := strings.TrimSuffix(rec.Replacement, ".")
	if target == "" {
		return nil, nil
	}
	result.URL = ensureScheme(target)
	return result, nil
}

// naptrBackrefs rewrites NAPTR backreferences (\1 .. \9) into Go
// regexp replacement syntax (${1} .. ${9}).
var naptrBackrefs = regexp.MustCompile(`\\([1-9])`)

// applyRewriteRule parses and applies a NAPTR rewrite rule. The rule is
// a delimited 4-part expression: the first character is the delimiter,
// followed by a match pattern, a replacement, and optional flags
// ("!pattern!replacement!flags"). Returns false when the rule is
// malformed or its pattern does not compile.
func applyRewriteRule(rule, input string) (string, bool) {
	if len(rule) < 2 {
		return "", false
	}
	delim := string(rule[0])
	parts := strings.Split(rule[1:], delim)
	if len(parts) < 2 {
		return "", false
	}
	pattern, replacement := parts[0], parts[1]
	flags := ""
	if len(parts) > 2 {
		flags = parts[2]
	}

	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	if !re.MatchString(input) {
		return "", false
	}

	replacement = naptrBackrefs.ReplaceAllString(replacement, "${$1}")
	result := re.ReplaceAllString(input, replacement)
	if result == "" {
		return "", false
	}
	return result, true
}

// ensureScheme prefixes "https://" when the URL has no scheme.
func ensureScheme(rawURL string) string {
	if strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "https://" + rawURL
}
