package enrichers

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// ResolveEnricher resolves a domain to its IP addresses.
type ResolveEnricher struct {
	*enricher.Base
	resolver *net.Resolver
}

var resolveDesc = enricher.Descriptor{
	Name:       "domain_to_ip",
	ClassName:  "ResolveEnricher",
	Category:   "Domain",
	InputType:  "Domain",
	OutputType: "Ip",
	Key:        "domain",
	Doc:        "Resolves a domain name to its IP addresses via DNS.",
	Icon:       "domain",
}

// NewResolveEnricher builds a configured domain_to_ip instance.
func NewResolveEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, resolveDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &ResolveEnricher{Base: base, resolver: net.DefaultResolver}, nil
}

// Scan resolves each domain; per-item failures are logged and skipped.
func (e *ResolveEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	var results []*entity.Entity
	for _, d := range inputs {
		domain, _ := d.Get("domain").(string)
		addrs, err := e.resolver.LookupHost(ctx, domain)
		if err != nil {
			log.Warnf("[domain_to_ip] resolution failed for %s: %v", domain, err)
			continue
		}
		for _, addr := range addrs {
			version := 4
			if strings.Contains(addr, ":") {
				version = 6
			}
			ip, err := entity.Ip.New(map[string]any{"address": addr, "version": version})
			if err != nil {
				log.Warnf("[domain_to_ip] invalid address %q: %v", addr, err)
				continue
			}
			results = append(results, ip)
			e.LogGraphMessage("Domain %s resolves to %s", domain, addr)
		}
	}
	return results, nil
}

// Postprocess writes each domain, its addresses, and the RESOLVES_TO edges.
func (e *ResolveEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, d := range inputs {
		if err := e.CreateNode(ctx, d); err != nil {
			return nil, err
		}
	}
	for _, ip := range results {
		if err := e.CreateNode(ctx, ip); err != nil {
			return nil, err
		}
		for _, d := range inputs {
			if err := e.CreateRelationship(ctx, d, ip, "RESOLVES_TO"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// RootDomainEnricher reduces a domain to its registrable root.
type RootDomainEnricher struct {
	*enricher.Base
}

var rootDomainDesc = enricher.Descriptor{
	Name:       "domain_to_root_domain",
	ClassName:  "DomainToRootDomain",
	Category:   "Domain",
	InputType:  "Domain",
	OutputType: "Domain",
	Key:        "domain",
	Doc:        "Extracts the registrable root domain of a domain name.",
	Icon:       "domain",
}

// NewRootDomainEnricher builds a configured domain_to_root_domain instance.
func NewRootDomainEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, rootDomainDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &RootDomainEnricher{Base: base}, nil
}

// Scan keeps the last two labels of each domain. Pure computation, no I/O.
func (e *RootDomainEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	var results []*entity.Entity
	for _, d := range inputs {
		domain, _ := d.Get("domain").(string)
		root := rootOf(domain)
		if root == "" {
			continue
		}
		out, err := entity.Domain.New(map[string]any{"domain": root, "root": root, "tld": tldOf(root)})
		if err != nil {
			log.Warnf("[domain_to_root_domain] invalid root %q: %v", root, err)
			continue
		}
		results = append(results, out)
	}
	return results, nil
}

// Postprocess links each domain to its root with HAS_ROOT_DOMAIN.
func (e *RootDomainEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for i, root := range results {
		if i >= len(inputs) {
			break
		}
		if err := e.CreateNode(ctx, inputs[i]); err != nil {
			return nil, err
		}
		if err := e.CreateNode(ctx, root); err != nil {
			return nil, err
		}
		if err := e.CreateRelationship(ctx, inputs[i], root, "HAS_ROOT_DOMAIN"); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func rootOf(domain string) string {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return domain
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

func tldOf(domain string) string {
	if i := strings.LastIndex(domain, "."); i >= 0 {
		return domain[i+1:]
	}
	return ""
}

// SubdomainEnricher discovers subdomains from certificate transparency logs.
type SubdomainEnricher struct {
	*enricher.Base
}

var subdomainDesc = enricher.Descriptor{
	Name:       "domain_to_subdomains",
	ClassName:  "SubdomainEnricher",
	Category:   "Domain",
	InputType:  "Domain",
	OutputType: "Domain",
	Key:        "domain",
	Params: []enricher.Param{
		{Name: "timeout", Kind: enricher.ParamNumber, Description: "Request timeout in seconds.", Default: 10},
	},
	Doc:  "[CRT.SH] Discovers subdomains of a domain through certificate transparency logs.",
	Icon: "domain",
}

// NewSubdomainEnricher builds a configured domain_to_subdomains instance.
func NewSubdomainEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, subdomainDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &SubdomainEnricher{Base: base}, nil
}

func (e *SubdomainEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(paramTimeout(e.Param("timeout")))
	var results []*entity.Entity
	for _, d := range inputs {
		domain, _ := d.Get("domain").(string)
		var records []struct {
			NameValue string `json:"name_value"`
		}
		u := fmt.Sprintf("https://crt.sh/?q=%s&output=json", url.QueryEscape("%."+domain))
		if err := getJSON(ctx, client, u, nil, &records); err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for _, rec := range records {
			for _, name := range strings.Split(rec.NameValue, "\n") {
				name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "*.")
				if name == "" || name == domain || seen[name] || !strings.HasSuffix(name, "."+domain) {
					continue
				}
				seen[name] = true
				sub, err := entity.Domain.New(map[string]any{"domain": name, "root": rootOf(name)})
				if err != nil {
					log.Warnf("[domain_to_subdomains] invalid subdomain %q: %v", name, err)
					continue
				}
				results = append(results, sub)
			}
		}
		e.LogGraphMessage("Found %d subdomains for %s", len(seen), domain)
	}
	return results, nil
}

// Postprocess links every discovered subdomain back to its parent.
func (e *SubdomainEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, parent := range inputs {
		if err := e.CreateNode(ctx, parent); err != nil {
			return nil, err
		}
		parentDomain, _ := parent.Get("domain").(string)
		for _, sub := range results {
			subDomain, _ := sub.Get("domain").(string)
			if !strings.HasSuffix(subDomain, "."+parentDomain) {
				continue
			}
			if err := e.CreateNode(ctx, sub); err != nil {
				return nil, err
			}
			if err := e.CreateRelationship(ctx, parent, sub, "HAS_SUBDOMAIN"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// DomainToAsnEnricher maps a domain to the autonomous system hosting it.
type DomainToAsnEnricher struct {
	*enricher.Base
}

var domainToAsnDesc = enricher.Descriptor{
	Name:       "domain_to_asn",
	ClassName:  "DomainToAsnEnricher",
	Category:   "Domain",
	InputType:  "Domain",
	OutputType: "ASN",
	Key:        "domain",
	Params: []enricher.Param{
		{
			Name:        "PDCP_API_KEY",
			Kind:        enricher.ParamVaultSecret,
			Description: "The ProjectDiscovery Cloud Platform API key for asnmap.",
			Required:    true,
		},
	},
	RequiredParams: true,
	Doc:            "[ASNMAP] Takes a domain and returns its corresponding ASN.",
	Icon:           "domain",
}

// NewDomainToAsnEnricher builds a configured domain_to_asn instance. The
// PDCP_API_KEY secret is resolved here; a missing key fails construction
// before any network call.
func NewDomainToAsnEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, domainToAsnDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &DomainToAsnEnricher{Base: base}, nil
}

func (e *DomainToAsnEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(0)
	headers := map[string]string{"X-PDCP-Key": e.Secret("PDCP_API_KEY")}
	var results []*entity.Entity
	for _, d := range inputs {
		domain, _ := d.Get("domain").(string)
		var data struct {
			ASNumber  string `json:"as_number"`
			ASName    string `json:"as_name"`
			ASCountry string `json:"as_country"`
		}
		u := fmt.Sprintf("https://api.asnmap.sh/api/v1/asnmap?domain=%s", url.QueryEscape(domain))
		if err := getJSON(ctx, client, u, headers, &data); err != nil {
			log.Errorf("[domain_to_asn] lookup failed for %s: %v", domain, err)
			continue
		}
		number := parseASNumber(data.ASNumber)
		if number == 0 {
			log.Warnf("[domain_to_asn] no ASN data for %s", domain)
			continue
		}
		asn, err := entity.ASN.New(map[string]any{
			"number":      number,
			"name":        data.ASName,
			"country":     data.ASCountry,
			"description": data.ASName,
		})
		if err != nil {
			log.Warnf("[domain_to_asn] invalid ASN record for %s: %v", domain, err)
			continue
		}
		results = append(results, asn)
		e.LogGraphMessage("Found AS%d (%s) for domain %s", number, data.ASName, domain)
	}
	return results, nil
}

// Postprocess links each domain to its hosting AS with HOSTED_IN.
func (e *DomainToAsnEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for i, asn := range results {
		if i >= len(inputs) {
			break
		}
		if err := e.CreateNode(ctx, inputs[i]); err != nil {
			return nil, err
		}
		if err := e.CreateNode(ctx, asn); err != nil {
			return nil, err
		}
		if err := e.CreateRelationship(ctx, inputs[i], asn, "HOSTED_IN"); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func parseASNumber(s string) int {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "AS"), "as")
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
