package enrichers

import "github.com/flowsint/flowsint/enricher"

// The full catalog, one line per enricher. Adding an enricher means adding
// its descriptor, its constructor and one row here.
func init() {
	enricher.Register(resolveDesc, NewResolveEnricher)
	enricher.Register(reverseResolveDesc, NewReverseResolveEnricher)
	enricher.Register(rootDomainDesc, NewRootDomainEnricher)
	enricher.Register(subdomainDesc, NewSubdomainEnricher)
	enricher.Register(whoisDesc, NewWhoisEnricher)
	enricher.Register(domainToAsnDesc, NewDomainToAsnEnricher)
	enricher.Register(ipToAsnDesc, NewIpToAsnEnricher)
	enricher.Register(ipToInfosDesc, NewIpToInfosEnricher)
	enricher.Register(asnToCidrsDesc, NewAsnToCidrsEnricher)
	enricher.Register(cidrToIpsDesc, NewCidrToIpsEnricher)
	enricher.Register(emailToGravatarDesc, NewEmailToGravatarEnricher)
	enricher.Register(emailToDomainsDesc, NewEmailToDomainsEnricher)
	enricher.Register(websiteToDomainDesc, NewWebsiteToDomainEnricher)
}
